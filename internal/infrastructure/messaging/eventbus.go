// Package messaging implements the in-process event bus for the Remedia
// engagement hub. UI-facing commands publish domain events here; dispatch
// handlers fan them out into progress mutations and best-effort outbound
// notifications.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus is a synchronous implementation of shared.EventBus.
// Fan-out is strictly in registration order per event type, and a failing
// handler never prevents the handlers after it from running: panics are
// recovered and errors are logged, not propagated.
//
// The bus is an explicitly constructed instance. Tests build isolated
// buses instead of sharing a process-wide singleton.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]*subscription
	allHandlers []*subscription
	nextID      uint64
	logger      *slog.Logger
	metrics     *EventBusMetrics
	closed      bool
}

// subscription pairs a handler with its registration identity so a specific
// registration can be removed. The active flag guards the window between
// an unsubscribe and a publish that already snapshotted the handler list:
// a removed handler is never invoked once removal is visible.
type subscription struct {
	id      uint64
	handler shared.EventHandler
	active  bool
}

// Config contains configuration for InMemoryEventBus.
type Config struct {
	// Logger for structured logging
	Logger *slog.Logger

	// EnableMetrics enables metrics collection
	EnableMetrics bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableMetrics: true,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config Config) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	bus := &InMemoryEventBus{
		handlers: make(map[shared.EventType][]*subscription),
		logger:   config.Logger,
	}

	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}

	return bus
}

// Subscribe registers a handler for a specific event type and returns a
// function that removes exactly this registration.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrEventBusClosed
	}

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler, active: true}
	b.handlers[eventType] = append(b.handlers[eventType], sub)
	b.logger.Debug("subscribed handler", "event_type", eventType, "subscription_id", sub.id)

	id := sub.id
	return func() { b.unsubscribe(eventType, id) }, nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) (func(), error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrEventBusClosed
	}

	b.nextID++
	sub := &subscription{id: b.nextID, handler: handler, active: true}
	b.allHandlers = append(b.allHandlers, sub)
	b.logger.Debug("subscribed global handler", "subscription_id", sub.id)

	id := sub.id
	return func() { b.unsubscribe("", id) }, nil
}

// unsubscribe deactivates and removes a registration. An empty eventType
// targets the global handler list.
func (b *InMemoryEventBus) unsubscribe(eventType shared.EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remove := func(subs []*subscription) []*subscription {
		for i, sub := range subs {
			if sub.id == id {
				sub.active = false
				return append(subs[:i], subs[i+1:]...)
			}
		}
		return subs
	}

	if eventType == "" {
		b.allHandlers = remove(b.allHandlers)
		return
	}
	b.handlers[eventType] = remove(b.handlers[eventType])
}

// Publish sends an event to all subscribed handlers, synchronously and in
// registration order. The handler list is snapshotted up front; handlers
// unsubscribed mid-publish are skipped via their active flag.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	snapshot := make([]*subscription, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	snapshot = append(snapshot, b.handlers[event.EventType()]...)
	snapshot = append(snapshot, b.allHandlers...)
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	for _, sub := range snapshot {
		b.mu.RLock()
		active := sub.active
		b.mu.RUnlock()
		if !active {
			continue
		}

		if err := b.execute(event, sub); err != nil {
			b.logger.Error("handler error",
				"event_type", event.EventType(),
				"subscription_id", sub.id,
				"error", err,
			)
		}
	}

	return nil
}

// execute runs a single handler with panic isolation.
func (b *InMemoryEventBus) execute(event shared.Event, sub *subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	start := time.Now()
	err = sub.handler(event)
	duration := time.Since(start)

	if b.metrics != nil {
		b.metrics.RecordHandlerExecution(event.EventType(), duration, err == nil)
	}

	return err
}

// Close shuts down the event bus; further Subscribe/Publish calls fail.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the current metrics (nil when disabled).
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics tracks event bus performance metrics.
type EventBusMetrics struct {
	mu sync.RWMutex

	PublishedTotal map[shared.EventType]int64

	HandlerExecutions    int64
	HandlerSuccesses     int64
	HandlerFailures      int64
	HandlerTotalDuration time.Duration
	HandlersByType       map[shared.EventType]int64
}

// NewEventBusMetrics creates a new metrics tracker.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{
		PublishedTotal: make(map[shared.EventType]int64),
		HandlersByType: make(map[shared.EventType]int64),
	}
}

// RecordPublish records a publish event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedTotal[eventType]++
}

// RecordHandlerExecution records a handler execution.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HandlerExecutions++
	m.HandlerTotalDuration += duration
	m.HandlersByType[eventType]++

	if success {
		m.HandlerSuccesses++
	} else {
		m.HandlerFailures++
	}
}

// Snapshot returns a point-in-time copy of current metrics.
func (m *EventBusMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var published int64
	for _, v := range m.PublishedTotal {
		published += v
	}

	avgDuration := time.Duration(0)
	if m.HandlerExecutions > 0 {
		avgDuration = m.HandlerTotalDuration / time.Duration(m.HandlerExecutions)
	}

	successRate := 1.0
	if m.HandlerExecutions > 0 {
		successRate = float64(m.HandlerSuccesses) / float64(m.HandlerExecutions)
	}

	return MetricsSnapshot{
		TotalPublished:         published,
		TotalHandlerExecs:      m.HandlerExecutions,
		HandlerFailures:        m.HandlerFailures,
		HandlerSuccessRate:     successRate,
		AverageHandlerDuration: avgDuration,
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TotalPublished         int64         `json:"total_published"`
	TotalHandlerExecs      int64         `json:"total_handler_execs"`
	HandlerFailures        int64         `json:"handler_failures"`
	HandlerSuccessRate     float64       `json:"handler_success_rate"`
	AverageHandlerDuration time.Duration `json:"average_handler_duration"`
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)
