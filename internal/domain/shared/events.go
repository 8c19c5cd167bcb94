// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Milestone events
	EventMilestoneCompleted EventType = "milestone.completed"

	// Analytics events
	EventAnalyticsTrack EventType = "analytics.track"

	// Visitor events
	EventVisitorRegistered  EventType = "visitor.registered"
	EventReferralRegistered EventType = "referral.registered"
	EventSessionCleared     EventType = "visitor.session_cleared"

	// Engagement events
	EventEngagementThreshold EventType = "engagement.threshold_crossed"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	// For this service that is almost always the visitor ID.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Milestone Events
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneCompletedEvent is emitted when a landing-page section reports
// that the visitor finished it (demo watched, calculator used, ...).
type MilestoneCompletedEvent struct {
	BaseEvent
	VisitorID string `json:"visitor_id"`
	Step      string `json:"step"`
	Repeated  bool   `json:"repeated"` // the flag was already set; analytics still wants to know
}

// Payload implements Event interface.
func (e MilestoneCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visitor_id": e.VisitorID,
		"step":       e.Step,
		"repeated":   e.Repeated,
	}
}

// NewMilestoneCompletedEvent creates a new MilestoneCompletedEvent.
func NewMilestoneCompletedEvent(visitorID, step string) MilestoneCompletedEvent {
	return MilestoneCompletedEvent{
		BaseEvent: NewBaseEvent(EventMilestoneCompleted, visitorID),
		VisitorID: visitorID,
		Step:      step,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Analytics Events
// ═══════════════════════════════════════════════════════════════════════════

// AnalyticsTrackEvent carries a goal name plus a free-form parameter bag
// toward the outbound analytics channels. Delivery is best-effort: the
// local state change that produced this event is already persisted.
type AnalyticsTrackEvent struct {
	BaseEvent
	VisitorID string                 `json:"visitor_id"`
	Goal      string                 `json:"goal"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// Payload implements Event interface.
func (e AnalyticsTrackEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visitor_id": e.VisitorID,
		"goal":       e.Goal,
		"params":     e.Params,
	}
}

// NewAnalyticsTrackEvent creates a new AnalyticsTrackEvent.
func NewAnalyticsTrackEvent(visitorID, goal string, params map[string]interface{}) AnalyticsTrackEvent {
	return AnalyticsTrackEvent{
		BaseEvent: NewBaseEvent(EventAnalyticsTrack, visitorID),
		VisitorID: visitorID,
		Goal:      goal,
		Params:    params,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Visitor Events
// ═══════════════════════════════════════════════════════════════════════════

// VisitorRegisteredEvent is emitted when a visitor submits the waitlist form
// and transitions from anonymous to identified.
type VisitorRegisteredEvent struct {
	BaseEvent
	VisitorID    string `json:"visitor_id"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
	NotifyMethod string `json:"notify_method"`
}

// Payload implements Event interface.
func (e VisitorRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visitor_id":    e.VisitorID,
		"email":         e.Email,
		"referral_code": e.ReferralCode,
		"notify_method": e.NotifyMethod,
	}
}

// NewVisitorRegisteredEvent creates a new VisitorRegisteredEvent.
func NewVisitorRegisteredEvent(visitorID, email, referralCode, notifyMethod string) VisitorRegisteredEvent {
	return VisitorRegisteredEvent{
		BaseEvent:    NewBaseEvent(EventVisitorRegistered, visitorID),
		VisitorID:    visitorID,
		Email:        email,
		ReferralCode: referralCode,
		NotifyMethod: notifyMethod,
	}
}

// ReferralRegisteredEvent is emitted when a share action is attributed
// to a visitor.
type ReferralRegisteredEvent struct {
	BaseEvent
	VisitorID     string `json:"visitor_id"`
	ReferralCount int    `json:"referral_count"`
}

// Payload implements Event interface.
func (e ReferralRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visitor_id":     e.VisitorID,
		"referral_count": e.ReferralCount,
	}
}

// NewReferralRegisteredEvent creates a new ReferralRegisteredEvent.
func NewReferralRegisteredEvent(visitorID string, referralCount int) ReferralRegisteredEvent {
	return ReferralRegisteredEvent{
		BaseEvent:     NewBaseEvent(EventReferralRegistered, visitorID),
		VisitorID:     visitorID,
		ReferralCount: referralCount,
	}
}

// SessionClearedEvent is emitted when a visitor logs out. The progress
// record itself survives; only the session pointer is gone.
type SessionClearedEvent struct {
	BaseEvent
	VisitorID string `json:"visitor_id"`
}

// Payload implements Event interface.
func (e SessionClearedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"visitor_id": e.VisitorID,
	}
}

// NewSessionClearedEvent creates a new SessionClearedEvent.
func NewSessionClearedEvent(visitorID string) SessionClearedEvent {
	return SessionClearedEvent{
		BaseEvent: NewBaseEvent(EventSessionCleared, visitorID),
		VisitorID: visitorID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Engagement Events
// ═══════════════════════════════════════════════════════════════════════════

// EngagementThresholdEvent is emitted at most once per page session for each
// one-shot threshold (egg counts, demo completion, first referral).
type EngagementThresholdEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	VisitorID string `json:"visitor_id"`
	Threshold string `json:"threshold"` // e.g., "eggs_3_viewed"
	Score     int    `json:"score"`
	Level     string `json:"level"`
	EggsCount int    `json:"eggs_count"`
}

// Payload implements Event interface.
func (e EngagementThresholdEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"visitor_id": e.VisitorID,
		"threshold":  e.Threshold,
		"score":      e.Score,
		"level":      e.Level,
		"eggs_count": e.EggsCount,
	}
}

// NewEngagementThresholdEvent creates a new EngagementThresholdEvent.
func NewEngagementThresholdEvent(sessionID, visitorID, threshold string, score int, level string, eggsCount int) EngagementThresholdEvent {
	return EngagementThresholdEvent{
		BaseEvent: NewBaseEvent(EventEngagementThreshold, visitorID),
		SessionID: sessionID,
		VisitorID: visitorID,
		Threshold: threshold,
		Score:     score,
		Level:     level,
		EggsCount: eggsCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type and returns a function
	// that removes exactly this registration.
	Subscribe(eventType EventType, handler EventHandler) (func(), error)

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) (func(), error)
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
