package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

func newTestBus(enableMetrics bool) *InMemoryEventBus {
	return NewInMemoryEventBus(Config{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		EnableMetrics: enableMetrics,
	})
}

func TestEventBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := newTestBus(false)

	var received []shared.Event
	_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(event shared.Event) error {
		received = append(received, event)
		return nil
	})
	require.NoError(t, err)

	event := shared.NewMilestoneCompletedEvent("visitor-1", "demo")
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventMilestoneCompleted, received[0].EventType())
}

func TestEventBus_RegistrationOrderPreserved(t *testing.T) {
	bus := newTestBus(false)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventBus_HandlerErrorDoesNotStopFanout(t *testing.T) {
	bus := newTestBus(false)

	var secondRan bool
	_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		return errors.New("boom")
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		secondRan = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))
	assert.True(t, secondRan)
}

func TestEventBus_PanicIsolation(t *testing.T) {
	bus := newTestBus(true)

	var secondRan bool
	_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		panic("handler exploded")
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		secondRan = true
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))
	assert.True(t, secondRan)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.HandlerFailures)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := newTestBus(false)

	var calls int
	unsubscribe, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))
	unsubscribe()
	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))

	assert.Equal(t, 1, calls)
}

func TestEventBus_SubscribeAllSeesEveryType(t *testing.T) {
	bus := newTestBus(false)

	var types []shared.EventType
	_, err := bus.SubscribeAll(func(event shared.Event) error {
		types = append(types, event.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))
	require.NoError(t, bus.Publish(shared.NewSessionClearedEvent("v")))

	assert.Equal(t, []shared.EventType{shared.EventMilestoneCompleted, shared.EventSessionCleared}, types)
}

func TestEventBus_NilHandlerAndNilEvent(t *testing.T) {
	bus := newTestBus(false)

	_, err := bus.Subscribe(shared.EventMilestoneCompleted, nil)
	assert.Error(t, err)

	assert.Error(t, bus.Publish(nil))
}

func TestEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := newTestBus(false)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "second close is a no-op")

	_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo"))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBus_MetricsSnapshot(t *testing.T) {
	bus := newTestBus(true)

	_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error { return nil })
	require.NoError(t, err)
	_, err = bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		return errors.New("fail")
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo")))
	require.NoError(t, bus.Publish(shared.NewMilestoneCompletedEvent("v", "calculator")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(4), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 0.001)
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	bus := newTestBus(true)

	var mu sync.Mutex
	count := 0
	_, err := bus.Subscribe(shared.EventMilestoneCompleted, func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(shared.NewMilestoneCompletedEvent("v", "demo"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, count)
}
