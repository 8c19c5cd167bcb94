package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

type fakeNotifier struct {
	mu       sync.Mutex
	enabled  bool
	messages []string
	fail     bool
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) Notify(_ context.Context, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("boom")
	}
	f.messages = append(f.messages, html)
	return nil
}

type fakeReporter struct {
	mu      sync.Mutex
	enabled bool
	goals   []string
}

func (f *fakeReporter) Enabled() bool { return f.enabled }

func (f *fakeReporter) ReachGoal(_ context.Context, _, goal string, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goals = append(f.goals, goal)
	return nil
}

func TestMilestoneHandlerDeliversFirstCompletion(t *testing.T) {
	notifier := &fakeNotifier{enabled: true}
	handler := NewOnMilestoneCompletedHandler(notifier, nil)

	event := shared.NewMilestoneCompletedEvent("visitor-1", "demo")
	handler.deliver(context.Background(), event)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "demo")
	assert.Contains(t, notifier.messages[0], "visitor-1")
}

func TestMilestoneHandlerSkipsRepeated(t *testing.T) {
	notifier := &fakeNotifier{enabled: true}
	handler := NewOnMilestoneCompletedHandler(notifier, nil)

	event := shared.NewMilestoneCompletedEvent("visitor-1", "demo")
	event.Repeated = true
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, notifier.messages)
}

func TestMilestoneHandlerIgnoresForeignEvents(t *testing.T) {
	notifier := &fakeNotifier{enabled: true}
	handler := NewOnMilestoneCompletedHandler(notifier, nil)

	require.NoError(t, handler.Handle(shared.NewSessionClearedEvent("visitor-1")))
	assert.Empty(t, notifier.messages)
}

func TestAnalyticsHandlerReportsGoal(t *testing.T) {
	reporter := &fakeReporter{enabled: true}
	handler := NewOnAnalyticsTrackHandler(reporter, nil)

	event := shared.NewAnalyticsTrackEvent("visitor-1", "calculator_used", nil)
	handler.deliver(context.Background(), event)

	assert.Equal(t, []string{"calculator_used"}, reporter.goals)
}

func TestVisitorRegisteredHandlerDelivers(t *testing.T) {
	notifier := &fakeNotifier{enabled: true}
	handler := NewOnVisitorRegisteredHandler(notifier, nil)

	event := shared.NewVisitorRegisteredEvent("visitor-1", "a@b.cc", "AABBCCDD", "email")
	handler.deliver(context.Background(), event)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "a@b.cc")
	assert.Contains(t, notifier.messages[0], "AABBCCDD")
}

func TestThresholdHandlerDeliversToBothChannels(t *testing.T) {
	notifier := &fakeNotifier{enabled: true}
	reporter := &fakeReporter{enabled: true}
	handler := NewOnEngagementThresholdHandler(notifier, reporter, nil)

	event := shared.NewEngagementThresholdEvent("s1", "visitor-1", "eggs_3_viewed", 42, "intermediate", 3)
	handler.deliver(context.Background(), event)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "eggs_3_viewed")
	assert.Equal(t, []string{"eggs_3_viewed"}, reporter.goals)
}

func TestThresholdHandlerToleratesDeliveryFailure(t *testing.T) {
	notifier := &fakeNotifier{enabled: true, fail: true}
	reporter := &fakeReporter{enabled: true}
	handler := NewOnEngagementThresholdHandler(notifier, reporter, nil)

	event := shared.NewEngagementThresholdEvent("s1", "visitor-1", "demo_completed", 50, "intermediate", 0)
	handler.deliver(context.Background(), event)

	// Сбой Telegram не мешает цели уйти в Метрику.
	assert.Equal(t, []string{"demo_completed"}, reporter.goals)
}
