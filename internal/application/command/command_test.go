package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/kv"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/progressstore"
)

// capturingPublisher записывает опубликованные события для проверок.
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(eventType shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []shared.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func newFixture(t *testing.T) (progress.Store, *capturingPublisher) {
	t.Helper()
	store := progressstore.New(kv.NewMemoryStore(), nil)
	return store, &capturingPublisher{}
}

func validForm() progress.RegistrationForm {
	return progress.RegistrationForm{
		Email:          "visitor@example.com",
		Disease:        "diabetes",
		Problem:        "budget tracking",
		NotifyMethod:   "telegram",
		ContactDetails: "@remedia_fan",
		AgreeTerms:     true,
	}
}

// ─────────────────────────────────────────────────────────────────────────
// CompleteMilestone
// ─────────────────────────────────────────────────────────────────────────

func TestCompleteMilestoneSetsFlag(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewCompleteMilestoneHandler(store, pub, progress.DefaultWeights())

	result, err := handler.Handle(context.Background(), CompleteMilestoneCommand{
		VisitorID: "visitor-1",
		Step:      "demo",
	})

	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, result.Record.Demo)
	assert.Equal(t, 20, result.CompletionPercent)

	events := pub.byType(shared.EventMilestoneCompleted)
	require.Len(t, events, 1)
	assert.False(t, events[0].(shared.MilestoneCompletedEvent).Repeated)
}

func TestCompleteMilestoneIdempotent(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewCompleteMilestoneHandler(store, pub, progress.DefaultWeights())
	ctx := context.Background()

	first, err := handler.Handle(ctx, CompleteMilestoneCommand{VisitorID: "visitor-1", Step: "calculator"})
	require.NoError(t, err)
	second, err := handler.Handle(ctx, CompleteMilestoneCommand{VisitorID: "visitor-1", Step: "calculator"})
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, first.CompletionPercent, second.CompletionPercent)

	// Повторное событие публикуется, но помечено repeated.
	events := pub.byType(shared.EventMilestoneCompleted)
	require.Len(t, events, 2)
	assert.True(t, events[1].(shared.MilestoneCompletedEvent).Repeated)
}

func TestCompleteMilestoneRejectsUnknownStep(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewCompleteMilestoneHandler(store, pub, progress.DefaultWeights())

	_, err := handler.Handle(context.Background(), CompleteMilestoneCommand{
		VisitorID: "visitor-1",
		Step:      "teleport",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidMilestone)
	assert.Empty(t, pub.byType(shared.EventMilestoneCompleted))
}

func TestCompleteMilestonePublishesAnalyticsGoal(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewCompleteMilestoneHandler(store, pub, progress.DefaultWeights())

	_, err := handler.Handle(context.Background(), CompleteMilestoneCommand{
		VisitorID: "visitor-1",
		Step:      "demo",
	})
	require.NoError(t, err)

	tracks := pub.byType(shared.EventAnalyticsTrack)
	require.Len(t, tracks, 1)
	assert.Equal(t, "demo_chat_completed", tracks[0].(shared.AnalyticsTrackEvent).Goal)
}

// ─────────────────────────────────────────────────────────────────────────
// RegisterReferral
// ─────────────────────────────────────────────────────────────────────────

func TestRegisterReferralGrowsMonotonically(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewRegisterReferralHandler(store, pub, progress.DefaultWeights())
	ctx := context.Background()

	for expect := 1; expect <= 5; expect++ {
		result, err := handler.Handle(ctx, RegisterReferralCommand{VisitorID: "visitor-1"})
		require.NoError(t, err)
		assert.Equal(t, expect, result.ReferralCount)
	}

	// Бонус рефералов поднимает отображаемый процент выше 100.
	result, err := handler.Handle(ctx, RegisterReferralCommand{VisitorID: "visitor-1"})
	require.NoError(t, err)
	assert.Equal(t, 6, result.ReferralCount)
	assert.Equal(t, 120, result.CompletionPercent)
	assert.Len(t, pub.byType(shared.EventReferralRegistered), 6)
}

// ─────────────────────────────────────────────────────────────────────────
// ClaimRegistration
// ─────────────────────────────────────────────────────────────────────────

func TestClaimRegistrationHappyPath(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewClaimRegistrationHandler(store, pub, progress.DefaultWeights())

	result, err := handler.Handle(context.Background(), ClaimRegistrationCommand{
		VisitorID: "visitor-1",
		Form:      validForm(),
	})

	require.NoError(t, err)
	assert.True(t, result.Record.IsLoggedIn)
	assert.Equal(t, "visitor@example.com", result.Record.Email)
	assert.True(t, result.Record.Waitlist)
	assert.NotEmpty(t, result.SessionToken)
	assert.Len(t, result.ReferralCode, 8)

	// Выданный токен восстанавливает запись.
	restored := store.Load(context.Background(), progress.LoadHints{
		VisitorID:    "visitor-1",
		SessionToken: result.SessionToken,
	})
	assert.True(t, restored.IsLoggedIn)

	registered := pub.byType(shared.EventVisitorRegistered)
	require.Len(t, registered, 1)
	assert.Equal(t, "telegram", registered[0].(shared.VisitorRegisteredEvent).NotifyMethod)
}

func TestClaimRegistrationInvalidFormLeavesRecordUntouched(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewClaimRegistrationHandler(store, pub, progress.DefaultWeights())
	ctx := context.Background()

	form := validForm()
	form.Email = "not-an-email"
	form.AgreeTerms = false

	_, err := handler.Handle(ctx, ClaimRegistrationCommand{VisitorID: "visitor-1", Form: form})

	require.Error(t, err)
	var verrs shared.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "email")
	assert.Contains(t, verrs, "agree_terms")
	assert.NotContains(t, verrs, "disease")

	record := store.Load(ctx, progress.LoadHints{VisitorID: "visitor-1"})
	assert.False(t, record.IsLoggedIn)
	assert.False(t, record.Waitlist)
	assert.Empty(t, pub.byType(shared.EventVisitorRegistered))
}

func TestClaimRegistrationSecondAttemptConflicts(t *testing.T) {
	store, pub := newFixture(t)
	handler := NewClaimRegistrationHandler(store, pub, progress.DefaultWeights())
	ctx := context.Background()

	_, err := handler.Handle(ctx, ClaimRegistrationCommand{VisitorID: "visitor-1", Form: validForm()})
	require.NoError(t, err)

	// Повторная регистрация того же посетителя отклоняется как конфликт.
	_, err = handler.Handle(ctx, ClaimRegistrationCommand{VisitorID: "visitor-1", Form: validForm()})
	require.ErrorIs(t, err, shared.ErrAlreadyRegistered)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.Len(t, pub.byType(shared.EventVisitorRegistered), 1)
}

func TestClaimRegistrationReferralCodeDeterministic(t *testing.T) {
	ctx := context.Background()

	run := func(visitorID string) string {
		store, pub := newFixture(t)
		handler := NewClaimRegistrationHandler(store, pub, progress.DefaultWeights())
		result, err := handler.Handle(ctx, ClaimRegistrationCommand{VisitorID: visitorID, Form: validForm()})
		require.NoError(t, err)
		return result.ReferralCode
	}

	assert.Equal(t, run("visitor-a"), run("visitor-b"))
}

// ─────────────────────────────────────────────────────────────────────────
// ClearSession
// ─────────────────────────────────────────────────────────────────────────

func TestClearSessionKeepsRecord(t *testing.T) {
	store, pub := newFixture(t)
	ctx := context.Background()

	claim := NewClaimRegistrationHandler(store, pub, progress.DefaultWeights())
	claimed, err := claim.Handle(ctx, ClaimRegistrationCommand{VisitorID: "visitor-1", Form: validForm()})
	require.NoError(t, err)

	clear := NewClearSessionHandler(store, pub)
	require.NoError(t, clear.Handle(ctx, ClearSessionCommand{VisitorID: "visitor-1"}))

	// Токен больше не работает, но запись пережила logout.
	record := store.Load(ctx, progress.LoadHints{
		VisitorID:    "visitor-1",
		SessionToken: claimed.SessionToken,
	})
	assert.True(t, record.Waitlist)
	assert.Len(t, pub.byType(shared.EventSessionCleared), 1)
}
