// Package tracker is the application service behind the engagement API.
// It folds session actions and the persisted progress record into a score,
// a discrete level, and one-shot threshold events.
package tracker

import (
	"context"
	"time"

	"github.com/vote-vog/remedia-hub/internal/domain/engagement"
	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// TrackCommand is one reported engagement action.
type TrackCommand struct {
	// SessionID is the page-session identifier generated by the landing page.
	SessionID string

	// VisitorID is the client-cached visitor identifier.
	VisitorID string

	// SessionToken is the optional restore token issued at registration.
	SessionToken string

	// Action is one of the engagement action names.
	Action string

	// EggID identifies the easter egg for easter_egg_viewed actions.
	EggID string
}

// Validate validates the command.
func (c TrackCommand) Validate() error {
	if c.SessionID == "" {
		return shared.NewDomainError("engagement", "Track", shared.ErrValidation, "session_id is required")
	}
	if c.VisitorID == "" {
		return shared.ErrInvalidVisitorID
	}
	if c.Action == "" {
		return shared.NewDomainError("engagement", "Track", shared.ErrValidation, "action is required")
	}
	return nil
}

// TrackResult is the engagement state after one action.
type TrackResult struct {
	Score     int                 `json:"score"`
	Level     string              `json:"level"`
	EggsCount int                 `json:"eggs_count"`
	Session   engagement.Snapshot `json:"session"`

	// Thresholds holds the one-shot thresholds first crossed by this call.
	Thresholds []string `json:"thresholds,omitempty"`
}

// Tracker coordinates the session registry, the score formula, and the
// event bus.
type Tracker struct {
	registry  *engagement.Registry
	store     progress.Store
	publisher shared.EventPublisher
	config    engagement.ScoreConfig
	weights   progress.Weights
	now       func() time.Time
}

// New creates a Tracker.
func New(registry *engagement.Registry, store progress.Store, publisher shared.EventPublisher, config engagement.ScoreConfig, weights progress.Weights) *Tracker {
	return &Tracker{
		registry:  registry,
		store:     store,
		publisher: publisher,
		config:    config,
		weights:   weights,
		now:       time.Now,
	}
}

// WithClock replaces the time source for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Track records an action and returns the recomputed engagement state.
// Threshold events are published while the session is held, so a given
// threshold fires at most once per session even under concurrent calls.
func (t *Tracker) Track(ctx context.Context, cmd TrackCommand) (*TrackResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record := t.store.Load(ctx, progress.LoadHints{
		VisitorID:    cmd.VisitorID,
		SessionToken: cmd.SessionToken,
	})

	inputs := engagement.Inputs{
		CompletionPercent: progress.CompletionPercent(record, t.weights),
		DemoDone:          record.Demo,
		CalculatorDone:    record.Calculator,
		CreditUsed:        record.CalculatorCredit,
		ReferralCount:     record.ReferralCount,
	}

	var result TrackResult
	var events []shared.Event

	t.registry.Do(cmd.SessionID, cmd.VisitorID, func(session *engagement.Session) {
		now := t.now()
		session.RecordAction(cmd.Action, cmd.EggID, now)

		score := engagement.Score(t.config, session, inputs, now)
		session.NoteScore(score)
		level := engagement.LevelFor(score)

		crossed := engagement.CrossedThresholds(session, inputs)
		for _, threshold := range crossed {
			events = append(events, shared.NewEngagementThresholdEvent(
				session.ID,
				session.VisitorID,
				threshold,
				score,
				string(level),
				session.EggsCount(),
			))
		}

		result = TrackResult{
			Score:      score,
			Level:      string(level),
			EggsCount:  session.EggsCount(),
			Session:    session.Snapshot(now),
			Thresholds: crossed,
		}
	})

	for _, event := range events {
		_ = t.publisher.Publish(event)
	}

	return &result, nil
}

// Sessions returns the number of live sessions, for health reporting.
func (t *Tracker) Sessions() int {
	return t.registry.Len()
}

// Sweep evicts idle sessions and returns the number removed.
func (t *Tracker) Sweep() int {
	return t.registry.Sweep()
}
