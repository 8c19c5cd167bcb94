// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE MILESTONE COMMAND
// A landing-page section reports that the visitor finished it. The flag is
// monotonic: a repeated completion changes nothing but is still published
// so analytics can count repeat interest.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMilestoneCommand contains the data to complete a milestone.
type CompleteMilestoneCommand struct {
	// VisitorID is the client-cached visitor identifier.
	VisitorID string

	// SessionToken is the optional restore token issued at registration.
	SessionToken string

	// Step is the milestone name as sent by the landing page.
	Step string
}

// Validate validates the command.
func (c CompleteMilestoneCommand) Validate() error {
	if c.VisitorID == "" {
		return shared.ErrInvalidVisitorID
	}
	if _, err := progress.ParseStep(c.Step); err != nil {
		return err
	}
	return nil
}

// CompleteMilestoneResult contains the result of completing a milestone.
type CompleteMilestoneResult struct {
	// Record is the progress record after the command.
	Record *progress.Record

	// Changed reports whether the flag flipped in this call.
	Changed bool

	// CompletionPercent is the display percentage after the command.
	CompletionPercent int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMilestoneHandler handles the CompleteMilestoneCommand.
type CompleteMilestoneHandler struct {
	store     progress.Store
	publisher shared.EventPublisher
	weights   progress.Weights
}

// NewCompleteMilestoneHandler creates a new CompleteMilestoneHandler.
func NewCompleteMilestoneHandler(store progress.Store, publisher shared.EventPublisher, weights progress.Weights) *CompleteMilestoneHandler {
	return &CompleteMilestoneHandler{
		store:     store,
		publisher: publisher,
		weights:   weights,
	}
}

// Handle executes the complete milestone command.
func (h *CompleteMilestoneHandler) Handle(ctx context.Context, cmd CompleteMilestoneCommand) (*CompleteMilestoneResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record := h.store.Load(ctx, progress.LoadHints{
		VisitorID:    cmd.VisitorID,
		SessionToken: cmd.SessionToken,
	})

	step := progress.Step(cmd.Step)
	updated := record.Clone()
	changed, err := updated.CompleteMilestone(step)
	if err != nil {
		return nil, err
	}

	if changed {
		if err := h.store.Save(ctx, updated); err != nil {
			return nil, fmt.Errorf("complete_milestone: save failed: %w", err)
		}
	} else {
		updated = record
	}

	event := shared.NewMilestoneCompletedEvent(updated.VisitorID, cmd.Step)
	event.Repeated = !changed
	_ = h.publisher.Publish(event)

	if goal := GoalForStep(step); goal != "" {
		_ = h.publisher.Publish(shared.NewAnalyticsTrackEvent(updated.VisitorID, goal, map[string]interface{}{
			"step":     cmd.Step,
			"repeated": !changed,
		}))
	}

	return &CompleteMilestoneResult{
		Record:            updated,
		Changed:           changed,
		CompletionPercent: progress.CompletionPercent(updated, h.weights).Int(),
	}, nil
}

// milestoneGoals maps milestone steps to analytics goal names.
var milestoneGoals = map[progress.Step]string{
	progress.StepDemo:             "demo_chat_completed",
	progress.StepCalculator:       "calculator_used",
	progress.StepCalculatorCredit: "calculator_credit_used",
	progress.StepFeedback:         "feedback_submitted",
	progress.StepWaitlist:         "waitlist_joined",
}

// GoalForStep returns the analytics goal name for a milestone step.
func GoalForStep(step progress.Step) string {
	return milestoneGoals[step]
}
