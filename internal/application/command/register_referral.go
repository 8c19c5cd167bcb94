package command

import (
	"context"
	"fmt"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER REFERRAL COMMAND
// Attributes a share action to the visitor. The counter only grows; there
// is no upper bound here, the display percentage clamps on read.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterReferralCommand contains the data to register a referral.
type RegisterReferralCommand struct {
	VisitorID    string
	SessionToken string
}

// Validate validates the command.
func (c RegisterReferralCommand) Validate() error {
	if c.VisitorID == "" {
		return shared.ErrInvalidVisitorID
	}
	return nil
}

// RegisterReferralResult contains the result of registering a referral.
type RegisterReferralResult struct {
	Record            *progress.Record
	ReferralCount     int
	CompletionPercent int
}

// RegisterReferralHandler handles the RegisterReferralCommand.
type RegisterReferralHandler struct {
	store     progress.Store
	publisher shared.EventPublisher
	weights   progress.Weights
}

// NewRegisterReferralHandler creates a new RegisterReferralHandler.
func NewRegisterReferralHandler(store progress.Store, publisher shared.EventPublisher, weights progress.Weights) *RegisterReferralHandler {
	return &RegisterReferralHandler{
		store:     store,
		publisher: publisher,
		weights:   weights,
	}
}

// Handle executes the register referral command.
func (h *RegisterReferralHandler) Handle(ctx context.Context, cmd RegisterReferralCommand) (*RegisterReferralResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record := h.store.Load(ctx, progress.LoadHints{
		VisitorID:    cmd.VisitorID,
		SessionToken: cmd.SessionToken,
	})

	updated := record.Clone()
	count := updated.RegisterReferral()

	if err := h.store.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("register_referral: save failed: %w", err)
	}

	_ = h.publisher.Publish(shared.NewReferralRegisteredEvent(updated.VisitorID, count))
	_ = h.publisher.Publish(shared.NewAnalyticsTrackEvent(updated.VisitorID, "referral_shared", map[string]interface{}{
		"referral_count": count,
	}))

	return &RegisterReferralResult{
		Record:            updated,
		ReferralCount:     count,
		CompletionPercent: progress.CompletionPercent(updated, h.weights).Int(),
	}, nil
}
