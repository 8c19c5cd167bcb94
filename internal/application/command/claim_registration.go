package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REGISTRATION COMMAND
// The waitlist form is the only transition from anonymous to identified.
// Validation happens entirely before any mutation: an invalid form leaves
// the progress record exactly as it was.
// ══════════════════════════════════════════════════════════════════════════════

// ClaimRegistrationCommand contains the waitlist form submission.
type ClaimRegistrationCommand struct {
	VisitorID    string
	SessionToken string
	Form         progress.RegistrationForm
}

// ClaimRegistrationResult contains the result of a successful registration.
type ClaimRegistrationResult struct {
	Record *progress.Record

	// SessionToken is the raw restore token, returned exactly once.
	// Only its hash is persisted.
	SessionToken string

	ReferralCode      string
	CompletionPercent int
}

// ClaimRegistrationHandler handles the ClaimRegistrationCommand.
type ClaimRegistrationHandler struct {
	store     progress.Store
	publisher shared.EventPublisher
	weights   progress.Weights
}

// NewClaimRegistrationHandler creates a new ClaimRegistrationHandler.
func NewClaimRegistrationHandler(store progress.Store, publisher shared.EventPublisher, weights progress.Weights) *ClaimRegistrationHandler {
	return &ClaimRegistrationHandler{
		store:     store,
		publisher: publisher,
		weights:   weights,
	}
}

// Handle executes the claim registration command. A validation failure is
// returned as shared.ValidationErrors with the per-field taxonomy intact.
func (h *ClaimRegistrationHandler) Handle(ctx context.Context, cmd ClaimRegistrationCommand) (*ClaimRegistrationResult, error) {
	if cmd.VisitorID == "" {
		return nil, shared.ErrInvalidVisitorID
	}
	if err := cmd.Form.Validate(); err != nil {
		return nil, err
	}

	record := h.store.Load(ctx, progress.LoadHints{
		VisitorID:    cmd.VisitorID,
		SessionToken: cmd.SessionToken,
	})
	if record.IsLoggedIn {
		// Registration is a one-way transition; repeating it would
		// mint a new session token and re-fire waitlist events.
		return nil, shared.ErrAlreadyRegistered
	}

	updated := record.Clone()
	updated.ApplyRegistration(cmd.Form.NormalizedEmail())

	if err := h.store.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("claim_registration: save failed: %w", err)
	}

	rawToken := uuid.NewString() + uuid.NewString()
	if err := h.store.SaveSession(ctx, updated, rawToken); err != nil {
		return nil, fmt.Errorf("claim_registration: session save failed: %w", err)
	}

	_ = h.publisher.Publish(shared.NewVisitorRegisteredEvent(
		updated.VisitorID,
		updated.Email,
		updated.ReferralCode,
		string(cmd.Form.Method()),
	))
	_ = h.publisher.Publish(shared.NewAnalyticsTrackEvent(updated.VisitorID, "waitlist_joined", map[string]interface{}{
		"notify_method": string(cmd.Form.Method()),
	}))

	return &ClaimRegistrationResult{
		Record:            updated,
		SessionToken:      rawToken,
		ReferralCode:      updated.ReferralCode,
		CompletionPercent: progress.CompletionPercent(updated, h.weights).Int(),
	}, nil
}
