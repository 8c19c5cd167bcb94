// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// The landing page calls this on every load to restore the visitor state.
// The query never fails: a broken backend yields a default record.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery identifies the visitor asking for their state.
type GetProgressQuery struct {
	// VisitorID is the client-cached identifier; empty means a first visit.
	VisitorID string

	// SessionToken is the optional restore token issued at registration.
	SessionToken string
}

// GetProgressResult is the restored visitor state.
type GetProgressResult struct {
	Record *progress.Record

	// CompletionPercent is the display percentage, referral bonuses
	// included (may exceed 100).
	CompletionPercent int

	// Restored reports whether the logged-in state came back via the
	// session token.
	Restored bool
}

// GetProgressHandler handles the GetProgressQuery.
type GetProgressHandler struct {
	store   progress.Store
	weights progress.Weights
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(store progress.Store, weights progress.Weights) *GetProgressHandler {
	return &GetProgressHandler{store: store, weights: weights}
}

// Handle executes the get progress query. When the visitor has no cached
// identifier a new one is minted and returned inside the record.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*GetProgressResult, error) {
	if q.VisitorID == "" {
		visitorID := h.store.VisitorID(ctx)
		record := h.store.Load(ctx, progress.LoadHints{VisitorID: visitorID})
		return &GetProgressResult{
			Record:            record,
			CompletionPercent: progress.CompletionPercent(record, h.weights).Int(),
		}, nil
	}

	record := h.store.Load(ctx, progress.LoadHints{
		VisitorID:    q.VisitorID,
		SessionToken: q.SessionToken,
	})

	return &GetProgressResult{
		Record:            record,
		CompletionPercent: progress.CompletionPercent(record, h.weights).Int(),
		Restored:          q.SessionToken != "" && record.IsLoggedIn,
	}, nil
}
