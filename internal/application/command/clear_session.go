package command

import (
	"context"
	"fmt"

	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR SESSION COMMAND
// Logout removes only the session pointer. The progress record itself
// survives so the anonymous identifier keeps its history.
// ══════════════════════════════════════════════════════════════════════════════

// ClearSessionCommand identifies the visitor logging out.
type ClearSessionCommand struct {
	VisitorID string
}

// Validate validates the command.
func (c ClearSessionCommand) Validate() error {
	if c.VisitorID == "" {
		return shared.ErrInvalidVisitorID
	}
	return nil
}

// ClearSessionHandler handles the ClearSessionCommand.
type ClearSessionHandler struct {
	store     progress.Store
	publisher shared.EventPublisher
}

// NewClearSessionHandler creates a new ClearSessionHandler.
func NewClearSessionHandler(store progress.Store, publisher shared.EventPublisher) *ClearSessionHandler {
	return &ClearSessionHandler{store: store, publisher: publisher}
}

// Handle executes the clear session command.
func (h *ClearSessionHandler) Handle(ctx context.Context, cmd ClearSessionCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	if err := h.store.ClearSession(ctx, cmd.VisitorID); err != nil {
		return fmt.Errorf("clear_session: %w", err)
	}

	_ = h.publisher.Publish(shared.NewSessionClearedEvent(cmd.VisitorID))
	return nil
}
