package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON VISITOR REGISTERED HANDLER
// Регистрация в листе ожидания - главное конверсионное событие лендинга,
// о нём операторы узнают сразу.
// ═══════════════════════════════════════════════════════════════════════════

// OnVisitorRegisteredHandler обрабатывает событие регистрации посетителя.
type OnVisitorRegisteredHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewOnVisitorRegisteredHandler создаёт новый обработчик.
func NewOnVisitorRegisteredHandler(notifier Notifier, logger *slog.Logger) *OnVisitorRegisteredHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnVisitorRegisteredHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_visitor_registered"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnVisitorRegisteredHandler) Handle(event shared.Event) error {
	registered, ok := event.(shared.VisitorRegisteredEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	if !h.notifier.Enabled() {
		return nil
	}

	dispatch(func(ctx context.Context) {
		h.deliver(ctx, registered)
	})
	return nil
}

func (h *OnVisitorRegisteredHandler) deliver(ctx context.Context, registered shared.VisitorRegisteredEvent) {
	text := fmt.Sprintf(
		"📝 Новая регистрация в листе ожидания\nEmail: <code>%s</code>\nКанал: %s\nРеферальный код: <code>%s</code>",
		registered.Email,
		registered.NotifyMethod,
		registered.ReferralCode,
	)
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Error("telegram delivery failed",
			"visitor_id", registered.VisitorID,
			"error", err,
		)
	}
}
