package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MILESTONE COMPLETED HANDLER
// Сообщает операторам в Telegram о первой завершённой вехе посетителя.
// Повторные завершения не шумят в канал: флаг уже стоял.
// ═══════════════════════════════════════════════════════════════════════════

// OnMilestoneCompletedHandler обрабатывает событие завершения вехи.
type OnMilestoneCompletedHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewOnMilestoneCompletedHandler создаёт новый обработчик.
func NewOnMilestoneCompletedHandler(notifier Notifier, logger *slog.Logger) *OnMilestoneCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnMilestoneCompletedHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_milestone_completed"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnMilestoneCompletedHandler) Handle(event shared.Event) error {
	milestone, ok := event.(shared.MilestoneCompletedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	if milestone.Repeated || !h.notifier.Enabled() {
		return nil
	}

	dispatch(func(ctx context.Context) {
		h.deliver(ctx, milestone)
	})
	return nil
}

// deliver выполняет собственно доставку. Выделено для прямого вызова в тестах.
func (h *OnMilestoneCompletedHandler) deliver(ctx context.Context, milestone shared.MilestoneCompletedEvent) {
	text := fmt.Sprintf("🎯 Веха <b>%s</b>\nПосетитель: <code>%s</code>", milestone.Step, milestone.VisitorID)
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Error("telegram delivery failed",
			"step", milestone.Step,
			"visitor_id", milestone.VisitorID,
			"error", err,
		)
	}
}
