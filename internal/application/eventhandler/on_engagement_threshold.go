package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ENGAGEMENT THRESHOLD HANDLER
// Порог вовлечённости (пасхалки, демо, первый реферал) пересечён впервые
// за сессию. Событие уходит в оба внешних канала: операторам в Telegram
// и целью в Метрику.
// ═══════════════════════════════════════════════════════════════════════════

// OnEngagementThresholdHandler обрабатывает пересечение порога вовлечённости.
type OnEngagementThresholdHandler struct {
	notifier Notifier
	reporter GoalReporter
	logger   *slog.Logger
}

// NewOnEngagementThresholdHandler создаёт новый обработчик.
func NewOnEngagementThresholdHandler(notifier Notifier, reporter GoalReporter, logger *slog.Logger) *OnEngagementThresholdHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnEngagementThresholdHandler{
		notifier: notifier,
		reporter: reporter,
		logger:   logger.With("handler", "on_engagement_threshold"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnEngagementThresholdHandler) Handle(event shared.Event) error {
	threshold, ok := event.(shared.EngagementThresholdEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	dispatch(func(ctx context.Context) {
		h.deliver(ctx, threshold)
	})
	return nil
}

func (h *OnEngagementThresholdHandler) deliver(ctx context.Context, threshold shared.EngagementThresholdEvent) {
	if h.notifier.Enabled() {
		text := fmt.Sprintf(
			"🔥 Порог вовлечённости: <b>%s</b>\nСчёт: %d (%s)\nПасхалок: %d\nПосетитель: <code>%s</code>",
			threshold.Threshold,
			threshold.Score,
			threshold.Level,
			threshold.EggsCount,
			threshold.VisitorID,
		)
		if err := h.notifier.Notify(ctx, text); err != nil {
			h.logger.Error("telegram delivery failed",
				"threshold", threshold.Threshold,
				"visitor_id", threshold.VisitorID,
				"error", err,
			)
		}
	}

	if h.reporter.Enabled() {
		params := map[string]interface{}{
			"score":      threshold.Score,
			"level":      threshold.Level,
			"eggs_count": threshold.EggsCount,
			"session_id": threshold.SessionID,
		}
		if err := h.reporter.ReachGoal(ctx, threshold.VisitorID, threshold.Threshold, params); err != nil {
			h.logger.Error("metrika delivery failed",
				"threshold", threshold.Threshold,
				"visitor_id", threshold.VisitorID,
				"error", err,
			)
		}
	}
}
