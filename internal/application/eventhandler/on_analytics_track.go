package eventhandler

import (
	"context"
	"log/slog"

	"github.com/vote-vog/remedia-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ANALYTICS TRACK HANDLER
// Пересылает цели в Яндекс Метрику. Каждая цель - best effort: локальная
// запись уже сохранена, потерянный хит не ломает ничего.
// ═══════════════════════════════════════════════════════════════════════════

// OnAnalyticsTrackHandler обрабатывает событие аналитики.
type OnAnalyticsTrackHandler struct {
	reporter GoalReporter
	logger   *slog.Logger
}

// NewOnAnalyticsTrackHandler создаёт новый обработчик.
func NewOnAnalyticsTrackHandler(reporter GoalReporter, logger *slog.Logger) *OnAnalyticsTrackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnAnalyticsTrackHandler{
		reporter: reporter,
		logger:   logger.With("handler", "on_analytics_track"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnAnalyticsTrackHandler) Handle(event shared.Event) error {
	track, ok := event.(shared.AnalyticsTrackEvent)
	if !ok {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	if !h.reporter.Enabled() {
		return nil
	}

	dispatch(func(ctx context.Context) {
		h.deliver(ctx, track)
	})
	return nil
}

func (h *OnAnalyticsTrackHandler) deliver(ctx context.Context, track shared.AnalyticsTrackEvent) {
	if err := h.reporter.ReachGoal(ctx, track.VisitorID, track.Goal, track.Params); err != nil {
		h.logger.Error("metrika delivery failed",
			"goal", track.Goal,
			"visitor_id", track.VisitorID,
			"error", err,
		)
	}
}
