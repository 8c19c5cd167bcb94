// Package eventhandler содержит обработчиков доменных событий.
// Все внешние доставки выполняются в режиме fire-and-forget: обработчик
// немедленно возвращает управление шине, а работа уходит в горутину со
// своим таймаутом. Сбой доставки логируется и никогда не влияет на
// локальное состояние, которое уже сохранено.
package eventhandler

import (
	"context"
	"time"
)

// Notifier - исходящий канал уведомлений операторов (Telegram).
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, html string) error
}

// GoalReporter - исходящий канал целей аналитики (Яндекс Метрика).
type GoalReporter interface {
	Enabled() bool
	ReachGoal(ctx context.Context, visitorID, goal string, params map[string]interface{}) error
}

// dispatchTimeout - бюджет времени одной внешней доставки.
const dispatchTimeout = 10 * time.Second

// dispatch запускает доставку в фоне с собственным контекстом.
func dispatch(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		fn(ctx)
	}()
}
