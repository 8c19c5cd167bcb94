package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/kv"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY DIGEST JOB
// ══════════════════════════════════════════════════════════════════════════════

// CounterSource reads the landing display counter.
type CounterSource interface {
	GetCounter(ctx context.Context, key string) (int64, error)
}

// Notifier delivers the digest to the operations channel.
type Notifier interface {
	// Enabled reports whether delivery is configured.
	Enabled() bool

	// NotifySilent sends a message without a notification sound.
	NotifySilent(ctx context.Context, html string) error
}

// DailyDigestJob sends a short operations summary to the team channel
// once a day: the display counter, its daily delta and how many
// engagement sessions are live. Delivered silently so the nightly run
// does not wake anyone.
type DailyDigestJob struct {
	counter  CounterSource
	registry SessionRegistry
	notifier Notifier
	logger   *slog.Logger

	// mu guards lastCount between runs for the daily delta.
	mu        sync.Mutex
	lastCount int64
	hasLast   bool
}

// NewDailyDigestJob creates the digest job.
func NewDailyDigestJob(counter CounterSource, registry SessionRegistry, notifier Notifier, logger *slog.Logger) *DailyDigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyDigestJob{
		counter:  counter,
		registry: registry,
		notifier: notifier,
		logger:   logger.With("job", "daily_digest"),
	}
}

// Name returns the unique name of the job.
func (j *DailyDigestJob) Name() string {
	return "daily_digest"
}

// Description returns a human-readable description of the job.
func (j *DailyDigestJob) Description() string {
	return "Sends the daily operations summary to the team channel"
}

// Run composes and delivers one digest.
func (j *DailyDigestJob) Run(ctx context.Context) error {
	if j.notifier == nil || !j.notifier.Enabled() {
		j.logger.Debug("digest skipped, notifier not configured")
		return nil
	}

	count, err := j.counter.GetCounter(ctx, kv.CounterDisplay)
	if err != nil {
		return fmt.Errorf("read display counter: %w", err)
	}

	j.mu.Lock()
	delta := int64(0)
	if j.hasLast {
		delta = count - j.lastCount
	}
	j.lastCount = count
	j.hasLast = true
	j.mu.Unlock()

	html := fmt.Sprintf(
		"📊 <b>Дневная сводка Remedia</b>\n%s\n\nСчётчик на лендинге: <b>%d</b> (%+d за сутки)\nАктивных сессий: <b>%d</b>",
		time.Now().Format("02.01.2006"),
		count,
		delta,
		j.registry.Sessions(),
	)

	if err := j.notifier.NotifySilent(ctx, html); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	j.logger.Info("digest sent", "count", count, "delta", delta)
	return nil
}
