// Package jobs contains implementations of the hub's scheduled jobs.
package jobs

import (
	"context"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SessionRegistry is the part of the engagement tracker the sweep needs.
type SessionRegistry interface {
	// Sweep evicts sessions idle past their TTL and returns how many.
	Sweep() int

	// Sessions returns the number of live sessions.
	Sessions() int
}

// SweepSessionsJob evicts stale engagement sessions. Sessions are
// ephemeral by design; without the sweep an abandoned tab would pin its
// session in memory until restart.
type SweepSessionsJob struct {
	registry SessionRegistry
	logger   *slog.Logger
}

// NewSweepSessionsJob creates the sweep job.
func NewSweepSessionsJob(registry SessionRegistry, logger *slog.Logger) *SweepSessionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepSessionsJob{
		registry: registry,
		logger:   logger.With("job", "sweep_sessions"),
	}
}

// Name returns the unique name of the job.
func (j *SweepSessionsJob) Name() string {
	return "sweep_sessions"
}

// Description returns a human-readable description of the job.
func (j *SweepSessionsJob) Description() string {
	return "Evicts engagement sessions idle past their TTL"
}

// Run executes one sweep pass.
func (j *SweepSessionsJob) Run(ctx context.Context) error {
	evicted := j.registry.Sweep()
	remaining := j.registry.Sessions()

	if evicted > 0 {
		j.logger.Info("stale sessions evicted",
			"evicted", evicted,
			"remaining", remaining,
		)
	}
	return nil
}
