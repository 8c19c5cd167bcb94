// Package scheduler runs the hub's background jobs: engagement session
// sweeping and the daily operations digest. Scheduling is delegated to
// gocron; this package owns job wrapping, timeouts and run accounting.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job.
	// The context is cancelled when the scheduler is stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains scheduler configuration.
type Config struct {
	// Timezone is the IANA name used for cron expressions.
	Timezone string

	// SweepInterval is how often stale engagement sessions are evicted.
	SweepInterval time.Duration

	// DigestCron is the cron expression for the daily operations digest.
	DigestCron string

	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timezone:      "Europe/Moscow",
		SweepInterval: 5 * time.Minute,
		DigestCron:    "0 21 * * *",
		JobTimeout:    time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	cron   *gocron.Scheduler
	config Config
	logger *slog.Logger

	mu       sync.RWMutex
	lastRuns map[string]JobResult
}

// New creates a scheduler in the configured timezone.
func New(config Config, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", config.Timezone, err)
	}

	cron := gocron.NewScheduler(loc)
	cron.SingletonModeAll()

	return &Scheduler{
		cron:     cron,
		config:   config,
		logger:   logger.With("component", "scheduler"),
		lastRuns: make(map[string]JobResult),
	}, nil
}

// AddInterval schedules a job on a fixed interval.
func (s *Scheduler) AddInterval(job Job, every time.Duration) error {
	_, err := s.cron.Every(every).Tag(job.Name()).Do(s.wrap(job))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}

	s.logger.Info("job scheduled",
		"job", job.Name(),
		"every", every.String(),
		"description", job.Description(),
	)
	return nil
}

// AddCron schedules a job on a cron expression.
func (s *Scheduler) AddCron(job Job, expr string) error {
	_, err := s.cron.Cron(expr).Tag(job.Name()).Do(s.wrap(job))
	if err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}

	s.logger.Info("job scheduled",
		"job", job.Name(),
		"cron", expr,
		"description", job.Description(),
	)
	return nil
}

// wrap adapts a Job to a gocron task with timeout and run accounting.
func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
		defer cancel()

		result := JobResult{
			JobName:   job.Name(),
			StartedAt: time.Now(),
		}

		err := job.Run(ctx)

		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
		result.Success = err == nil
		result.Error = err

		s.mu.Lock()
		s.lastRuns[job.Name()] = result
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("job failed",
				"job", job.Name(),
				"duration", result.Duration.String(),
				"error", err,
			)
			return
		}

		s.logger.Debug("job completed",
			"job", job.Name(),
			"duration", result.Duration.String(),
		)
	}
}

// Start begins executing scheduled jobs asynchronously.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", "jobs", len(s.cron.Jobs()))
	s.cron.StartAsync()
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	return s.cron.IsRunning()
}

// LastRun returns the most recent result for a job, if it has run.
func (s *Scheduler) LastRun(jobName string) (JobResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.lastRuns[jobName]
	return result, ok
}
