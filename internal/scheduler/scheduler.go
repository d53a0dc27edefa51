// Package scheduler triggers sweeps on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
	"github.com/JakeFAU/cnii-sentinel/internal/sweep"
)

// Modes.
const (
	ModeInterval = "interval"
	ModeDaily    = "daily"
)

// SweepRunner runs one sweep. sweep.Runner satisfies it.
type SweepRunner interface {
	Run(ctx context.Context, extraZone string) (sentinel.Report, error)
}

// Config selects the schedule.
type Config struct {
	Mode     string
	Interval time.Duration
	// DailyAt is HH:MM in Timezone.
	DailyAt  string
	Timezone string
}

// Scheduler owns a cron instance with a single sweep job.
type Scheduler struct {
	cron   *cron.Cron
	runner SweepRunner
	logger *zap.Logger
	spec   string

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	runs int
}

// Spec renders the cron expression and location for cfg.
func Spec(cfg Config) (string, *time.Location, error) {
	switch cfg.Mode {
	case ModeInterval:
		if cfg.Interval <= 0 {
			return "", nil, errors.New("interval must be > 0")
		}
		return "@every " + cfg.Interval.String(), time.UTC, nil
	case ModeDaily, "":
		at, err := time.Parse("15:04", cfg.DailyAt)
		if err != nil {
			return "", nil, fmt.Errorf("daily time %q: %w", cfg.DailyAt, err)
		}
		tz := cfg.Timezone
		if tz == "" {
			tz = "Africa/Lagos"
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return "", nil, fmt.Errorf("load timezone: %w", err)
		}
		return fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()), loc, nil
	default:
		return "", nil, fmt.Errorf("unsupported mode %q", cfg.Mode)
	}
}

// New validates cfg and registers the sweep job. Call Start to begin.
func New(runner SweepRunner, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler requires a runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	spec, loc, err := Spec(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
		logger: logger,
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	s.cron.Start()
}

// Stop prevents new ticks and waits for a running sweep. If ctx expires
// first the sweep's context is canceled and ctx.Err is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done.Done()
		return ctx.Err()
	}
}

// Runs reports how many ticks have fired.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	report, err := s.runner.Run(s.ctx, "")
	switch {
	case errors.Is(err, sweep.ErrSweepInProgress):
		s.logger.Info("scheduled sweep skipped: sweep already running")
	case err != nil:
		s.logger.Error("scheduled sweep failed", zap.Error(err))
	default:
		s.logger.Info("scheduled sweep complete",
			zap.String("report_id", report.ID),
			zap.String("summary", report.Summary),
		)
	}
}
