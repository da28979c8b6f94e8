// Package retention periodically removes old AI raw-output logs and finished jobs.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "@daily"
	DefaultMaxAge   = 7 * 24 * time.Hour
)

// JobPurger deletes stored jobs that finished before cutoff.
type JobPurger interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryPruner drops finished jobs from an in-memory cache.
type MemoryPruner interface {
	PruneFinished(cutoff time.Time) int
}

// Config selects what the sweeper cleans.
type Config struct {
	// LogDir holds raw model output files. Empty skips log cleanup.
	LogDir string
	// LogPrefix limits log cleanup to files starting with it.
	LogPrefix string
	MaxAge    time.Duration
	Purgers   []JobPurger
	Pruner    MemoryPruner
}

// Result counts what one sweep removed.
type Result struct {
	Logs   int
	Jobs   int
	Pruned int
}

// Sweeper runs sweeps on demand or on a cron schedule.
type Sweeper struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mutex sync.Mutex
	cron  *cron.Cron
}

func New(cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}

	return &Sweeper{
		cfg:    cfg,
		logger: logger.With("module", "retention"),
		now:    time.Now,
	}
}

// Sweep removes everything older than the configured age. Errors from one
// target do not stop the others; they are joined in the returned error.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	cutoff := s.now().Add(-s.cfg.MaxAge)

	var (
		result Result
		errs   []error
	)

	if s.cfg.LogDir != "" {
		n, err := s.sweepLogs(cutoff)
		result.Logs = n

		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range s.cfg.Purgers {
		n, err := p.DeleteFinishedBefore(ctx, cutoff)
		result.Jobs += n

		if err != nil {
			errs = append(errs, err)
		}
	}

	if s.cfg.Pruner != nil {
		result.Pruned = s.cfg.Pruner.PruneFinished(cutoff)
	}

	s.logger.InfoContext(ctx, "Retention sweep finished",
		"logs", result.Logs, "jobs", result.Jobs, "pruned", result.Pruned, "cutoff", cutoff)

	return result, errors.Join(errs...)
}

func (s *Sweeper) sweepLogs(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.cfg.LogDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, s.cfg.LogPrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.cfg.LogDir, name)); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}

		removed++
	}

	return removed, nil
}

// Start schedules sweeps with a standard cron expression or descriptor such as "@daily".
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid retention schedule '%s': %w", spec, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := c.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	c.Start()
	s.cron = c

	s.logger.InfoContext(ctx, "Retention sweeper started", "schedule", spec, "max_age", s.cfg.MaxAge)

	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (s *Sweeper) Stop() {
	s.mutex.Lock()
	c := s.cron
	s.cron = nil
	s.mutex.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
