package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes workspace files left behind by crashed or interrupted deliveries.
// It owns a cron scheduler that other maintenance tasks can be registered on.
type Sweeper struct {
	cron      *cron.Cron
	workspace *Workspace
	maxAge    time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewSweeper creates a Sweeper for files older than maxAge.
func NewSweeper(workspace *Workspace, maxAge time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}

	return &Sweeper{
		cron:      cron.New(cron.WithSeconds()),
		workspace: workspace,
		maxAge:    maxAge,
		log:       log,
		now:       time.Now,
	}
}

// Start sweeps once and then on the given cron schedule.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.Sweep(); err != nil {
		s.log.Error("initial artifact sweep failed", slog.Any("error", err))
	}

	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(); err != nil {
			s.log.Error("artifact sweep failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("register artifact sweep: %w", err)
	}

	s.cron.Start()
	s.log.Info("artifact sweeper started", slog.String("schedule", spec), slog.String("dir", s.workspace.Dir()))
	return nil
}

// Schedule registers an additional maintenance task on the sweeper's scheduler.
func (s *Sweeper) Schedule(spec, name string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// Stop halts the scheduler and waits for running tasks.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("artifact sweeper stopped")
}

// Sweep deletes regular files older than maxAge and returns how many were removed.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.workspace.Dir())
	if err != nil {
		return 0, fmt.Errorf("read artifacts dir: %w", err)
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.workspace.Dir(), entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("failed to remove orphaned artifact", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.log.Info("orphaned artifacts removed", slog.Int("count", removed))
	}

	return removed, nil
}
