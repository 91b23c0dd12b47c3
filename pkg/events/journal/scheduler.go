package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultPruneSchedule runs retention pruning daily at 3 AM.
const DefaultPruneSchedule = "0 3 * * *"

// Scheduler prunes the journal on a cron schedule.
type Scheduler struct {
	journal *Journal
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler returns a scheduler for j.
func NewScheduler(j *Journal) *Scheduler {
	return &Scheduler{
		journal: j,
		cron:    cron.New(),
		logger:  j.logger.With("component", "events.journal.scheduler"),
	}
}

// Start schedules pruning. It does nothing when retention is disabled or the
// schedule is empty. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedule := s.journal.config.PruneSchedule
	if schedule == "" || s.journal.config.RetentionDays <= 0 {
		s.logger.Info("journal pruning not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.runPruning(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("journal pruning scheduled",
		"schedule", schedule,
		"retention_days", s.journal.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runPruning(ctx context.Context) {
	deleted, err := s.journal.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled journal pruning failed", "error", err)
		return
	}
	s.logger.Debug("scheduled journal pruning completed", "deleted_count", deleted)
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("journal pruning stopped")
	}
}

// IsRunning reports whether pruning is scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or nil.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
