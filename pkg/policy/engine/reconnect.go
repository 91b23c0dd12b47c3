package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// DefaultReconnectSchedule retries the driver port every minute.
const DefaultReconnectSchedule = "@every 1m"

// Reconnector retries Connect on a cron schedule while no kernel is attached.
type Reconnector struct {
	engine   *Engine
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewReconnector returns a reconnector for e. An empty schedule uses
// DefaultReconnectSchedule.
func NewReconnector(e *Engine, schedule string) *Reconnector {
	if schedule == "" {
		schedule = DefaultReconnectSchedule
	}
	return &Reconnector{
		engine:   e,
		schedule: schedule,
		cron:     cron.New(),
		logger:   e.logger.With("component", "policy.reconnector"),
	}
}

// Start schedules reconnect attempts until ctx is done.
func (r *Reconnector) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine.dialer == nil {
		r.logger.Info("no kernel dialer configured, skipping reconnector")
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() { r.attempt(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule reconnect: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.Info("kernel reconnector started", "schedule", r.schedule)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Attempt tries to connect once if no kernel is attached. It reports whether
// a kernel is attached afterwards.
func (r *Reconnector) Attempt(ctx context.Context) bool {
	return r.attempt(ctx)
}

func (r *Reconnector) attempt(ctx context.Context) bool {
	if r.engine.KernelConnected() {
		return true
	}
	if err := r.engine.Connect(ctx); err != nil {
		r.logger.Debug("kernel still unavailable", "error", err)
		return false
	}
	r.logger.Info("kernel reconnected")
	return true
}

// Stop stops the schedule and waits for a running attempt to finish.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
	r.logger.Info("kernel reconnector stopped")
}

// IsRunning reports whether the schedule is active.
func (r *Reconnector) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
