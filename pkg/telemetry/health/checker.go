package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Status values.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string        `json:"status"`
	Critical bool          `json:"critical"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Report is the aggregated check result.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ErrCheckTimeout is reported when a check does not finish in time.
var ErrCheckTimeout = errors.New("health check timeout")

type registered struct {
	fn       CheckFunc
	critical bool
}

// Checker runs registered checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]registered

	checkTimeout time.Duration
}

// New returns a checker. A zero timeout means 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]registered),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck adds or replaces a named check.
func (c *Checker) RegisterCheck(name string, check CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registered{fn: check, critical: critical}
}

// UnregisterCheck removes a named check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// ListChecks returns the registered names in order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is serving.
func (c *Checker) CheckLiveness(ctx context.Context) Report {
	return Report{Status: StatusOK, Timestamp: time.Now()}
}

// CheckReadiness runs every check concurrently and aggregates the results.
func (c *Checker) CheckReadiness(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registered, len(c.checks))
	for name, r := range c.checks {
		checks[name] = r
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, r := range checks {
		wg.Add(1)
		go func(name string, r registered) {
			defer wg.Done()
			res := c.runCheck(ctx, r.fn)
			res.Critical = r.critical

			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(name, r)
	}
	wg.Wait()

	status := StatusReady
	for _, res := range results {
		if res.Status != StatusUnhealthy {
			continue
		}
		if res.Critical {
			status = StatusUnhealthy
			break
		}
		status = StatusDegraded
	}

	return Report{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(checkCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Duration: time.Since(start)}
		}
		return CheckResult{Status: StatusOK, Duration: time.Since(start)}
	case <-checkCtx.Done():
		return CheckResult{Status: StatusUnhealthy, Message: ErrCheckTimeout.Error(), Duration: time.Since(start)}
	}
}
