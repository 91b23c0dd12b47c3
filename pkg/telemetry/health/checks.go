package health

import (
	"context"
	"errors"
)

// ErrKernelDetached is reported while the kernel port is not attached.
var ErrKernelDetached = errors.New("kernel port not attached; policies are simulated")

// Pinger is anything with a context-aware liveness check, such as the policy
// store or the event journal.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// KernelCheck fails while connected reports false.
func KernelCheck(connected func() bool) CheckFunc {
	return func(ctx context.Context) error {
		if !connected() {
			return ErrKernelDetached
		}
		return nil
	}
}
