// Package adapter owns the connection to the kernel minifilter and turns
// kernel rules into port messages.
package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/kernel/port"
	"mercator-hq/warden/pkg/kernel/wire"
	"mercator-hq/warden/pkg/policy"
)

// Stats counts adapter traffic since construction.
type Stats struct {
	Sent           uint64 `json:"sent"`
	Removed        uint64 `json:"removed"`
	SendFailures   uint64 `json:"send_failures"`
	RemoveFailures uint64 `json:"remove_failures"`
	LastStatus     uint32 `json:"last_status"`
	Closed         bool   `json:"closed"`
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger.With("component", "kernel.adapter")
		}
	}
}

// WithFirstID sets the first driver id the adapter hands out. Agents that
// reload persisted policies start after the highest id already in use.
func WithFirstID(id policy.DriverID) Option {
	return func(a *Adapter) {
		if id > 0 && !id.Simulated() {
			a.nextID.Store(uint64(id))
		}
	}
}

// WithEventSink sets the sink kernel notifications are forwarded to.
func WithEventSink(sink events.Sink) Option {
	return func(a *Adapter) {
		a.sink = sink
	}
}

// Adapter sends rules over one port connection. Port I/O is serialized.
type Adapter struct {
	conn   port.Conn
	logger *slog.Logger

	ioMu   sync.Mutex
	closed bool

	sinkMu sync.RWMutex
	sink   events.Sink

	nextID         atomic.Uint64
	sent           atomic.Uint64
	removed        atomic.Uint64
	sendFailures   atomic.Uint64
	removeFailures atomic.Uint64
	lastStatus     atomic.Uint32
}

// New wraps an open connection.
func New(conn port.Conn, opts ...Option) *Adapter {
	a := &Adapter{
		conn:   conn,
		logger: slog.Default().With("component", "kernel.adapter"),
	}
	a.nextID.Store(1)
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect dials the named port. A missing driver is reported as
// KindKernelUnavailable; callers treat that as simulation mode.
func Connect(d port.Dialer, name string, opts ...Option) (*Adapter, error) {
	conn, err := d.Dial(name)
	if err != nil {
		return nil, policy.KernelUnavailable("connect", err)
	}
	a := New(conn, opts...)
	a.logger.Info("connected to kernel port", "port", name)
	return a, nil
}

// Send transmits r and returns the driver id assigned to it. A non-zero
// driver status is returned as KindKernelTransport carrying the status.
func (a *Adapter) Send(r kernel.Rule) (policy.DriverID, error) {
	msg, err := wire.FromRule(r)
	if err != nil {
		return 0, policy.InvalidIntent("send", "policy %s cannot be sent to the driver", r.PolicyID).WithCause(err)
	}

	status, err := a.write(msg)
	if err != nil || status != 0 {
		a.sendFailures.Add(1)
		a.logger.Error("kernel rejected policy",
			"policy_id", r.PolicyID,
			"status", fmt.Sprintf("0x%08X", status),
			"error", err,
		)
		return 0, policy.KernelTransport("send", status, err)
	}

	id := policy.DriverID(a.nextID.Add(1) - 1)
	a.sent.Add(1)
	a.logger.Debug("policy sent to kernel",
		"policy_id", r.PolicyID,
		"driver_id", id,
		"folder", r.IsFolder(),
		"block_all", r.BlockAll,
	)
	return id, nil
}

// Remove sends the removal record for path. The driver matches removals on
// path and folder flag, so id is used only for bookkeeping and logs.
func (a *Adapter) Remove(id policy.DriverID, path devpath.DevicePath) error {
	status, err := a.write(wire.Tombstone(path, path.IsFolder()))
	if err != nil || status != 0 {
		a.removeFailures.Add(1)
		return policy.KernelTransport("remove", status, err)
	}
	a.removed.Add(1)
	a.logger.Debug("policy removed from kernel", "driver_id", id)
	return nil
}

func (a *Adapter) write(msg wire.Message) (uint32, error) {
	a.ioMu.Lock()
	defer a.ioMu.Unlock()
	if a.closed {
		return 0, port.ErrClosed
	}
	status, err := a.conn.Send(msg.Encode())
	a.lastStatus.Store(status)
	return status, err
}

// SetEventSink replaces the notification sink. Nil detaches it.
func (a *Adapter) SetEventSink(sink events.Sink) {
	a.sinkMu.Lock()
	a.sink = sink
	a.sinkMu.Unlock()
	if sink != nil {
		a.logger.Info("kernel event sink attached")
	}
}

// Emit forwards a kernel notification to the sink. It reports false when no
// sink is attached.
func (a *Adapter) Emit(e events.Event) bool {
	a.sinkMu.RLock()
	sink := a.sink
	a.sinkMu.RUnlock()
	if sink == nil {
		return false
	}
	if e.Type == "" {
		e.Type = events.TypeFileAccess
	}
	sink.Publish(e)
	return true
}

// NextID returns the id the next successful Send will assign.
func (a *Adapter) NextID() policy.DriverID {
	return policy.DriverID(a.nextID.Load())
}

// Stats returns traffic counters.
func (a *Adapter) Stats() Stats {
	a.ioMu.Lock()
	closed := a.closed
	a.ioMu.Unlock()
	return Stats{
		Sent:           a.sent.Load(),
		Removed:        a.removed.Load(),
		SendFailures:   a.sendFailures.Load(),
		RemoveFailures: a.removeFailures.Load(),
		LastStatus:     a.lastStatus.Load(),
		Closed:         closed,
	}
}

// Close releases the port.
func (a *Adapter) Close() error {
	a.ioMu.Lock()
	defer a.ioMu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.conn.Close(); err != nil && !errors.Is(err, port.ErrClosed) {
		return fmt.Errorf("failed to close kernel port: %w", err)
	}
	a.logger.Info("kernel port closed")
	return nil
}
