package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/kernel/adapter"
	"mercator-hq/warden/pkg/kernel/port"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/policy/store"
)

// Tracer starts spans. *tracing.Tracer and any trace.Tracer satisfy it.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

// Metrics receives engine measurements.
type Metrics interface {
	RecordApply(action, mode, result string, duration time.Duration)
	RecordRemove(result string, kernelFailures int)
	RecordKernelSend(operation, result string)
	RecordExpand(result string, children int, duration time.Duration)
	SetActivePolicies(real, simulated int)
	SetKernelConnected(connected bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordApply(string, string, string, time.Duration) {}
func (nopMetrics) RecordRemove(string, int) {}
func (nopMetrics) RecordKernelSend(string, string) {}
func (nopMetrics) RecordExpand(string, int, time.Duration) {}
func (nopMetrics) SetActivePolicies(int, int) {}
func (nopMetrics) SetKernelConnected(bool) {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With("component", "policy.engine")
		}
	}
}

// WithEventSink sets where lifecycle and kernel events are published. Kernel
// notifications of every adapter the engine attaches go to the same sink.
func WithEventSink(sink events.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
			e.slot.AttachEventSink(sink)
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithDialer sets how Connect reaches the kernel port.
func WithDialer(d port.Dialer, portName string) Option {
	return func(e *Engine) {
		e.dialer = d
		if portName != "" {
			e.portName = portName
		}
	}
}

// Engine is the enforcement core.
type Engine struct {
	index    *fsindex.Index
	scanner  *fsindex.Scanner
	resolver *devpath.Resolver
	store    *store.Store
	slot     *adapter.Slot

	dialer   port.Dialer
	portName string

	sink    events.Sink
	metrics Metrics
	tracer  Tracer
	logger  *slog.Logger

	nextSimulated   atomic.Uint64
	simulatedIssued atomic.Uint64
	rulesSent       atomic.Uint64
	rulesRemoved    atomic.Uint64
	sendFailures    atomic.Uint64
	removeFailures  atomic.Uint64
	resynced        atomic.Uint64
}

// New assembles an engine. The store may already hold persisted policies;
// simulated ids continue after the highest one in use.
func New(idx *fsindex.Index, scanner *fsindex.Scanner, resolver *devpath.Resolver, st *store.Store, opts ...Option) (*Engine, error) {
	if idx == nil || scanner == nil || resolver == nil || st == nil {
		return nil, errors.New("engine requires an index, scanner, resolver and store")
	}

	e := &Engine{
		index:    idx,
		scanner:  scanner,
		resolver: resolver,
		store:    st,
		slot:     adapter.NewSlot(nil),
		portName: port.DefaultName,
		sink:     events.Discard,
		metrics:  nopMetrics{},
		tracer:   noop.NewTracerProvider().Tracer("warden/engine"),
		logger:   slog.Default().With("component", "policy.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	next := policy.SimulatedDriverIDBase
	if highest := st.MaxDriverID(true); highest >= next {
		next = highest + 1
	}
	e.nextSimulated.Store(uint64(next))

	e.refreshGauges()
	e.logger.Info("policy engine initialized",
		"policies", st.Count(),
		"port", e.portName,
	)
	return e, nil
}

// Close detaches the kernel adapter and closes the store.
func (e *Engine) Close() error {
	e.DetachKernel()
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("failed to close policy store: %w", err)
	}
	return nil
}

func (e *Engine) nextSimulatedID() policy.DriverID {
	e.simulatedIssued.Add(1)
	return policy.DriverID(e.nextSimulated.Add(1) - 1)
}

func (e *Engine) publish(ev events.Event) {
	e.sink.Publish(ev)
}

func (e *Engine) refreshGauges() {
	st := e.store.Stats()
	e.metrics.SetActivePolicies(st.Total-st.Simulated, st.Simulated)
	e.metrics.SetKernelConnected(e.slot.Connected())
}
