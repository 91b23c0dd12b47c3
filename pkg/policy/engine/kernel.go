package engine

import (
	"context"
	"time"

	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/kernel/adapter"
	"mercator-hq/warden/pkg/policy"
)

// KernelConnected reports whether a kernel adapter is attached.
func (e *Engine) KernelConnected() bool {
	return e.slot.Connected()
}

// Connect dials the driver port and attaches the resulting adapter. Driver
// ids continue after the highest real id already recorded.
func (e *Engine) Connect(ctx context.Context) error {
	if e.dialer == nil {
		return policy.KernelUnavailable("connect", nil)
	}
	a, err := adapter.Connect(e.dialer, e.portName,
		adapter.WithLogger(e.logger),
		adapter.WithFirstID(e.store.MaxDriverID(false)+1),
	)
	if err != nil {
		e.metrics.SetKernelConnected(false)
		return err
	}
	_, err = e.AttachKernel(ctx, a)
	return err
}

// AttachKernel installs a, closing any adapter it replaces, and sends every
// simulated policy the driver can represent. It returns the number of
// policies moved to real enforcement. A policy whose resend fails stays
// simulated.
func (e *Engine) AttachKernel(ctx context.Context, a *adapter.Adapter) (int, error) {
	if prev := e.slot.Swap(a); prev != nil && prev != a {
		if err := prev.Close(); err != nil {
			e.logger.Warn("failed to close previous kernel adapter", "error", err)
		}
	}
	if a == nil {
		e.refreshGauges()
		return 0, nil
	}

	ctx, span := e.tracer.Start(ctx, "kernel.attach")
	defer span.End()

	moved := 0
	for _, p := range e.store.List() {
		if !p.Simulated || !p.Active || !transmittable(p.Rules) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return moved, err
		}

		ids := make([]policy.DriverID, 0, len(p.Rules))
		var sendErr error
		for _, r := range p.Rules {
			did, err := a.Send(r)
			if err != nil {
				sendErr = err
				break
			}
			e.rulesSent.Add(1)
			e.metrics.RecordKernelSend("send", "ok")
			ids = append(ids, did)
		}
		if sendErr != nil {
			e.sendFailures.Add(1)
			e.metrics.RecordKernelSend("send", "error")
			e.logger.Warn("failed to resend simulated policy, keeping it simulated",
				"policy_id", p.ID,
				"sent", len(ids),
				"error", sendErr,
			)
			continue
		}

		p.DriverIDs = ids
		p.Simulated = false
		p.UpdatedAt = time.Now().UTC()
		if err := e.store.Update(ctx, p); err != nil {
			if policy.IsKind(err, policy.KindNotFound) {
				// Removed while resending.
				e.withdraw(a, p)
				continue
			}
			e.logger.Error("failed to record resent policy", "policy_id", p.ID, "error", err)
			continue
		}
		moved++
	}
	e.resynced.Add(uint64(moved))

	e.refreshGauges()
	e.publish(events.New(events.TypeKernelConnected, "kernel port attached"))
	e.logger.Info("kernel attached", "resynced", moved, "next_driver_id", a.NextID())
	return moved, nil
}

// DetachKernel removes and closes the current adapter. Later applies are
// simulated until a kernel is attached again.
func (e *Engine) DetachKernel() {
	prev := e.slot.Swap(nil)
	if prev == nil {
		return
	}
	if err := prev.Close(); err != nil {
		e.logger.Warn("failed to close kernel adapter", "error", err)
	}
	e.refreshGauges()
	e.publish(events.New(events.TypeKernelDisconnected, "kernel port detached"))
	e.logger.Info("kernel detached")
}

// AttachEventSink routes kernel notifications of the current and any later
// adapter to sink.
func (e *Engine) AttachEventSink(sink events.Sink) {
	e.slot.AttachEventSink(sink)
}
