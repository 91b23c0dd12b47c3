package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/kernel/adapter"
	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/policy/guard"
	"mercator-hq/warden/pkg/policy/store"
	"mercator-hq/warden/pkg/telemetry/tracing"
)

// Apply enforces intent and returns the id of the recorded policy.
//
// Nothing is recorded unless every rule was accepted by the driver, or the
// policy was simulated. An intent whose rules the driver cannot represent
// (audit-only, or blocking only copy and execute) is recorded as simulated
// even with a kernel attached.
func (e *Engine) Apply(ctx context.Context, intent policy.Intent) (policy.ID, error) {
	ctx, span := e.tracer.Start(ctx, "policy.apply")
	defer span.End()

	opID := uuid.New().String()
	start := time.Now()
	mode := "simulated"
	logger := e.logger.With("op_id", opID, "node_id", intent.NodeID)

	span.SetAttributes(
		tracing.AttrOpID.String(opID),
		tracing.NodeID(intent.NodeID),
		tracing.AttrAction.String(intent.Action.String()),
		tracing.AttrScope.String(intent.Scope.String()),
	)

	fail := func(err error) (policy.ID, error) {
		e.metrics.RecordApply(intent.Action.String(), mode, policy.KindOf(err).String(), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("policy apply failed", "kind", policy.KindOf(err), "error", err)
		return 0, err
	}

	if err := policy.Validate(intent); err != nil {
		return fail(err)
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}

	paths, err := e.resolver.ResolveForIntent(intent)
	if err != nil {
		return fail(err)
	}

	id := e.store.NextID()
	rules := kernel.Normalize(intent, paths, id)
	for _, r := range rules {
		if err := kernel.ValidateRule(r); err != nil {
			return fail(err)
		}
	}

	a := e.slot.Load()
	transmit := a != nil && transmittable(rules)
	driverIDs := make([]policy.DriverID, 0, len(rules))
	if transmit {
		mode = "real"
		for i, r := range rules {
			did, err := a.Send(r)
			if err != nil {
				e.sendFailures.Add(1)
				e.metrics.RecordKernelSend("send", "error")
				if i > 0 {
					logger.Warn("kernel rules from a partial apply remain in the driver",
						"policy_id", id,
						"sent", i,
						"total", len(rules),
					)
				}
				return fail(err)
			}
			e.rulesSent.Add(1)
			e.metrics.RecordKernelSend("send", "ok")
			driverIDs = append(driverIDs, did)
		}
	} else {
		for range rules {
			driverIDs = append(driverIDs, e.nextSimulatedID())
		}
		if a != nil {
			logger.Warn("policy has no kernel representation, recorded as simulated",
				"policy_id", id,
				"blocked", rules[0].Blocked.Names(),
			)
		}
	}

	now := time.Now().UTC()
	subject, _ := e.index.DisplayPath(intent.NodeID)
	ap := store.ActivePolicy{
		ID:          id,
		Intent:      intent,
		SubjectPath: subject,
		NodeID:      intent.NodeID,
		Rules:       rules,
		DriverIDs:   driverIDs,
		Active:      true,
		Simulated:   !transmit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.Insert(ctx, ap); err != nil {
		if transmit {
			e.withdraw(a, ap)
		}
		return fail(err)
	}

	span.SetAttributes(
		tracing.PolicyID(uint64(id)),
		tracing.AttrRules.Int(len(rules)),
		tracing.AttrMode.String(mode),
	)
	e.metrics.RecordApply(intent.Action.String(), mode, "ok", time.Since(start))
	e.refreshGauges()

	ev := events.New(events.TypePolicyApplied, fmt.Sprintf("%s applied to node %d", intent.Describe(), intent.NodeID))
	ev.NodeID = intent.NodeID
	ev.PolicyID = uint64(id)
	e.publish(ev)

	logger.Info("policy applied",
		"policy_id", id,
		"rules", len(rules),
		"mode", mode,
		"action", intent.Action,
		"scope", intent.Scope,
	)
	return id, nil
}

// ApplyWithAssurance runs the safety check first. Intents that need a
// confirmation are refused unless confirmed is set.
func (e *Engine) ApplyWithAssurance(ctx context.Context, intent policy.Intent, confirmed bool) (policy.ID, error) {
	report := e.ValidateSafety(intent)
	if !report.Valid {
		return 0, policy.InvalidIntent("apply", "%s", report.Errors[0])
	}
	if report.RequiresConfirmation && !confirmed {
		return 0, policy.InvalidIntent("apply",
			"%s confirmation required: type %s to proceed", report.ConfirmationLevel, report.ConfirmationPhrase)
	}
	return e.Apply(ctx, intent)
}

// ValidateSafety checks intent against the current kernel state.
func (e *Engine) ValidateSafety(intent policy.Intent) guard.Report {
	return guard.ValidateSafety(intent, e.slot.Connected())
}

// Remove withdraws a policy. Kernel removal failures are logged and do not
// keep the policy in the store.
func (e *Engine) Remove(ctx context.Context, id policy.ID) error {
	ctx, span := e.tracer.Start(ctx, "policy.remove")
	defer span.End()
	span.SetAttributes(tracing.PolicyID(uint64(id)))

	ap, ok := e.store.Get(id)
	if !ok {
		err := policy.NotFound("remove", "policy %s not found", id)
		e.metrics.RecordRemove(policy.KindOf(err).String(), 0)
		span.RecordError(err)
		return err
	}

	failures := 0
	if !ap.Simulated {
		if a := e.slot.Load(); a != nil {
			failures = e.withdraw(a, ap)
		} else {
			e.logger.Warn("kernel not connected, rules for removed policy remain in the driver",
				"policy_id", id,
				"rules", len(ap.Rules),
			)
		}
	}
	span.SetAttributes(tracing.AttrFailures.Int(failures))

	if _, err := e.store.Remove(ctx, id); err != nil {
		e.metrics.RecordRemove(policy.KindOf(err).String(), failures)
		span.RecordError(err)
		return err
	}

	e.metrics.RecordRemove("ok", failures)
	e.refreshGauges()

	ev := events.New(events.TypePolicyRemoved, fmt.Sprintf("policy %s removed", id))
	ev.NodeID = ap.NodeID
	ev.PolicyID = uint64(id)
	e.publish(ev)

	e.logger.Info("policy removed",
		"policy_id", id,
		"rules", len(ap.Rules),
		"kernel_failures", failures,
	)
	return nil
}

// withdraw sends a removal for every rule of ap and returns the number that
// failed.
func (e *Engine) withdraw(a *adapter.Adapter, ap store.ActivePolicy) int {
	failures := 0
	for i, r := range ap.Rules {
		var did policy.DriverID
		if i < len(ap.DriverIDs) {
			did = ap.DriverIDs[i]
		}
		if err := a.Remove(did, r.Path); err != nil {
			failures++
			e.removeFailures.Add(1)
			e.metrics.RecordKernelSend("remove", "error")
			e.logger.Warn("failed to remove rule from kernel",
				"policy_id", ap.ID,
				"driver_id", did,
				"error", err,
			)
			continue
		}
		e.rulesRemoved.Add(1)
		e.metrics.RecordKernelSend("remove", "ok")
	}
	return failures
}

func transmittable(rules []kernel.Rule) bool {
	if len(rules) == 0 {
		return false
	}
	for _, r := range rules {
		if !r.Transmittable() {
			return false
		}
	}
	return true
}
