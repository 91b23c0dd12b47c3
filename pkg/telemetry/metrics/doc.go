// Package metrics exposes the agent's Prometheus metrics.
//
// A Collector owns a private registry and implements the policy engine's
// Metrics interface, so the engine records applies, removals, kernel sends
// and index expansions without importing Prometheus. Gauges for active
// policies and kernel connectivity are set by the engine after each change.
//
// All metric names are prefixed with the configured namespace and subsystem,
// mercator_warden_ by default:
//
//	mercator_warden_policy_applies_total{action,mode,result}
//	mercator_warden_policy_apply_duration_seconds{action}
//	mercator_warden_policy_removals_total{result}
//	mercator_warden_kernel_removal_failures_total
//	mercator_warden_kernel_messages_total{operation,result}
//	mercator_warden_kernel_connected
//	mercator_warden_active_policies{mode}
//	mercator_warden_index_expansions_total{result}
//	mercator_warden_index_expand_duration_seconds
//	mercator_warden_index_expanded_children
//	mercator_warden_events_published_total
//	mercator_warden_events_dropped_total
//	mercator_warden_event_subscribers
//
// Handler serves the registry in the OpenMetrics exposition format.
package metrics
