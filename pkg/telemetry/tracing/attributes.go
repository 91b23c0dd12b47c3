package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	AttrOpID      = attribute.Key("warden.op_id")
	AttrNodeID    = attribute.Key("warden.node_id")
	AttrPolicyID  = attribute.Key("warden.policy_id")
	AttrAction    = attribute.Key("warden.action")
	AttrScope     = attribute.Key("warden.scope")
	AttrMode      = attribute.Key("warden.mode")
	AttrRules     = attribute.Key("warden.rules")
	AttrChildren  = attribute.Key("warden.children")
	AttrFailures  = attribute.Key("warden.kernel_failures")
	AttrRequestID = attribute.Key("warden.request_id")
)

// NodeID tags a span with a filesystem index node.
func NodeID(id uint64) attribute.KeyValue {
	return AttrNodeID.Int64(int64(id))
}

// PolicyID tags a span with a policy id.
func PolicyID(id uint64) attribute.KeyValue {
	return AttrPolicyID.Int64(int64(id))
}
