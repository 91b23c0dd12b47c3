// Package events carries enforcement notifications from the kernel adapter
// and the policy engine to whoever is listening: the API event stream, the
// journal and the logs.
//
// Events reference nodes and policies by id. They never carry a device path.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type names the kind of event.
type Type string

const (
	// TypeFileAccess is a kernel decision on a file operation.
	TypeFileAccess Type = "file.access"

	// TypePolicyApplied is published after a policy is recorded.
	TypePolicyApplied Type = "policy.applied"

	// TypePolicyRemoved is published after a policy is dropped from the store.
	TypePolicyRemoved Type = "policy.removed"

	// TypeKernelConnected is published when the driver port is attached.
	TypeKernelConnected Type = "kernel.connected"

	// TypeKernelDisconnected is published when the driver port is detached.
	TypeKernelDisconnected Type = "kernel.disconnected"
)

// Operation is the filesystem operation the driver observed.
type Operation int

const (
	OpUnknown Operation = iota
	OpRead
	OpWrite
	OpDelete
	OpRename
	OpCreate
	OpQueryInfo
	OpSetInfo
)

var operationNames = map[Operation]string{
	OpUnknown:   "unknown",
	OpRead:      "read",
	OpWrite:     "write",
	OpDelete:    "delete",
	OpRename:    "rename",
	OpCreate:    "create",
	OpQueryInfo: "query_info",
	OpSetInfo:   "set_info",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operation) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for op, name := range operationNames {
		if name == s {
			*o = op
			return nil
		}
	}
	return fmt.Errorf("unknown operation %q", string(b))
}

// Decision is the outcome the driver reported.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionAllowed
	DecisionBlocked
	DecisionAudited
	DecisionNotProtected
)

var decisionNames = map[Decision]string{
	DecisionNone:         "none",
	DecisionAllowed:      "allowed",
	DecisionBlocked:      "blocked",
	DecisionAudited:      "audited",
	DecisionNotProtected: "not_protected",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(b)))
	for dec, name := range decisionNames {
		if name == s {
			*d = dec
			return nil
		}
	}
	return fmt.Errorf("unknown decision %q", string(b))
}

// Event is one notification.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Source      string    `json:"source,omitempty"`
	NodeID      uint64    `json:"node_id,omitempty"`
	PolicyID    uint64    `json:"policy_id,omitempty"`
	Operation   Operation `json:"operation,omitempty"`
	ProcessName string    `json:"process_name,omitempty"`
	PID         uint32    `json:"pid,omitempty"`
	Decision    Decision  `json:"decision,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message,omitempty"`
}

// New returns an event of the given type with a fresh id and timestamp.
func New(typ Type, message string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}
}

// Stamp fills in the id and timestamp if they are missing.
func (e *Event) Stamp() {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

// Sink receives events. Publish must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f.
func (f SinkFunc) Publish(e Event) {
	f(e)
}

// Discard is a Sink that drops everything.
var Discard Sink = SinkFunc(func(Event) {})
