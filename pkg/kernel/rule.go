// Package kernel holds the driver-ready form of a protection intent.
//
// A Rule is what the minifilter enforces: one device path, a match mode and
// the per-operation block and audit flags after READ-expansion. Rules are
// derived from intents by Normalize and checked by ValidateRule before they
// are handed to the adapter.
package kernel

import (
	"fmt"
	"strings"
	"time"

	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/policy"
)

// MatchMode is how the driver compares a rule path against an access.
type MatchMode int

const (
	// MatchExact matches one file.
	MatchExact MatchMode = iota + 1

	// MatchPrefix matches every path below a folder.
	MatchPrefix
)

// String returns the mode name.
func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	default:
		return fmt.Sprintf("MatchMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MatchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MatchMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "exact":
		*m = MatchExact
	case "prefix":
		*m = MatchPrefix
	default:
		return fmt.Errorf("unknown match mode %q", string(b))
	}
	return nil
}

// OpSet is the set of operations the driver understands. Read is absent: a
// read restriction is expressed only through Rule.BlockAll.
type OpSet struct {
	Write   bool `json:"write"`
	Delete  bool `json:"delete"`
	Rename  bool `json:"rename"`
	Create  bool `json:"create"`
	Copy    bool `json:"copy"`
	Execute bool `json:"execute"`
}

// AllOps has every operation set.
var AllOps = OpSet{Write: true, Delete: true, Rename: true, Create: true, Copy: true, Execute: true}

// OpSetFrom takes the six kernel operations from an intent's operations.
func OpSetFrom(ops policy.Operations) OpSet {
	return OpSet{
		Write:   ops.Write,
		Delete:  ops.Delete,
		Rename:  ops.Rename,
		Create:  ops.Create,
		Copy:    ops.Copy,
		Execute: ops.Execute,
	}
}

// Complement returns the operations not in s.
func (s OpSet) Complement() OpSet {
	return OpSet{
		Write:   !s.Write,
		Delete:  !s.Delete,
		Rename:  !s.Rename,
		Create:  !s.Create,
		Copy:    !s.Copy,
		Execute: !s.Execute,
	}
}

// Names lists the set operations in canonical order.
func (s OpSet) Names() []string {
	var names []string
	for _, op := range []struct {
		name string
		on   bool
	}{
		{"write", s.Write},
		{"delete", s.Delete},
		{"rename", s.Rename},
		{"create", s.Create},
		{"copy", s.Copy},
		{"execute", s.Execute},
	} {
		if op.on {
			names = append(names, op.name)
		}
	}
	return names
}

// Count returns the number of set operations.
func (s OpSet) Count() int {
	return len(s.Names())
}

// Any reports whether at least one operation is set.
func (s OpSet) Any() bool {
	return s != OpSet{}
}

// Wired reports whether any operation with its own driver flag is set. Copy
// and execute have no flag on the wire and are enforced only via block_all.
func (s OpSet) Wired() bool {
	return s.Write || s.Delete || s.Rename || s.Create
}

// Rule is one normalized kernel policy.
type Rule struct {
	PolicyID  policy.ID          `json:"policy_id"`
	Path      devpath.DevicePath `json:"path"`
	Mode      MatchMode          `json:"mode"`
	Blocked   OpSet              `json:"blocked"`
	Audited   OpSet              `json:"audited"`
	BlockAll  bool               `json:"block_all"`
	Action    policy.Action      `json:"action"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
}

// IsFolder reports whether the rule covers a subtree.
func (r Rule) IsFolder() bool {
	return r.Mode == MatchPrefix
}

// Transmittable reports whether the driver can represent the rule. A rule
// that blocks nothing the wire format carries would encode as a tombstone.
func (r Rule) Transmittable() bool {
	return r.BlockAll || r.Blocked.Wired()
}

// AuditOnly reports whether the rule audits without blocking anything.
func (r Rule) AuditOnly() bool {
	return !r.BlockAll && !r.Blocked.Any() && r.Audited.Any()
}

// Effective returns the operations an intent blocks and audits once the
// action semantics and READ-expansion are applied.
func Effective(intent policy.Intent) (blocked, audited OpSet, blockAll bool) {
	selected := OpSetFrom(intent.Operations)

	switch intent.Action {
	case policy.ActionBlock:
		if intent.Operations.Read {
			return AllOps, OpSet{}, true
		}
		return selected, OpSet{}, false
	case policy.ActionAllow:
		return selected.Complement(), OpSet{}, false
	case policy.ActionAudit:
		return OpSet{}, selected, false
	default:
		return OpSet{}, OpSet{}, false
	}
}
