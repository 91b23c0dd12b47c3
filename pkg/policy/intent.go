package policy

import (
	"fmt"
	"strings"
	"time"
)

// Scope selects how much of the filesystem an intent covers.
type Scope int

const (
	// ScopeFile covers exactly the addressed file.
	ScopeFile Scope = iota + 1

	// ScopeFolder covers the files directly inside the addressed folder that
	// are currently materialized in the index. Subdirectories are not covered.
	ScopeFolder

	// ScopeFolderRecursive covers the addressed folder and its whole subtree.
	ScopeFolderRecursive
)

var scopeNames = map[Scope]string{
	ScopeFile:            "file",
	ScopeFolder:          "folder",
	ScopeFolderRecursive: "folder_recursive",
}

// String returns the wire name of the scope.
func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// Valid reports whether s is one of the defined scopes.
func (s Scope) Valid() bool {
	_, ok := scopeNames[s]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (s Scope) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid scope %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scope) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	for scope, name := range scopeNames {
		if name == v {
			*s = scope
			return nil
		}
	}
	return fmt.Errorf("unknown scope %q: must be 'file', 'folder', or 'folder_recursive'", v)
}

// Action is what the agent does with the selected operations.
type Action int

const (
	// ActionBlock denies the selected operations.
	ActionBlock Action = iota + 1

	// ActionAllow permits only the selected operations and denies the rest.
	ActionAllow

	// ActionAudit records the selected operations without denying them.
	ActionAudit
)

var actionNames = map[Action]string{
	ActionBlock: "block",
	ActionAllow: "allow",
	ActionAudit: "audit",
}

// String returns the wire name of the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	for action, name := range actionNames {
		if name == v {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("unknown action %q: must be 'block', 'allow', or 'audit'", v)
}

// Operations is the set of file operations an intent applies to.
// Read is a master switch: blocking it blocks everything.
type Operations struct {
	Read    bool `json:"read" yaml:"read"`
	Write   bool `json:"write" yaml:"write"`
	Delete  bool `json:"delete" yaml:"delete"`
	Rename  bool `json:"rename" yaml:"rename"`
	Create  bool `json:"create" yaml:"create"`
	Copy    bool `json:"copy" yaml:"copy"`
	Execute bool `json:"execute" yaml:"execute"`
}

// Names returns the selected operation names in canonical order.
func (o Operations) Names() []string {
	var names []string
	for _, op := range []struct {
		name string
		on   bool
	}{
		{"read", o.Read},
		{"write", o.Write},
		{"delete", o.Delete},
		{"rename", o.Rename},
		{"create", o.Create},
		{"copy", o.Copy},
		{"execute", o.Execute},
	} {
		if op.on {
			names = append(names, op.name)
		}
	}
	return names
}

// Count returns the number of selected operations.
func (o Operations) Count() int {
	return len(o.Names())
}

// Any reports whether at least one operation is selected.
func (o Operations) Any() bool {
	return o.Count() > 0
}

// Intent is an administrator's protection request. It addresses its subject
// by index node id only and never carries a filesystem path.
type Intent struct {
	// NodeID is the filesystem index node the intent protects.
	NodeID uint64 `json:"node_id" yaml:"node_id"`

	// Scope selects file, folder or subtree coverage.
	Scope Scope `json:"scope" yaml:"scope"`

	// Action is block, allow or audit.
	Action Action `json:"action" yaml:"action"`

	// Operations lists the operations the action applies to.
	Operations Operations `json:"operations" yaml:"operations"`

	// CreatedBy identifies the administrator who issued the intent.
	CreatedBy string `json:"created_by" yaml:"created_by"`

	// CreatedAt is when the intent was issued.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Comment is optional free text.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// NewIntent returns an intent stamped with the current time.
func NewIntent(nodeID uint64, scope Scope, action Action, ops Operations, createdBy string) Intent {
	return Intent{
		NodeID:     nodeID,
		Scope:      scope,
		Action:     action,
		Operations: ops,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}
}

// ExpandsRead reports whether the intent triggers read expansion: a blocked
// read turns into a block of every operation.
func (i Intent) ExpandsRead() bool {
	return i.Action == ActionBlock && i.Operations.Read
}

// Describe returns a one-line summary of the intent for logs and reports.
func (i Intent) Describe() string {
	ops := strings.Join(i.Operations.Names(), ",")
	if ops == "" {
		ops = "none"
	}
	return fmt.Sprintf("%s %s on node %d (%s) by %s", i.Action, ops, i.NodeID, i.Scope, i.CreatedBy)
}
