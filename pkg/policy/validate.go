package policy

import (
	"log/slog"
	"strings"
)

// Problems returns every structural violation in the intent, in a stable
// order. An empty result means the intent is valid.
//
// Validate and the safety guard both build on Problems so that apply, preview,
// dry-run and the guard never disagree about what is valid.
func Problems(i Intent) []string {
	var problems []string

	if i.NodeID == 0 {
		problems = append(problems, "node id must be non-zero")
	}
	if !i.Scope.Valid() {
		problems = append(problems, "scope must be 'file', 'folder', or 'folder_recursive'")
	}
	if !i.Action.Valid() {
		problems = append(problems, "action must be 'block', 'allow', or 'audit'")
	}
	if i.Scope == ScopeFile && i.Operations.Create {
		problems = append(problems, "create cannot be combined with file scope")
	}
	if strings.TrimSpace(i.CreatedBy) == "" {
		problems = append(problems, "creator must not be empty")
	}
	if i.Action == ActionAllow && i.Operations.Read {
		problems = append(problems, "allow cannot be combined with read: an allow-read rule has no safe total-block complement")
	}

	return problems
}

// Validate checks the structural invariants of an intent and returns an
// InvalidIntent error describing the first violation. The read-expansion case
// is valid and only logged.
func Validate(i Intent) error {
	if problems := Problems(i); len(problems) > 0 {
		return InvalidIntent("validate", "%s", problems[0])
	}

	if i.ExpandsRead() {
		slog.Default().Info("read block expands to block-all",
			"component", "policy",
			"node_id", i.NodeID,
			"scope", i.Scope.String(),
			"created_by", i.CreatedBy,
		)
	}

	return nil
}
