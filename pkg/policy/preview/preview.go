// Package preview shows what an intent will do before it is applied. Both
// Preview and DryRun are pure: no index lookups, no device paths, no kernel.
package preview

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/policy"
)

// Result is the effective behavior of an intent.
type Result struct {
	Intent      policy.Intent `json:"intent"`
	Blocked     kernel.OpSet  `json:"blocked"`
	Audited     kernel.OpSet  `json:"audited"`
	BlockAll    bool          `json:"block_all"`
	Description string        `json:"description"`
	Summary     string        `json:"summary"`
}

// Preview validates intent and computes its effective operations.
func Preview(intent policy.Intent) (Result, error) {
	if err := policy.Validate(intent); err != nil {
		return Result{}, err
	}

	blocked, audited, blockAll := kernel.Effective(intent)
	r := Result{
		Intent:   intent,
		Blocked:  blocked,
		Audited:  audited,
		BlockAll: blockAll,
	}
	r.Description = describe(r)
	r.Summary = summarize(r)
	return r, nil
}

func summarize(r Result) string {
	switch {
	case r.BlockAll:
		return "BLOCK ALL ACCESS (read selected)"
	case r.Intent.Action == policy.ActionAudit:
		return fmt.Sprintf("Audit %d operations", r.Audited.Count())
	case r.Intent.Action == policy.ActionAllow:
		return fmt.Sprintf("Allow %d operations, block %d", 6-r.Blocked.Count(), r.Blocked.Count())
	default:
		return fmt.Sprintf("Block %d operations", r.Blocked.Count())
	}
}

func describe(r Result) string {
	rule := strings.Repeat("=", 50)
	lines := []string{
		rule,
		"POLICY PREVIEW",
		rule,
		fmt.Sprintf("Action   : %s", r.Intent.Action),
		fmt.Sprintf("Scope    : %s", r.Intent.Scope),
		fmt.Sprintf("Selected : %s", list(r.Intent.Operations.Names())),
		strings.Repeat("-", 50),
		"EFFECTIVE BEHAVIOR:",
	}

	switch {
	case r.BlockAll:
		lines = append(lines, "Read selected: BLOCK ALL ACCESS", "All operations will be blocked:")
		for _, op := range kernel.AllOps.Names() {
			lines = append(lines, "  block "+op)
		}
		lines = append(lines, "", "Blocking read blocks every access path, including copies and previews.")
	case r.Intent.Action == policy.ActionAudit:
		lines = append(lines, "Audited operations (logged, never blocked):")
		for _, op := range r.Audited.Names() {
			lines = append(lines, "  audit "+op)
		}
	case r.Intent.Action == policy.ActionAllow:
		lines = append(lines, "Allowed operations:")
		for _, op := range r.Blocked.Complement().Names() {
			lines = append(lines, "  allow "+op)
		}
		lines = append(lines, "Everything else is blocked:")
		for _, op := range r.Blocked.Names() {
			lines = append(lines, "  block "+op)
		}
	default:
		lines = append(lines, "Blocked operations:")
		for _, op := range r.Blocked.Names() {
			lines = append(lines, "  block "+op)
		}
	}

	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}

func list(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
