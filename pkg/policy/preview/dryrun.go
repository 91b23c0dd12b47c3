package preview

import (
	"fmt"
	"strings"

	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/policy"
)

// Action is a user-facing file action simulated by DryRun.
type Action struct {
	Name string `json:"name"`
	Op   string `json:"op"`
}

// Catalogue is the fixed list of actions DryRun simulates.
var Catalogue = []Action{
	{Name: "Open/Read file", Op: "open"},
	{Name: "Copy file", Op: "copy"},
	{Name: "Delete file", Op: "delete"},
	{Name: "Rename file", Op: "rename"},
	{Name: "Modify/Write file", Op: "modify"},
	{Name: "Execute file", Op: "execute"},
	{Name: "Create new file", Op: "create"},
}

// Outcome is the simulated result of one action.
type Outcome struct {
	Action    string `json:"operation"`
	Op        string `json:"op"`
	WillBlock bool   `json:"will_block"`
	Reason    string `json:"reason"`
}

// Evaluation is the dry-run report for an intent.
type Evaluation struct {
	NodeID       uint64    `json:"node_id"`
	Preview      string    `json:"policy_preview"`
	Results      []Outcome `json:"results"`
	BlockedCount int       `json:"blocked_count"`
	AllowedCount int       `json:"allowed_count"`
	Summary      string    `json:"summary"`
}

// DryRun simulates the catalogue against an intent's effective operations.
func DryRun(intent policy.Intent) (Evaluation, error) {
	p, err := Preview(intent)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{
		NodeID:  intent.NodeID,
		Preview: p.Description,
		Results: make([]Outcome, 0, len(Catalogue)),
	}
	for _, a := range Catalogue {
		block, reason := simulate(a.Op, p)
		ev.Results = append(ev.Results, Outcome{Action: a.Name, Op: a.Op, WillBlock: block, Reason: reason})
		if block {
			ev.BlockedCount++
		} else {
			ev.AllowedCount++
		}
	}
	ev.Summary = summary(ev, p)
	return ev, nil
}

func simulate(op string, p Result) (bool, string) {
	if p.BlockAll {
		return true, "read selected: block all"
	}
	if op == "open" {
		return false, "read is not blocked"
	}

	blocked := opIn(op, p.Blocked)
	audited := opIn(op, p.Audited)
	switch {
	case blocked && p.Intent.Action == policy.ActionAllow:
		return true, "not in the allow list"
	case blocked:
		return true, "blocked by policy"
	case audited:
		return false, "allowed and audited"
	default:
		return false, "allowed"
	}
}

func opIn(op string, set kernel.OpSet) bool {
	switch op {
	case "modify":
		return set.Write
	case "delete":
		return set.Delete
	case "rename":
		return set.Rename
	case "create":
		return set.Create
	case "copy":
		return set.Copy
	case "execute":
		return set.Execute
	default:
		return false
	}
}

func summary(ev Evaluation, p Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dry run summary for node %d\n", ev.NodeID)
	fmt.Fprintf(&b, "Operations simulated: %d\n", len(ev.Results))
	fmt.Fprintf(&b, "Will be blocked: %d\n", ev.BlockedCount)
	fmt.Fprintf(&b, "Will be allowed: %d\n", ev.AllowedCount)
	if p.BlockAll {
		b.WriteString("\nCRITICAL: read selected, all operations blocked\n")
	}
	return b.String()
}
