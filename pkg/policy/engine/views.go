package engine

import (
	"fmt"
	"time"

	"mercator-hq/warden/pkg/policy"
	"mercator-hq/warden/pkg/policy/preview"
	"mercator-hq/warden/pkg/policy/store"
)

// PolicyView is the administrator-facing form of an active policy.
type PolicyView struct {
	ID     policy.ID `json:"id"`
	NodeID uint64    `json:"node_id"`

	// Detached is set while the policy's subject is not materialized in the
	// index, for example after a restart. NodeID is zero then.
	Detached bool `json:"detached"`

	DisplayPath   string            `json:"display_path,omitempty"`
	Intent        policy.Intent     `json:"intent"`
	RuleCount     int               `json:"rule_count"`
	DriverIDs     []policy.DriverID `json:"driver_ids"`
	Active        bool              `json:"active"`
	Simulated     bool              `json:"simulated"`
	Mode          EnforcementMode   `json:"mode"`
	Transmittable bool              `json:"transmittable"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// EnforcementMode says whether a policy reached the driver.
type EnforcementMode int

const (
	ModeReal EnforcementMode = iota + 1
	ModeSimulated
)

func (m EnforcementMode) String() string {
	switch m {
	case ModeReal:
		return "real"
	case ModeSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m EnforcementMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EnforcementMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "real":
		*m = ModeReal
	case "simulated":
		*m = ModeSimulated
	default:
		return fmt.Errorf("unknown enforcement mode %q", text)
	}
	return nil
}

// HealthStatus grades one policy.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthWarning
	HealthDegraded
	HealthFailed
)

var healthNames = map[HealthStatus]string{
	HealthUnknown:  "unknown",
	HealthHealthy:  "healthy",
	HealthWarning:  "warning",
	HealthDegraded: "degraded",
	HealthFailed:   "failed",
}

func (h HealthStatus) String() string {
	if s, ok := healthNames[h]; ok {
		return s
	}
	return fmt.Sprintf("HealthStatus(%d)", int(h))
}

// MarshalText implements encoding.TextMarshaler.
func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HealthStatus) UnmarshalText(text []byte) error {
	for status, name := range healthNames {
		if name == string(text) {
			*h = status
			return nil
		}
	}
	return fmt.Errorf("unknown health status %q", text)
}

// Health is the enforcement state of one policy.
type Health struct {
	PolicyID        policy.ID       `json:"policy_id"`
	Status          HealthStatus    `json:"status"`
	Mode            EnforcementMode `json:"mode"`
	KernelConnected bool            `json:"kernel_connected"`
	Reason          string          `json:"reason"`
}

// Stats summarizes active policies.
type Stats struct {
	TotalPolicies    int            `json:"total_policies"`
	ActivePolicies   int            `json:"active_policies"`
	ByAction         map[string]int `json:"by_action"`
	ProtectedNodes   int            `json:"protected_nodes"`
	DetachedPolicies int            `json:"detached_policies"`
	KernelConnected  bool           `json:"kernel_connected"`
	Mode             string         `json:"mode"`
}

// EnforcementStats counts policies by enforcement outcome and kernel traffic.
type EnforcementStats struct {
	TotalPolicies   int    `json:"total_policies"`
	Real            int    `json:"real_enforcement"`
	Simulated       int    `json:"simulated"`
	Healthy         int    `json:"healthy"`
	Warning         int    `json:"warning"`
	Degraded        int    `json:"degraded"`
	Failed          int    `json:"failed"`
	RulesSent       uint64 `json:"rules_sent"`
	RulesRemoved    uint64 `json:"rules_removed"`
	SendFailures    uint64 `json:"send_failures"`
	RemoveFailures  uint64 `json:"remove_failures"`
	SimulatedIssued uint64 `json:"simulated_ids_issued"`
	Resynced        uint64 `json:"resynced"`
}

// ListActive returns every active policy ordered by id.
func (e *Engine) ListActive() []PolicyView {
	list := e.store.List()
	out := make([]PolicyView, 0, len(list))
	for _, p := range list {
		if p.Active {
			out = append(out, e.view(p))
		}
	}
	return out
}

// PoliciesForNode returns the policies bound to a node. A policy whose subject
// has not been materialized since the agent started is bound to no node.
func (e *Engine) PoliciesForNode(nodeID uint64) []PolicyView {
	list := e.store.ForNode(nodeID)
	out := make([]PolicyView, 0, len(list))
	for _, p := range list {
		out = append(out, e.view(p))
	}
	return out
}

// Policy returns one policy.
func (e *Engine) Policy(id policy.ID) (PolicyView, error) {
	p, ok := e.store.Get(id)
	if !ok {
		return PolicyView{}, policy.NotFound("get_policy", "policy %s not found", id)
	}
	return e.view(p), nil
}

func (e *Engine) view(p store.ActivePolicy) PolicyView {
	v := PolicyView{
		ID:            p.ID,
		NodeID:        p.NodeID,
		Detached:      p.NodeID == 0,
		DisplayPath:   p.SubjectPath,
		Intent:        p.Intent,
		RuleCount:     len(p.Rules),
		DriverIDs:     append([]policy.DriverID(nil), p.DriverIDs...),
		Active:        p.Active,
		Simulated:     p.Simulated,
		Mode:          ModeReal,
		Transmittable: transmittable(p.Rules),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Simulated {
		v.Mode = ModeSimulated
	}
	if v.DisplayPath == "" && p.NodeID != 0 {
		v.DisplayPath, _ = e.index.DisplayPath(p.NodeID)
	}
	return v
}

// Preview computes what intent would do without touching any state.
func (e *Engine) Preview(intent policy.Intent) (preview.Result, error) {
	return preview.Preview(intent)
}

// DryRun evaluates common actions against intent without touching any state.
func (e *Engine) DryRun(intent policy.Intent) (preview.Evaluation, error) {
	return preview.DryRun(intent)
}

// PolicyHealth grades one policy.
func (e *Engine) PolicyHealth(id policy.ID) (Health, error) {
	p, ok := e.store.Get(id)
	if !ok {
		return Health{}, policy.NotFound("policy_health", "policy %s not found", id)
	}
	return e.health(p, e.slot.Connected()), nil
}

func (e *Engine) health(p store.ActivePolicy, connected bool) Health {
	h := Health{
		PolicyID:        p.ID,
		Mode:            ModeReal,
		KernelConnected: connected,
	}
	if p.Simulated {
		h.Mode = ModeSimulated
	}

	switch {
	case !p.Active:
		h.Status = HealthFailed
		h.Reason = "policy is inactive"
	case !transmittable(p.Rules):
		h.Status = HealthWarning
		h.Reason = "policy has no kernel representation"
	case !connected:
		h.Status = HealthWarning
		h.Reason = "kernel not connected, enforcement is simulated"
	case p.Simulated:
		h.Status = HealthDegraded
		h.Reason = "kernel connected but policy was not sent"
	default:
		h.Status = HealthHealthy
		h.Reason = "enforced by kernel"
	}
	return h
}

// Stats summarizes active policies.
func (e *Engine) Stats() Stats {
	connected := e.slot.Connected()
	st := e.store.Stats()
	s := Stats{
		TotalPolicies:    st.Total,
		ActivePolicies:   st.Active,
		ByAction:         make(map[string]int),
		ProtectedNodes:   st.ProtectedNodes,
		DetachedPolicies: e.store.Detached(),
		KernelConnected:  connected,
		Mode:             ModeSimulated.String(),
	}
	if connected {
		s.Mode = ModeReal.String()
	}
	for _, p := range e.store.List() {
		s.ByAction[p.Intent.Action.String()]++
	}
	return s
}

// EnforcementStats grades every policy and reports kernel traffic.
func (e *Engine) EnforcementStats() EnforcementStats {
	connected := e.slot.Connected()
	s := EnforcementStats{
		RulesSent:       e.rulesSent.Load(),
		RulesRemoved:    e.rulesRemoved.Load(),
		SendFailures:    e.sendFailures.Load(),
		RemoveFailures:  e.removeFailures.Load(),
		SimulatedIssued: e.simulatedIssued.Load(),
		Resynced:        e.resynced.Load(),
	}
	for _, p := range e.store.List() {
		s.TotalPolicies++
		if p.Simulated {
			s.Simulated++
		} else {
			s.Real++
		}
		switch e.health(p, connected).Status {
		case HealthHealthy:
			s.Healthy++
		case HealthWarning:
			s.Warning++
		case HealthDegraded:
			s.Degraded++
		case HealthFailed:
			s.Failed++
		}
	}
	return s
}
