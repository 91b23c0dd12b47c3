package kernel

import (
	"strings"
	"testing"

	"mercator-hq/warden/pkg/devpath"
	"mercator-hq/warden/pkg/policy"
)

const filePath devpath.DevicePath = `\Device\HarddiskVolume3\docs\a.txt`

func TestNormalize_ReadBlockExpandsToBlockAll(t *testing.T) {
	// Every combination of the six kernel ops, with read set.
	for mask := 0; mask < 64; mask++ {
		ops := policy.Operations{
			Read:    true,
			Write:   mask&1 != 0,
			Delete:  mask&2 != 0,
			Rename:  mask&4 != 0,
			Create:  mask&8 != 0,
			Copy:    mask&16 != 0,
			Execute: mask&32 != 0,
		}
		intent := policy.NewIntent(42, policy.ScopeFile, policy.ActionBlock, ops, "admin")

		rules := Normalize(intent, []devpath.DevicePath{filePath}, 7)
		if len(rules) != 1 {
			t.Fatalf("mask %d: expected 1 rule, got %d", mask, len(rules))
		}
		r := rules[0]
		if !r.BlockAll {
			t.Errorf("mask %d: expected block_all", mask)
		}
		if r.Blocked != AllOps {
			t.Errorf("mask %d: expected all ops blocked, got %v", mask, r.Blocked.Names())
		}
		if err := ValidateRule(r); err != nil {
			t.Errorf("mask %d: ValidateRule() failed: %v", mask, err)
		}
	}
}

func TestNormalize_Actions(t *testing.T) {
	tests := []struct {
		name        string
		action      policy.Action
		ops         policy.Operations
		wantBlocked OpSet
		wantAudited OpSet
	}{
		{
			name:        "block selected ops",
			action:      policy.ActionBlock,
			ops:         policy.Operations{Write: true, Delete: true},
			wantBlocked: OpSet{Write: true, Delete: true},
		},
		{
			name:        "allow is an allow-list",
			action:      policy.ActionAllow,
			ops:         policy.Operations{Write: true, Rename: true},
			wantBlocked: OpSet{Delete: true, Create: true, Copy: true, Execute: true},
		},
		{
			name:        "audit marks without blocking",
			action:      policy.ActionAudit,
			ops:         policy.Operations{Read: true, Copy: true},
			wantAudited: OpSet{Copy: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := policy.NewIntent(5, policy.ScopeFile, tt.action, tt.ops, "admin")
			r := Normalize(intent, []devpath.DevicePath{filePath}, 1)[0]
			if r.BlockAll {
				t.Error("unexpected block_all")
			}
			if r.Blocked != tt.wantBlocked {
				t.Errorf("blocked = %v, want %v", r.Blocked.Names(), tt.wantBlocked.Names())
			}
			if r.Audited != tt.wantAudited {
				t.Errorf("audited = %v, want %v", r.Audited.Names(), tt.wantAudited.Names())
			}
			if r.Action != tt.action || r.CreatedBy != "admin" || r.PolicyID != 1 {
				t.Errorf("metadata not carried: %+v", r)
			}
		})
	}
}

func TestNormalize_MatchMode(t *testing.T) {
	ops := policy.Operations{Write: true}

	rules := Normalize(policy.NewIntent(3, policy.ScopeFolderRecursive, policy.ActionBlock, ops, "admin"),
		[]devpath.DevicePath{`\Device\HarddiskVolume3\docs\`}, 2)
	if rules[0].Mode != MatchPrefix || !rules[0].IsFolder() {
		t.Errorf("recursive scope should produce a prefix rule, got %s", rules[0].Mode)
	}

	rules = Normalize(policy.NewIntent(3, policy.ScopeFolder, policy.ActionBlock, ops, "admin"),
		[]devpath.DevicePath{filePath, `\Device\HarddiskVolume3\docs\b.txt`}, 2)
	if len(rules) != 2 {
		t.Fatalf("expected a rule per file, got %d", len(rules))
	}
	for _, r := range rules {
		if r.Mode != MatchExact {
			t.Errorf("folder scope should match files exactly, got %s", r.Mode)
		}
	}
}

func TestValidateRule(t *testing.T) {
	base := Rule{PolicyID: 1, Path: filePath, Mode: MatchExact, Blocked: OpSet{Write: true}}

	tests := []struct {
		name     string
		mutate   func(*Rule)
		wantKind policy.Kind
	}{
		{"valid", func(*Rule) {}, policy.KindUnknown},
		{"missing device prefix", func(r *Rule) { r.Path = `C:\docs\a.txt` }, policy.KindInvalidPath},
		{"prefix without separator", func(r *Rule) { r.Mode = MatchPrefix }, policy.KindInvalidPath},
		{"exact with separator", func(r *Rule) { r.Path = `\Device\HarddiskVolume3\docs\` }, policy.KindInvalidPath},
		{"path too long", func(r *Rule) {
			r.Path = devpath.DevicePath(`\Device\HarddiskVolume3\` + strings.Repeat("x", devpath.MaxUnits))
		}, policy.KindInvalidPath},
		{"blocks nothing", func(r *Rule) { r.Blocked = OpSet{} }, policy.KindInvalidIntent},
		{"audit only", func(r *Rule) { r.Blocked = OpSet{}; r.Audited = OpSet{Delete: true} }, policy.KindUnknown},
		{"block all alone", func(r *Rule) { r.Blocked = OpSet{}; r.BlockAll = true }, policy.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := ValidateRule(r)
			if tt.wantKind == policy.KindUnknown {
				if err != nil {
					t.Errorf("expected valid rule, got %v", err)
				}
				return
			}
			if !policy.IsKind(err, tt.wantKind) {
				t.Errorf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestRule_Transmittable(t *testing.T) {
	tests := []struct {
		rule Rule
		want bool
	}{
		{Rule{Blocked: OpSet{Write: true}}, true},
		{Rule{BlockAll: true}, true},
		{Rule{Blocked: OpSet{Copy: true, Execute: true}}, false},
		{Rule{Audited: OpSet{Write: true}}, false},
	}
	for i, tt := range tests {
		if got := tt.rule.Transmittable(); got != tt.want {
			t.Errorf("case %d: Transmittable() = %v, want %v", i, got, tt.want)
		}
	}
	if !(Rule{Audited: OpSet{Write: true}}).AuditOnly() {
		t.Error("expected audit-only rule")
	}
}

func TestMatchMode_Text(t *testing.T) {
	var m MatchMode
	if err := m.UnmarshalText([]byte(" Prefix ")); err != nil || m != MatchPrefix {
		t.Errorf("UnmarshalText() = %v, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("fuzzy")); err == nil {
		t.Error("expected error for unknown mode")
	}
}
