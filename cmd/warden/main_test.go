package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"mercator-hq/warden/pkg/cli"
	"mercator-hq/warden/pkg/events"
	"mercator-hq/warden/pkg/events/journal"
)

// runWith executes fn against cmd with output captured.
func runWith(t *testing.T, cmd *cobra.Command, format string, fn func(*cobra.Command, []string) error) (string, error) {
	t.Helper()
	orig := outputFormat
	outputFormat = format
	t.Cleanup(func() { outputFormat = orig })

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	t.Cleanup(func() { cmd.SetOut(nil) })

	err := fn(cmd, nil)
	return buf.String(), err
}

func TestLoadIntent(t *testing.T) {
	intentFlags.admin = ""

	intent, err := loadIntent("testdata/block-write.yaml")
	if err != nil {
		t.Fatalf("loadIntent() error = %v", err)
	}
	if intent.NodeID != 42 {
		t.Errorf("NodeID = %d, want 42", intent.NodeID)
	}
	if intent.Scope.String() != "file" || intent.Action.String() != "block" {
		t.Errorf("scope/action = %s/%s, want file/block", intent.Scope, intent.Action)
	}
	if !intent.Operations.Write || !intent.Operations.Delete || intent.Operations.Read {
		t.Errorf("Operations = %+v", intent.Operations)
	}
	if intent.CreatedAt.IsZero() {
		t.Error("CreatedAt should be stamped")
	}
}

func TestLoadIntent_AdminFallback(t *testing.T) {
	intentFlags.admin = "bob"
	defer func() { intentFlags.admin = "" }()

	intent, err := loadIntent("testdata/no-author.yaml")
	if err != nil {
		t.Fatalf("loadIntent() error = %v", err)
	}
	if intent.CreatedBy != "bob" {
		t.Errorf("CreatedBy = %q, want %q", intent.CreatedBy, "bob")
	}
}

func TestLoadIntent_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "no path", path: ""},
		{name: "missing file", path: "testdata/nonexistent.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadIntent(tt.path); err == nil {
				t.Error("loadIntent() expected error, got nil")
			}
		})
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("scope: sideways\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadIntent(bad); err == nil {
		t.Error("loadIntent() with unknown scope expected error, got nil")
	}
}

func TestSafety(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		kernel    bool
		wantExit  int
		wantInOut string
	}{
		{
			name:      "valid intent without kernel",
			file:      "testdata/block-write.yaml",
			wantExit:  cli.ExitOK,
			wantInOut: "simulation mode",
		},
		{
			name:      "recursive block all needs strong confirmation",
			file:      "testdata/block-all-recursive.yaml",
			kernel:    true,
			wantExit:  cli.ExitOK,
			wantInOut: "CONFIRM_RECURSIVE_BLOCK_ALL",
		},
		{
			name:      "create on a file is refused",
			file:      "testdata/invalid-create-on-file.yaml",
			kernel:    true,
			wantExit:  cli.ExitRefused,
			wantInOut: "FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intentFlags.file = tt.file
			intentFlags.kernelConnected = tt.kernel
			defer func() { intentFlags.kernelConnected = false }()

			out, err := runWith(t, safetyCmd, "text", checkSafety)
			if got := cli.ExitCode(err); got != tt.wantExit {
				t.Errorf("exit code = %d, want %d (err = %v)", got, tt.wantExit, err)
			}
			if !strings.Contains(out, tt.wantInOut) {
				t.Errorf("output missing %q:\n%s", tt.wantInOut, out)
			}
		})
	}
}

func TestSafety_JSON(t *testing.T) {
	intentFlags.file = "testdata/block-write.yaml"
	intentFlags.kernelConnected = true
	defer func() { intentFlags.kernelConnected = false }()

	out, err := runWith(t, safetyCmd, "json", checkSafety)
	if err != nil {
		t.Fatalf("checkSafety() error = %v", err)
	}

	var report struct {
		Valid                bool `json:"is_valid"`
		RequiresConfirmation bool `json:"requires_confirmation"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if !report.Valid || report.RequiresConfirmation {
		t.Errorf("report = %+v, want valid without confirmation", report)
	}
}

func TestPreview(t *testing.T) {
	intentFlags.file = "testdata/block-write.yaml"

	out, err := runWith(t, previewCmd, "json", previewIntent)
	if err != nil {
		t.Fatalf("previewIntent() error = %v", err)
	}
	var result struct {
		BlockAll bool   `json:"block_all"`
		Summary  string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if result.BlockAll {
		t.Error("BlockAll = true for a write/delete block")
	}
	if result.Summary == "" {
		t.Error("Summary is empty")
	}

	intentFlags.file = "testdata/invalid-create-on-file.yaml"
	if _, err := runWith(t, previewCmd, "text", previewIntent); cli.ExitCode(err) != cli.ExitRefused {
		t.Errorf("invalid intent exit code = %d, want %d", cli.ExitCode(err), cli.ExitRefused)
	}
}

func TestDryRun(t *testing.T) {
	intentFlags.file = "testdata/block-write.yaml"

	out, err := runWith(t, dryRunCmd, "text", dryRunIntent)
	if err != nil {
		t.Fatalf("dryRunIntent() error = %v", err)
	}
	for _, want := range []string{"ACTION", "Modify/Write file", "BLOCKED", "allowed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRender_UnknownFormat(t *testing.T) {
	intentFlags.file = "testdata/block-write.yaml"

	_, err := runWith(t, previewCmd, "xml", previewIntent)
	if got := cli.ExitCode(err); got != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d", got, cli.ExitConfig)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigValidate(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = writeConfig(t, "store:\n  backend: memory\n")
	out, err := runWith(t, configValidateCmd, "text", validateConfig)
	if err != nil {
		t.Fatalf("validateConfig() error = %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("output = %q", out)
	}

	cfgFile = writeConfig(t, "store:\n  backend: etcd\n")
	if _, err := runWith(t, configValidateCmd, "text", validateConfig); cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("invalid config exit code = %d, want %d", cli.ExitCode(err), cli.ExitConfig)
	}
}

func TestEvents(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(journal.Config{Path: dbPath}, nil)
	if err != nil {
		t.Fatalf("journal.Open() error = %v", err)
	}
	e := events.New(events.TypePolicyApplied, "policy applied")
	e.PolicyID = 9
	e.NodeID = 42
	if err := j.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	cfgFile = writeConfig(t, "store:\n  backend: memory\njournal:\n  path: "+filepath.ToSlash(dbPath)+"\n")
	eventsFlags.limit = 10
	eventsFlags.prune = false

	out, err := runWith(t, eventsCmd, "text", showEvents)
	if err != nil {
		t.Fatalf("showEvents() error = %v", err)
	}
	for _, want := range []string{"policy.applied", "42", "policy applied"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runWith(t, eventsCmd, "json", showEvents)
	if err != nil {
		t.Fatalf("showEvents() json error = %v", err)
	}
	var list []events.Event
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(list) != 1 || list[0].PolicyID != 9 {
		t.Errorf("events = %+v, want one event for policy 9", list)
	}
}

func TestEvents_Disabled(t *testing.T) {
	orig := cfgFile
	defer func() { cfgFile = orig }()

	cfgFile = writeConfig(t, "store:\n  backend: memory\njournal:\n  enabled: false\n")
	eventsFlags.limit = 10
	if _, err := runWith(t, eventsCmd, "text", showEvents); cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("exit code = %d, want %d", cli.ExitCode(err), cli.ExitConfig)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "version", "config", "safety", "preview", "dry-run", "events"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
