package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/warden/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if i := strings.LastIndex(line, "\n"); i >= 0 {
		line = line[i+1:]
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "text debug", cfg: Config{Level: "debug", Format: "text"}},
		{name: "bad level", cfg: Config{Level: "verbose"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
		{name: "bad pattern", cfg: Config{RedactPatterns: []config.RedactPattern{{Name: "x", Pattern: "("}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	l.Slog().Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}

	if err := l.SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	if l.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", l.Level())
	}
	buf.Reset()
	l.Slog().Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug record missing after SetLevel: %s", buf.String())
	}

	if err := l.SetLevel("loud"); err == nil {
		t.Error("SetLevel accepted an unknown level")
	}
}

func TestLogger_RedactsDevicePaths(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Writer: &buf, RedactDevicePaths: true})
	if err != nil {
		t.Fatal(err)
	}

	l.Slog().Info("rule sent",
		"path", `\Device\HarddiskVolume3\My Docs\a.txt`,
		"error", errors.New(`send failed for \Device\HarddiskVolume3\x.txt: denied`),
		"display", `C:\docs\a.txt`,
	)
	m := decodeLine(t, &buf)

	if m["path"] != DevicePathPlaceholder {
		t.Errorf("path = %v, want %s", m["path"], DevicePathPlaceholder)
	}
	if got := m["error"].(string); strings.Contains(got, "HarddiskVolume") {
		t.Errorf("error not redacted: %s", got)
	}
	if m["display"] != `C:\docs\a.txt` {
		t.Errorf("display path changed: %v", m["display"])
	}
}

func TestLogger_CustomPatterns(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{
		Writer: &buf,
		RedactPatterns: []config.RedactPattern{
			{Name: "user", Pattern: `Users\\[^\\]+`, Replacement: `Users\[user]`},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	l.Slog().Info("node expanded", "display", `C:\Users\alice\Documents`)
	m := decodeLine(t, &buf)
	if m["display"] != `C:\Users\[user]\Documents` {
		t.Errorf("display = %v", m["display"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithOperationID(ctx, "op-2")
	ctx = WithAdmin(ctx, "admin")
	l.Slog().With("component", "test").InfoContext(ctx, "policy applied")

	m := decodeLine(t, &buf)
	for key, want := range map[string]string{
		"request_id": "req-1",
		"op_id":      "op-2",
		"admin":      "admin",
		"component":  "test",
	} {
		if m[key] != want {
			t.Errorf("%s = %v, want %s", key, m[key], want)
		}
	}
}

func TestContextAccessors_Empty(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetOperationID(ctx) != "" || GetAdmin(ctx) != "" {
		t.Error("empty context returned values")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LoggingConfig{Level: "debug", Format: "text", RedactDevicePaths: true})
	if cfg.Level != "debug" || cfg.Format != "text" || !cfg.RedactDevicePaths {
		t.Errorf("FromConfig() = %+v", cfg)
	}
}
