package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/fsindex"
	"mercator-hq/warden/pkg/telemetry/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "report.docx"), []byte("q3"), 0o600); err != nil {
		t.Fatal(err)
	}
	data := t.TempDir()

	cfg := config.Defaults()
	cfg.Kernel.Enabled = false
	cfg.Store.Backend = "memory"
	cfg.Journal.Path = filepath.Join(data, "journal.db")
	cfg.API.ListenAddress = "127.0.0.1:0"
	cfg.API.ShutdownTimeout = 5 * time.Second
	cfg.Index.Volumes = map[string]config.VolumeConfig{
		"C": {Root: root, DevicePath: `\Device\HarddiskVolume3`, Label: "System"},
	}
	return cfg
}

func testLogger(t *testing.T, buf *bytes.Buffer) *logging.Logger {
	t.Helper()
	l, err := logging.New(logging.Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}
	return l
}

// startServer runs Start in the background and waits for the listener.
func startServer(t *testing.T, s *Server) (string, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned error = %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	}
	return "http://" + s.Addr().String(), stop
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{
			name:   "unknown backend",
			modify: func(c *config.Config) { c.Store.Backend = "etcd" },
		},
		{
			name: "bad drive letter",
			modify: func(c *config.Config) {
				c.Index.Volumes = map[string]config.VolumeConfig{
					"CD": {Root: t.TempDir(), DevicePath: `\Device\HarddiskVolume3`},
				}
			},
		},
		{
			name: "device path without prefix",
			modify: func(c *config.Config) {
				c.Index.Volumes = map[string]config.VolumeConfig{
					"C": {Root: t.TempDir(), DevicePath: `C:\`},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)

			var buf bytes.Buffer
			if _, err := New(context.Background(), cfg, testLogger(t, &buf), BuildInfo{}); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}

	if _, err := New(context.Background(), nil, nil, BuildInfo{}); err == nil {
		t.Error("New(nil) expected error, got nil")
	}
}

func TestServer_Lifecycle(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t)

	s, err := New(context.Background(), cfg, testLogger(t, &buf), BuildInfo{Version: "1.2.3", Commit: "abc123"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if s.Journal() == nil {
		t.Fatal("Journal() = nil with journal enabled")
	}

	base, stop := startServer(t, s)
	defer stop()

	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	t.Run("drives", func(t *testing.T) {
		var body struct {
			Nodes []fsindex.NodeInfo `json:"nodes"`
		}
		getJSON(t, base+"/v1/drives", http.StatusOK, &body)
		if len(body.Nodes) != 1 {
			t.Fatalf("drives = %d, want 1", len(body.Nodes))
		}
		if body.Nodes[0].Name != "System (C:)" {
			t.Errorf("drive name = %q, want %q", body.Nodes[0].Name, "System (C:)")
		}
	})

	t.Run("readiness without kernel check", func(t *testing.T) {
		resp, err := http.Get(base + cfg.Telemetry.Health.ReadinessPath)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("readiness status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("version", func(t *testing.T) {
		var v map[string]string
		getJSON(t, base+VersionPath, http.StatusOK, &v)
		if v["version"] != "1.2.3" {
			t.Errorf("version = %q, want %q", v["version"], "1.2.3")
		}
	})

	t.Run("apply is journaled", func(t *testing.T) {
		drives := s.Engine().Drives()
		if len(drives) != 1 {
			t.Fatalf("engine drives = %d, want 1", len(drives))
		}
		children, err := s.Engine().Expand(context.Background(), drives[0].ID)
		if err != nil {
			t.Fatalf("Expand() error = %v", err)
		}
		if len(children) != 1 {
			t.Fatalf("children = %d, want 1", len(children))
		}

		body := fmt.Sprintf(`{"node_id":%d,"scope":"file","action":"block","operations":{"write":true},"created_by":"alice"}`, children[0].ID)
		resp, err := http.Post(base+"/v1/policies", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			t.Fatalf("apply status = %d, want %d: %s", resp.StatusCode, http.StatusCreated, b)
		}

		deadline := time.Now().Add(5 * time.Second)
		for {
			n, err := s.Journal().Count(context.Background())
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if n > 0 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("applied policy was not journaled")
			}
			time.Sleep(20 * time.Millisecond)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(base + cfg.Telemetry.Metrics.Path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(b), "mercator_warden_policy_applies_total") {
			t.Error("metrics output missing policy_applies_total")
		}
	})
}

func TestServer_Stop(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(context.Background(), testConfig(t), testLogger(t, &buf), BuildInfo{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Stop() did not end Start")
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestServer_NoDrivesTolerated(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	cfg.Index.Volumes = map[string]config.VolumeConfig{
		"D": {Root: filepath.Join(t.TempDir(), "missing"), DevicePath: `\Device\HarddiskVolume4`},
	}

	s, err := New(context.Background(), cfg, testLogger(t, &buf), BuildInfo{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, stop := startServer(t, s)
	defer stop()

	if got := len(s.Engine().Drives()); got != 0 {
		t.Errorf("drives = %d, want 0", got)
	}
	if !strings.Contains(buf.String(), "no accessible drives found") {
		t.Error("missing no-drives warning in log output")
	}
}

func TestServer_ApplyConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig(t)
	cfg.Journal.Enabled = false
	log := testLogger(t, &buf)

	s, err := New(context.Background(), cfg, log, BuildInfo{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Shutdown(context.Background())

	same := *cfg
	same.API.ListenAddress = "127.0.0.1:9999"
	s.ApplyConfig(cfg, &same)
	if got := log.Level().String(); got != "INFO" {
		t.Errorf("level = %s, want INFO", got)
	}

	updated := *cfg
	updated.Telemetry.Logging.Level = "debug"
	s.ApplyConfig(cfg, &updated)
	if got := log.Level().String(); got != "DEBUG" {
		t.Errorf("level = %s, want DEBUG", got)
	}
	if !strings.Contains(buf.String(), "log level changed") {
		t.Error("expected level change to be logged")
	}
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s status = %d, want %d: %s", url, resp.StatusCode, wantStatus, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
