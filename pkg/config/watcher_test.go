package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestRestartRequired(t *testing.T) {
	old := Defaults()
	updated := Defaults()
	updated.Telemetry.Logging.Level = "debug"

	if changed := RestartRequired(old, updated); len(changed) != 0 {
		t.Errorf("log level is applied live, got %v", changed)
	}

	updated.API.ListenAddress = "0.0.0.0:1"
	updated.Store.Backend = "memory"
	changed := RestartRequired(old, updated)
	if len(changed) != 2 || changed[0] != "store" || changed[1] != "api" {
		t.Errorf("expected [store api], got %v", changed)
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one call after a burst, got %d", n)
	}

	d.Stop()
	d.Trigger(func() { calls.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("expected no calls after Stop, got %d", n)
	}
}

func TestWatcher_Reloads(t *testing.T) {
	t.Cleanup(resetGlobal)
	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	w, err := NewWatcher(path, cfg, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = w.Watch(ctx, func(_, updated *Config) {
			select {
			case reloaded <- updated:
			default:
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case updated := <-reloaded:
		if updated.Telemetry.Logging.Level != "debug" {
			t.Errorf("expected debug level after reload, got %q", updated.Telemetry.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}
