package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	SetConfig(nil)
	initOnce = sync.Once{}
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	t.Cleanup(resetGlobal)

	first := writeConfig(t, "agent:\n  name: first\n")
	second := writeConfig(t, "agent:\n  name: second\n")

	if err := Initialize(first); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}
	if err := Initialize(second); err != nil {
		t.Fatalf("second Initialize() returned error: %v", err)
	}
	if got := GetConfig().Agent.Name; got != "first" {
		t.Errorf("expected later Initialize calls to be ignored, got %q", got)
	}

	cfg, err := ReloadConfig(second)
	if err != nil {
		t.Fatalf("ReloadConfig() failed: %v", err)
	}
	if cfg.Agent.Name != "second" || GetConfig() != cfg {
		t.Errorf("expected reload to replace the global config")
	}

	bad := writeConfig(t, "store:\n  backend: nope\n")
	if _, err := ReloadConfig(bad); err == nil {
		t.Fatal("expected reload error")
	}
	if GetConfig() != cfg {
		t.Error("failed reload must keep the current config")
	}
}
