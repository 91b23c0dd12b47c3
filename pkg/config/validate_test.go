package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty agent name", func(c *Config) { c.Agent.Name = " " }, "agent.name"},
		{"port name", func(c *Config) { c.Kernel.PortName = "DlpPort" }, "kernel.port_name"},
		{"volume letter", func(c *Config) {
			c.Index.Volumes = map[string]VolumeConfig{"CC": {Root: "/x", DevicePath: `\Device\HarddiskVolume1`}}
		}, "index.volumes.CC"},
		{"volume root", func(c *Config) {
			c.Index.Volumes = map[string]VolumeConfig{"C": {DevicePath: `\Device\HarddiskVolume1`}}
		}, "index.volumes.C.root"},
		{"volume device", func(c *Config) {
			c.Index.Volumes = map[string]VolumeConfig{"C": {Root: "/x", DevicePath: `C:\`}}
		}, "index.volumes.C.device_path"},
		{"fallback device", func(c *Config) {
			c.Index.FallbackDevices = map[string]string{"D": "HarddiskVolume5"}
		}, "index.fallback_devices.D"},
		{"sqlite path", func(c *Config) { c.Store.SQLite.Path = "" }, "store.sqlite.path"},
		{"backend", func(c *Config) { c.Store.Backend = "etcd" }, "store.backend"},
		{"journal buffer", func(c *Config) { c.Journal.BufferSize = 0 }, "journal.buffer_size"},
		{"journal schedule", func(c *Config) { c.Journal.PruneSchedule = "daily" }, "journal.prune_schedule"},
		{"listen address", func(c *Config) { c.API.ListenAddress = "" }, "api.listen_address"},
		{"read timeout", func(c *Config) { c.API.ReadTimeout = -1 }, "api.read_timeout"},
		{"auth without keys", func(c *Config) { c.API.Auth.Enabled = true }, "api.auth.keys"},
		{"auth only disabled keys", func(c *Config) {
			c.API.Auth.Enabled = true
			c.API.Auth.Keys = []APIKeyConfig{{Admin: "alice", Key: "k", Disabled: true}}
		}, "api.auth.keys"},
		{"auth key admin", func(c *Config) {
			c.API.Auth.Enabled = true
			c.API.Auth.Keys = []APIKeyConfig{{Key: "k"}}
		}, "api.auth.keys[0].admin"},
		{"auth key value", func(c *Config) {
			c.API.Auth.Enabled = true
			c.API.Auth.Keys = []APIKeyConfig{{Admin: "alice"}}
		}, "api.auth.keys[0].key"},
		{"tls cert", func(c *Config) {
			c.API.TLS.Enabled = true
			c.API.TLS.KeyFile = "server.key"
		}, "api.tls.cert_file"},
		{"tls key", func(c *Config) {
			c.API.TLS.Enabled = true
			c.API.TLS.CertFile = "server.crt"
		}, "api.tls.key_file"},
		{"tls version", func(c *Config) {
			c.API.TLS.Enabled = true
			c.API.TLS.CertFile = "server.crt"
			c.API.TLS.KeyFile = "server.key"
			c.API.TLS.MinVersion = "1.1"
		}, "api.tls.min_version"},
		{"log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"log format", func(c *Config) { c.Telemetry.Logging.Format = "console" }, "telemetry.logging.format"},
		{"redact pattern", func(c *Config) {
			c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "bad", Pattern: "("}}
		}, "telemetry.logging.redact_patterns[0].pattern"},
		{"metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"sample ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 }, "telemetry.tracing.sample_ratio"},
		{"tracing endpoint", func(c *Config) {
			c.Telemetry.Tracing.Enabled = true
			c.Telemetry.Tracing.Endpoint = ""
		}, "telemetry.tracing.endpoint"},
		{"liveness path", func(c *Config) { c.Telemetry.Health.LivenessPath = "health" }, "telemetry.health.liveness_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidate_JournalDisabledSkipsChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Journal.Enabled = false
	cfg.Journal.Path = ""
	cfg.Journal.BufferSize = 0
	if err := Validate(cfg); err != nil {
		t.Errorf("expected disabled journal to skip validation, got %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "one"},
		{Field: "b", Message: "two"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "with 2 errors") || !strings.Contains(msg, "  - b: two") {
		t.Errorf("unexpected message %q", msg)
	}

	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "one"}}}
	if single.Error() != "configuration validation failed: a: one" {
		t.Errorf("unexpected message %q", single.Error())
	}
}
