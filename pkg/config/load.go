package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WARDEN_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment overrides named WARDEN_SECTION_FIELD (for example
// WARDEN_API_LISTEN_ADDRESS). Environment variables take precedence over the
// file.
//
// The loading sequence is:
// 1. Start from Defaults
// 2. Decode the YAML file over them
// 3. Apply environment variable overrides
// 4. Fill defaults, including fields derived from others
// 5. Validate the result
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies WARDEN_* environment overrides. Values that do not
// parse are ignored.
func applyEnvOverrides(cfg *Config) {
	envString("AGENT_NAME", &cfg.Agent.Name)

	// Kernel overrides
	envBool("KERNEL_ENABLED", &cfg.Kernel.Enabled)
	envString("KERNEL_PORT_NAME", &cfg.Kernel.PortName)
	envString("KERNEL_RECONNECT_SCHEDULE", &cfg.Kernel.ReconnectSchedule)

	// Index overrides
	envBool("INDEX_SKIP_HIDDEN", &cfg.Index.SkipHidden)
	envBool("INDEX_SKIP_SYSTEM", &cfg.Index.SkipSystem)
	envBool("INDEX_FOLLOW_SYMLINKS", &cfg.Index.FollowSymlinks)

	// Store overrides
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	envInt("STORE_SQLITE_MAX_OPEN_CONNS", &cfg.Store.SQLite.MaxOpenConns)
	envDuration("STORE_SQLITE_BUSY_TIMEOUT", &cfg.Store.SQLite.BusyTimeout)
	envBool("STORE_SQLITE_DISABLE_WAL", &cfg.Store.SQLite.DisableWAL)

	// Journal overrides
	envBool("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	envString("JOURNAL_PATH", &cfg.Journal.Path)
	envInt("JOURNAL_RETENTION_DAYS", &cfg.Journal.RetentionDays)
	envString("JOURNAL_PRUNE_SCHEDULE", &cfg.Journal.PruneSchedule)
	envInt("JOURNAL_BUFFER_SIZE", &cfg.Journal.BufferSize)

	// API overrides
	envString("API_LISTEN_ADDRESS", &cfg.API.ListenAddress)
	envDuration("API_READ_TIMEOUT", &cfg.API.ReadTimeout)
	envDuration("API_WRITE_TIMEOUT", &cfg.API.WriteTimeout)
	envDuration("API_IDLE_TIMEOUT", &cfg.API.IdleTimeout)
	envDuration("API_SHUTDOWN_TIMEOUT", &cfg.API.ShutdownTimeout)
	envInt("API_MAX_HEADER_BYTES", &cfg.API.MaxHeaderBytes)
	envBool("API_EVENT_STREAM", &cfg.API.EventStream)
	envBool("API_AUTH_ENABLED", &cfg.API.Auth.Enabled)
	envString("API_AUTH_SECRETS_DIR", &cfg.API.Auth.SecretsDir)
	envBool("API_TLS_ENABLED", &cfg.API.TLS.Enabled)
	envString("API_TLS_CERT_FILE", &cfg.API.TLS.CertFile)
	envString("API_TLS_KEY_FILE", &cfg.API.TLS.KeyFile)
	envString("API_TLS_MIN_VERSION", &cfg.API.TLS.MinVersion)
	envString("API_TLS_CLIENT_CA_FILE", &cfg.API.TLS.ClientCAFile)
	envDuration("API_TLS_RELOAD_INTERVAL", &cfg.API.TLS.ReloadInterval)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("TELEMETRY_LOGGING_REDACT_DEVICE_PATHS", &cfg.Telemetry.Logging.RedactDevicePaths)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envBool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	envString("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
