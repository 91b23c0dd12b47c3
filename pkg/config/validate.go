package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field, e.g. "api.listen_address".
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError listing
// every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	if strings.TrimSpace(cfg.Agent.Name) == "" {
		errs = append(errs, FieldError{Field: "agent.name", Message: "agent name is required"})
	}

	errs = append(errs, validateKernel(&cfg.Kernel)...)
	errs = append(errs, validateIndex(&cfg.Index)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateAPI(&cfg.API)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateKernel(cfg *KernelConfig) []FieldError {
	var errs []FieldError

	if !strings.HasPrefix(cfg.PortName, `\`) {
		errs = append(errs, FieldError{
			Field:   "kernel.port_name",
			Message: `port name must start with "\"`,
		})
	}
	if cfg.ReconnectSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReconnectSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "kernel.reconnect_schedule",
				Message: fmt.Sprintf("invalid cron schedule: %v", err),
			})
		}
	}
	return errs
}

func validateIndex(cfg *IndexConfig) []FieldError {
	var errs []FieldError

	for letter, v := range cfg.Volumes {
		field := "index.volumes." + letter
		if !validDriveLetter(letter) {
			errs = append(errs, FieldError{Field: field, Message: "key must be a single drive letter"})
		}
		if v.Root == "" {
			errs = append(errs, FieldError{Field: field + ".root", Message: "root directory is required"})
		}
		if !strings.HasPrefix(v.DevicePath, `\Device\`) {
			errs = append(errs, FieldError{
				Field:   field + ".device_path",
				Message: `device path must start with "\Device\"`,
			})
		}
	}
	for letter, dev := range cfg.FallbackDevices {
		field := "index.fallback_devices." + letter
		if !validDriveLetter(letter) {
			errs = append(errs, FieldError{Field: field, Message: "key must be a single drive letter"})
		}
		if !strings.HasPrefix(dev, `\Device\`) {
			errs = append(errs, FieldError{Field: field, Message: `device path must start with "\Device\"`})
		}
	}
	return errs
}

func validDriveLetter(s string) bool {
	s = strings.TrimSuffix(strings.ToUpper(s), ":")
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "store.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "store.sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.busy_timeout", Message: "must be non-negative"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q (want sqlite or memory)", cfg.Backend),
		})
	}
	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: "journal.path", Message: "path is required when the journal is enabled"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "journal.retention_days", Message: "must be non-negative"})
	}
	if cfg.BufferSize < 1 {
		errs = append(errs, FieldError{Field: "journal.buffer_size", Message: "must be at least 1"})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "journal.prune_schedule",
				Message: fmt.Sprintf("invalid cron schedule: %v", err),
			})
		}
	}
	return errs
}

func validateAPI(cfg *APIConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "api.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "api.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "api.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "api.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "api.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "api.max_header_bytes", Message: "max header bytes must be non-negative"})
	}

	if cfg.Auth.Enabled {
		enabled := 0
		for i, k := range cfg.Auth.Keys {
			if k.Admin == "" {
				errs = append(errs, FieldError{Field: fmt.Sprintf("api.auth.keys[%d].admin", i), Message: "admin is required"})
			}
			if k.Key == "" {
				errs = append(errs, FieldError{Field: fmt.Sprintf("api.auth.keys[%d].key", i), Message: "key is required"})
			}
			if !k.Disabled {
				enabled++
			}
		}
		if enabled == 0 {
			errs = append(errs, FieldError{Field: "api.auth.keys", Message: "at least one enabled key is required when auth is enabled"})
		}
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "api.tls.cert_file", Message: "cert file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "api.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
		switch cfg.TLS.MinVersion {
		case "", "1.2", "1.3":
		default:
			errs = append(errs, FieldError{
				Field:   "api.tls.min_version",
				Message: fmt.Sprintf("unsupported TLS version %q (want 1.2 or 1.3)", cfg.TLS.MinVersion),
			})
		}
		if cfg.TLS.ReloadInterval < 0 {
			errs = append(errs, FieldError{Field: "api.tls.reload_interval", Message: "reload interval must be positive"})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (want debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (want json or text)", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: `path must start with "/"`})
	}

	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: `path must start with "/"`})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: `path must start with "/"`})
	}
	return errs
}
