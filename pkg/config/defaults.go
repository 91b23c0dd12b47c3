package config

import "time"

// Default values for configuration fields.
const (
	// Agent defaults
	DefaultAgentName = "warden"

	// Kernel defaults
	DefaultKernelEnabled     = true
	DefaultKernelPortName    = `\DlpPort`
	DefaultReconnectSchedule = "@every 1m"

	// Store defaults
	DefaultStoreBackend       = "sqlite"
	DefaultStoreSQLitePath    = "data/policies.db"
	DefaultStoreMaxOpenConns  = 1
	DefaultStoreBusyTimeout   = 5 * time.Second
	DefaultJournalEnabled     = true
	DefaultJournalPath        = "data/journal.db"
	DefaultJournalRetention   = 30
	DefaultJournalSchedule    = "0 3 * * *"
	DefaultJournalBufferSize  = 256
	DefaultListenAddress      = "127.0.0.1:7443"
	DefaultReadTimeout        = 30 * time.Second
	DefaultWriteTimeout       = 30 * time.Second
	DefaultIdleTimeout        = 120 * time.Second
	DefaultShutdownTimeout    = 30 * time.Second
	DefaultMaxHeaderBytes     = 1048576 // 1MB
	DefaultEventStreamEnabled = true
	DefaultTLSMinVersion      = "1.3"
	DefaultTLSReloadInterval  = 5 * time.Minute

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultRedactDevicePaths  = true
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "mercator"
	DefaultMetricsSubsystem   = "warden"
	DefaultTracingEnabled     = false
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingInsecure    = true
	DefaultTracingTimeout     = 10 * time.Second
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultCheckTimeout       = 5 * time.Second
)

// Defaults returns a configuration with every field at its default. Loading
// decodes the file over this value, so booleans that default to true stay
// true unless the file sets them.
func Defaults() *Config {
	cfg := &Config{
		Kernel: KernelConfig{
			Enabled:           DefaultKernelEnabled,
			ReconnectSchedule: DefaultReconnectSchedule,
		},
		Journal: JournalConfig{
			Enabled:       DefaultJournalEnabled,
			RetentionDays: DefaultJournalRetention,
			PruneSchedule: DefaultJournalSchedule,
		},
		API: APIConfig{
			EventStream: DefaultEventStreamEnabled,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				RedactDevicePaths: DefaultRedactDevicePaths,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
			},
			Tracing: TracingConfig{
				Enabled:     DefaultTracingEnabled,
				SampleRatio: DefaultTracingSampleRatio,
				Insecure:    DefaultTracingInsecure,
			},
		},
	}
	applyFieldDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults, then derives
// fields that follow others: an unset tracing service name takes agent.name.
// Loaders call it after the file and environment are applied. It is
// idempotent.
func ApplyDefaults(cfg *Config) {
	applyFieldDefaults(cfg)
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = cfg.Agent.Name
	}
}

func applyFieldDefaults(cfg *Config) {
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = DefaultAgentName
	}

	if cfg.Kernel.PortName == "" {
		cfg.Kernel.PortName = DefaultKernelPortName
	}

	// Store defaults
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = DefaultStoreSQLitePath
	}
	if cfg.Store.SQLite.MaxOpenConns == 0 {
		cfg.Store.SQLite.MaxOpenConns = DefaultStoreMaxOpenConns
	}
	if cfg.Store.SQLite.BusyTimeout == 0 {
		cfg.Store.SQLite.BusyTimeout = DefaultStoreBusyTimeout
	}

	// Journal defaults
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if cfg.Journal.BufferSize == 0 {
		cfg.Journal.BufferSize = DefaultJournalBufferSize
	}

	// API defaults
	if cfg.API.ListenAddress == "" {
		cfg.API.ListenAddress = DefaultListenAddress
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = DefaultReadTimeout
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.API.IdleTimeout == 0 {
		cfg.API.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.API.ShutdownTimeout == 0 {
		cfg.API.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.API.MaxHeaderBytes == 0 {
		cfg.API.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.API.TLS.MinVersion == "" {
		cfg.API.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.API.TLS.ReloadInterval == 0 {
		cfg.API.TLS.ReloadInterval = DefaultTLSReloadInterval
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultCheckTimeout
	}
}
