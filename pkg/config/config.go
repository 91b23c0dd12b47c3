package config

import "time"

// Config is the root configuration of the warden agent.
type Config struct {
	// Agent identifies this agent instance.
	Agent AgentConfig `yaml:"agent"`

	// Kernel controls the connection to the minifilter communication port.
	Kernel KernelConfig `yaml:"kernel"`

	// Index controls how the filesystem tree is scanned and how drive letters
	// map onto device paths.
	Index IndexConfig `yaml:"index"`

	// Store selects where active policies are persisted.
	Store StoreConfig `yaml:"store"`

	// Journal configures the on-disk event journal.
	Journal JournalConfig `yaml:"journal"`

	// API configures the local administration HTTP server.
	API APIConfig `yaml:"api"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AgentConfig identifies the agent.
type AgentConfig struct {
	// Name tags emitted events and is the default tracing service name.
	// Default: "warden"
	Name string `yaml:"name"`
}

// KernelConfig controls the driver port.
type KernelConfig struct {
	// Enabled controls whether the agent connects to the driver at all. When
	// false every policy is simulated.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// PortName is the communication port the driver registers.
	// Default: "\DlpPort"
	PortName string `yaml:"port_name"`

	// ReconnectSchedule is a cron expression for retrying the port while it
	// is absent. Empty disables retries.
	// Default: "@every 1m"
	ReconnectSchedule string `yaml:"reconnect_schedule"`
}

// IndexConfig controls filesystem scanning.
type IndexConfig struct {
	// SkipHidden drops hidden entries when expanding a folder.
	SkipHidden bool `yaml:"skip_hidden"`

	// SkipSystem drops system entries when expanding a folder.
	SkipSystem bool `yaml:"skip_system"`

	// FollowSymlinks reports link targets instead of the links themselves.
	FollowSymlinks bool `yaml:"follow_symlinks"`

	// Volumes replaces OS volume enumeration with a fixed table, keyed by
	// drive letter. Required on hosts without a Windows volume manager.
	Volumes map[string]VolumeConfig `yaml:"volumes"`

	// FallbackDevices maps drive letters to device paths and is consulted
	// when the OS volume lookup fails.
	FallbackDevices map[string]string `yaml:"fallback_devices"`
}

// VolumeConfig is one statically configured drive.
type VolumeConfig struct {
	// Root is the directory enumerated for the drive.
	Root string `yaml:"root"`

	// VolumeName is the volume GUID path. Optional.
	VolumeName string `yaml:"volume_name"`

	// DevicePath is the NT device the drive maps to, e.g.
	// "\Device\HarddiskVolume3".
	DevicePath string `yaml:"device_path"`

	// Label replaces "Local Disk" in the drive name.
	Label string `yaml:"label"`
}

// StoreConfig selects the policy store backend.
type StoreConfig struct {
	// Backend is "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures the sqlite policy store.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/policies.db"
	Path string `yaml:"path"`

	// MaxOpenConns limits open connections.
	// Default: 1
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long sqlite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// DisableWAL turns off write-ahead logging.
	// Default: false
	DisableWAL bool `yaml:"disable_wal"`
}

// JournalConfig configures the event journal.
type JournalConfig struct {
	// Enabled controls whether events are written to disk.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the journal database file.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// RetentionDays is how long events are kept. Zero keeps them forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// BufferSize is the journal's subscription buffer on the event bus.
	// Default: 256
	BufferSize int `yaml:"buffer_size"`
}

// APIConfig configures the administration server.
type APIConfig struct {
	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:7443"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. Event streams are exempt.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive idle time.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// EventStream exposes the websocket event stream.
	// Default: true
	EventStream bool `yaml:"event_stream"`

	// Auth requires an API key on every /v1 request.
	Auth AuthConfig `yaml:"auth"`

	// TLS serves the API over HTTPS.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig configures API-key authentication.
type AuthConfig struct {
	// Enabled rejects /v1 requests without a valid key. Health, metrics and
	// version endpoints stay open.
	Enabled bool `yaml:"enabled"`

	// Keys maps API keys to administrators. A key may be a
	// ${secret:name} reference.
	Keys []APIKeyConfig `yaml:"keys"`

	// SecretsDir is searched for ${secret:name} files after the
	// WARDEN_SECRET_ environment variables.
	SecretsDir string `yaml:"secrets_dir"`
}

// APIKeyConfig is one administrator key.
type APIKeyConfig struct {
	// Admin is recorded as the author of policies applied with the key.
	Admin string `yaml:"admin"`

	// Key is the secret value or a ${secret:name} reference.
	Key string `yaml:"key"`

	// Disabled keeps the key configured but rejects it.
	Disabled bool `yaml:"disabled"`
}

// TLSConfig configures HTTPS for the API.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM files, re-read when they change.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile requires client certificates issued by these CAs.
	ClientCAFile string `yaml:"client_ca_file"`

	// ReloadInterval is how often the certificate files are checked.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	// It can be changed without a restart.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactDevicePaths replaces NT device paths in log attributes.
	// Default: true
	RedactDevicePaths bool `yaml:"redact_device_paths"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom log redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem.
	// Default: "warden"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// SampleRatio is the fraction of traces sampled, 0.0 to 1.0.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName overrides agent.name in traces.
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the liveness endpoint path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness endpoint path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each component check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
