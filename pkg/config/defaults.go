package config

import "time"

// Default values for configuration fields.
const (
	// Policy defaults
	DefaultPolicyFileName  = "StorageSerializerPolicy"
	DefaultPolicyMaxSize   = int64(10 * 1024 * 1024)
	DefaultWatchDebounce   = 100 * time.Millisecond
	DefaultRefreshSchedule = ""

	// Serializer defaults
	DefaultSerializerFallback = FallbackLegacy
	DefaultSerializerMaxDepth = 64

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsNamespace = "storagerpc"
	DefaultMetricsSubsystem = "policy"
	DefaultMetricsPath      = "/metrics"
)

// Serializer fallback modes.
const (
	FallbackLegacy = "legacy"
	FallbackNone   = "none"
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Policy defaults
	if cfg.Policy.FileName == "" {
		cfg.Policy.FileName = DefaultPolicyFileName
	}
	if cfg.Policy.MaxSize == 0 {
		cfg.Policy.MaxSize = DefaultPolicyMaxSize
	}
	if cfg.Policy.Watch.Debounce == 0 {
		cfg.Policy.Watch.Debounce = DefaultWatchDebounce
	}

	// Serializer defaults
	if cfg.Serializer.Fallback == "" {
		cfg.Serializer.Fallback = DefaultSerializerFallback
	}
	if cfg.Serializer.MaxDepth == 0 {
		cfg.Serializer.MaxDepth = DefaultSerializerMaxDepth
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// NewDefault returns a Config with all defaults applied and no modules.
func NewDefault() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
