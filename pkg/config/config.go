package config

import "time"

// Config is the root configuration structure for storagerpc.
type Config struct {
	// Policy configures where serialization policies are loaded from.
	Policy PolicyConfig `yaml:"policy"`

	// Serializer configures the serialization facade.
	Serializer SerializerConfig `yaml:"serializer"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PolicyConfig contains configuration for policy loading.
type PolicyConfig struct {
	// BaseDir is the resource root. Each module's policy lives at
	// <base_dir>/<module>/<file_name>.gwt.rpc.
	// Required when modules are configured.
	BaseDir string `yaml:"base_dir"`

	// FileName is the policy file name without extension.
	// Default: "StorageSerializerPolicy"
	FileName string `yaml:"file_name"`

	// MaxSize is the largest policy file accepted, in bytes.
	// Default: 10485760 (10MB)
	MaxSize int64 `yaml:"max_size"`

	// Modules lists the namespaces loaded at startup, in order.
	Modules []ModuleConfig `yaml:"modules"`

	// Watch configures hot reload of policy files.
	Watch WatchConfig `yaml:"watch"`

	// Refresh configures periodic reloading.
	Refresh RefreshConfig `yaml:"refresh"`
}

// ModuleConfig names one policy namespace.
type ModuleConfig struct {
	// Name is the namespace (the module's base directory name).
	Name string `yaml:"name"`

	// Default promotes this module's policy to the default slot.
	// At most one module may set it.
	Default bool `yaml:"default"`
}

// WatchConfig configures file watching.
type WatchConfig struct {
	// Enabled turns on fsnotify-based reloading.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce coalesces bursts of file events per namespace.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// RefreshConfig configures scheduled reloading.
type RefreshConfig struct {
	// Schedule is a standard 5-field cron expression. Empty disables refresh.
	Schedule string `yaml:"schedule"`
}

// SerializerConfig configures the serialization facade.
type SerializerConfig struct {
	// Fallback selects the policy used when a namespace has none.
	// Options: "legacy", "none"
	// Default: "legacy"
	Fallback string `yaml:"fallback"`

	// MaxDepth bounds value nesting in the codec.
	// Default: 64
	MaxDepth int `yaml:"max_depth"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "storagerpc"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "policy"
	Subsystem string `yaml:"subsystem"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// ListenAddress serves the metrics endpoint when set (e.g. ":9090").
	ListenAddress string `yaml:"listen_address"`
}

// DefaultModule returns the module marked as default, if any.
func (c *PolicyConfig) DefaultModule() (ModuleConfig, bool) {
	for _, m := range c.Modules {
		if m.Default {
			return m, true
		}
	}
	return ModuleConfig{}, false
}

// ModuleNames returns the configured namespaces in load order.
func (c *PolicyConfig) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		names = append(names, m.Name)
	}
	return names
}
