package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STORAGERPC_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention STORAGERPC_SECTION_FIELD (e.g., STORAGERPC_POLICY_BASE_DIR).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Malformed numeric, boolean or duration values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = val
		}
	}
	boolean := func(name, field string, dst *bool) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid boolean %q in %s%s", val, EnvPrefix, name)})
				return
			}
			*dst = b
		}
	}
	duration := func(name, field string, dst *time.Duration) {
		if val, ok := os.LookupEnv(EnvPrefix + name); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid duration %q in %s%s", val, EnvPrefix, name)})
				return
			}
			*dst = d
		}
	}

	// Policy overrides
	str("POLICY_BASE_DIR", &cfg.Policy.BaseDir)
	str("POLICY_FILE_NAME", &cfg.Policy.FileName)
	if val, ok := os.LookupEnv(EnvPrefix + "POLICY_MAX_SIZE"); ok {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: "policy.max_size", Message: fmt.Sprintf("invalid size %q in %sPOLICY_MAX_SIZE", val, EnvPrefix)})
		} else {
			cfg.Policy.MaxSize = n
		}
	}
	if val, ok := os.LookupEnv(EnvPrefix + "POLICY_MODULES"); ok {
		cfg.Policy.Modules = parseModuleList(val)
	}
	if val, ok := os.LookupEnv(EnvPrefix + "POLICY_DEFAULT_MODULE"); ok {
		setDefaultModule(&cfg.Policy, strings.TrimSpace(val))
	}
	boolean("POLICY_WATCH_ENABLED", "policy.watch.enabled", &cfg.Policy.Watch.Enabled)
	duration("POLICY_WATCH_DEBOUNCE", "policy.watch.debounce", &cfg.Policy.Watch.Debounce)
	str("POLICY_REFRESH_SCHEDULE", &cfg.Policy.Refresh.Schedule)

	// Serializer overrides
	str("SERIALIZER_FALLBACK", &cfg.Serializer.Fallback)

	// Telemetry overrides
	str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("TELEMETRY_LOGGING_ADD_SOURCE", "telemetry.logging.add_source", &cfg.Telemetry.Logging.AddSource)
	boolean("TELEMETRY_METRICS_ENABLED", "telemetry.metrics.enabled", &cfg.Telemetry.Metrics.Enabled)
	str("TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// parseModuleList parses "app1,app2" into module entries. Blank items are dropped.
func parseModuleList(val string) []ModuleConfig {
	var modules []ModuleConfig
	for _, name := range strings.Split(val, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		modules = append(modules, ModuleConfig{Name: name})
	}
	return modules
}

// setDefaultModule marks name as the only default module, appending it if absent.
func setDefaultModule(cfg *PolicyConfig, name string) {
	if name == "" {
		return
	}
	found := false
	for i := range cfg.Modules {
		cfg.Modules[i].Default = cfg.Modules[i].Name == name
		if cfg.Modules[i].Default {
			found = true
		}
	}
	if !found {
		cfg.Modules = append(cfg.Modules, ModuleConfig{Name: name, Default: true})
	}
}
