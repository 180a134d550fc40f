package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ReservedNamespace is the cache key of the default policy slot. Modules may
// not use it as a name.
const ReservedNamespace = "DEFAULT_POLICY_MODULE"

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "policy.base_dir").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
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

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateSerializer(&cfg.Serializer)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validatePolicy validates policy configuration.
func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	if len(cfg.Modules) > 0 && cfg.BaseDir == "" {
		errs = append(errs, FieldError{
			Field:   "policy.base_dir",
			Message: "base directory is required when modules are configured",
		})
	}

	if cfg.FileName == "" {
		errs = append(errs, FieldError{
			Field:   "policy.file_name",
			Message: "file name is required",
		})
	} else if strings.ContainsAny(cfg.FileName, `/\`) {
		errs = append(errs, FieldError{
			Field:   "policy.file_name",
			Message: fmt.Sprintf("file name %q must not contain path separators", cfg.FileName),
		})
	}

	if cfg.MaxSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.max_size",
			Message: "max size must be positive",
		})
	}

	seen := make(map[string]bool, len(cfg.Modules))
	defaults := 0
	for i, m := range cfg.Modules {
		field := fmt.Sprintf("policy.modules[%d].name", i)
		name := strings.TrimSpace(m.Name)
		switch {
		case name == "":
			errs = append(errs, FieldError{Field: field, Message: "module name is required"})
		case name != m.Name:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("module name %q has surrounding whitespace", m.Name)})
		case name == ReservedNamespace:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("module name %q is reserved", name)})
		case strings.ContainsAny(name, `/\`) || name == "." || name == "..":
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("module name %q must be a single path element", name)})
		case seen[name]:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("duplicate module %q", name)})
		}
		seen[name] = true
		if m.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, FieldError{
			Field:   "policy.modules",
			Message: fmt.Sprintf("at most one module may be the default, got %d", defaults),
		})
	}

	if cfg.Watch.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "policy.watch.debounce",
			Message: "debounce must not be negative",
		})
	}

	if cfg.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Refresh.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "policy.refresh.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Refresh.Schedule, err),
			})
		}
	}

	return errs
}

// validateSerializer validates serializer configuration.
func validateSerializer(cfg *SerializerConfig) []FieldError {
	var errs []FieldError

	if cfg.Fallback != FallbackLegacy && cfg.Fallback != FallbackNone {
		errs = append(errs, FieldError{
			Field:   "serializer.fallback",
			Message: fmt.Sprintf("invalid fallback %q: must be 'legacy' or 'none'", cfg.Fallback),
		})
	}

	if cfg.MaxDepth <= 0 {
		errs = append(errs, FieldError{
			Field:   "serializer.max_depth",
			Message: "max depth must be positive",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: fmt.Sprintf("metrics path %q must start with '/'", cfg.Metrics.Path),
		})
	}

	return errs
}
