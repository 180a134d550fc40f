package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storagerpc.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
policy:
  base_dir: ./war
  modules:
    - name: app1
      default: true
    - name: app2
  watch:
    enabled: true
    debounce: 250ms
  refresh:
    schedule: "*/5 * * * *"

serializer:
  fallback: none

telemetry:
  logging:
    level: debug
    format: text
  metrics:
    enabled: true
    listen_address: ":9090"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Policy.BaseDir != "./war" {
		t.Errorf("expected base dir %q, got %q", "./war", cfg.Policy.BaseDir)
	}
	if len(cfg.Policy.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(cfg.Policy.Modules))
	}
	def, ok := cfg.Policy.DefaultModule()
	if !ok || def.Name != "app1" {
		t.Errorf("expected default module app1, got %+v (ok=%v)", def, ok)
	}
	if got := cfg.Policy.ModuleNames(); strings.Join(got, ",") != "app1,app2" {
		t.Errorf("expected module order app1,app2, got %v", got)
	}
	if !cfg.Policy.Watch.Enabled || cfg.Policy.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("unexpected watch config %+v", cfg.Policy.Watch)
	}
	if cfg.Serializer.Fallback != FallbackNone {
		t.Errorf("expected fallback %q, got %q", FallbackNone, cfg.Serializer.Fallback)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("unexpected logging config %+v", cfg.Telemetry.Logging)
	}

	// Defaults fill the rest
	if cfg.Policy.FileName != DefaultPolicyFileName {
		t.Errorf("expected default file name %q, got %q", DefaultPolicyFileName, cfg.Policy.FileName)
	}
	if cfg.Policy.MaxSize != DefaultPolicyMaxSize {
		t.Errorf("expected default max size %d, got %d", DefaultPolicyMaxSize, cfg.Policy.MaxSize)
	}
	if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("expected default metrics path %q, got %q", DefaultMetricsPath, cfg.Telemetry.Metrics.Path)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "policy: [unclosed")

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
policy:
  modules:
    - name: app1
`)

	_, err := LoadConfig(path)

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if verr.Errors[0].Field != "policy.base_dir" {
		t.Errorf("expected policy.base_dir error, got %v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
policy:
  base_dir: ./war
  modules:
    - name: app1
      default: true
`)

	t.Setenv("STORAGERPC_POLICY_BASE_DIR", "/srv/war")
	t.Setenv("STORAGERPC_POLICY_MODULES", "app1, app2 ,,app3")
	t.Setenv("STORAGERPC_POLICY_DEFAULT_MODULE", "app2")
	t.Setenv("STORAGERPC_POLICY_WATCH_ENABLED", "true")
	t.Setenv("STORAGERPC_POLICY_WATCH_DEBOUNCE", "1s")
	t.Setenv("STORAGERPC_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Policy.BaseDir != "/srv/war" {
		t.Errorf("expected base dir override, got %q", cfg.Policy.BaseDir)
	}
	if got := cfg.Policy.ModuleNames(); strings.Join(got, ",") != "app1,app2,app3" {
		t.Errorf("expected modules app1,app2,app3, got %v", got)
	}
	def, ok := cfg.Policy.DefaultModule()
	if !ok || def.Name != "app2" {
		t.Errorf("expected default module app2, got %+v", def)
	}
	if !cfg.Policy.Watch.Enabled || cfg.Policy.Watch.Debounce != time.Second {
		t.Errorf("unexpected watch config %+v", cfg.Policy.Watch)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected level override, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("STORAGERPC_POLICY_BASE_DIR", "/srv/war")
	t.Setenv("STORAGERPC_POLICY_DEFAULT_MODULE", "app1")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	def, ok := cfg.Policy.DefaultModule()
	if !ok || def.Name != "app1" {
		t.Errorf("expected default module to be appended, got %+v", cfg.Policy.Modules)
	}
	if cfg.Serializer.Fallback != FallbackLegacy {
		t.Errorf("expected default fallback, got %q", cfg.Serializer.Fallback)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValue(t *testing.T) {
	tests := []struct {
		env   string
		value string
		field string
	}{
		{"STORAGERPC_POLICY_WATCH_ENABLED", "maybe", "policy.watch.enabled"},
		{"STORAGERPC_POLICY_WATCH_DEBOUNCE", "soon", "policy.watch.debounce"},
		{"STORAGERPC_POLICY_MAX_SIZE", "big", "policy.max_size"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			_, err := LoadConfigWithEnvOverrides("")

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Errors[0].Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Errors[0].Field)
			}
		})
	}
}
