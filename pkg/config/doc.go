// Package config provides configuration management for storagerpc.
//
// Configuration is read from a YAML file, completed with defaults,
// overridden from the environment and validated before use.
//
// # Configuration Loading
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("storagerpc.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("storagerpc.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention STORAGERPC_SECTION_FIELD:
//
//   - STORAGERPC_POLICY_BASE_DIR overrides policy.base_dir
//   - STORAGERPC_POLICY_MODULES replaces policy.modules with a comma separated list
//   - STORAGERPC_POLICY_DEFAULT_MODULE marks one module as the default
//   - STORAGERPC_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Example Configuration
//
//	policy:
//	  base_dir: ./war
//	  modules:
//	    - name: app1
//	      default: true
//	    - name: app2
//	  watch:
//	    enabled: true
//	    debounce: 250ms
//	  refresh:
//	    schedule: "*/15 * * * *"
//
//	serializer:
//	  fallback: legacy
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  metrics:
//	    enabled: true
//	    listen_address: ":9090"
package config
