// Package telemetry groups the observability packages.
//
//   - logging: slog logger construction from configuration
//   - metrics: Prometheus collector for policy loads, the policy cache and
//     the serializer
package telemetry
