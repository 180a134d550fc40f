package main

import (
	"fmt"
	"io"
	"log/slog"

	"mercator-hq/storagerpc/pkg/cli"
	"mercator-hq/storagerpc/pkg/config"
	"mercator-hq/storagerpc/pkg/policy/manager"
	"mercator-hq/storagerpc/pkg/telemetry/logging"
	"mercator-hq/storagerpc/pkg/telemetry/metrics"
)

// stack is the set of components a policy-loading command runs on.
type stack struct {
	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	cache     *manager.PolicyCache
	manager   *manager.DefaultPolicyManager
}

// loadConfig reads --config with env overrides. Failures are ConfigErrors.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

// newLogger builds the process logger; --verbose forces debug level.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	lc := logging.FromConfig(cfg.Telemetry.Logging)
	lc.Writer = w
	if verbose {
		lc.Level = "debug"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

// newStack wires the cache, loader and metrics for cfg. Logs go to logOut.
func newStack(cfg *config.Config, logOut io.Writer) (*stack, error) {
	if len(cfg.Policy.Modules) == 0 {
		return nil, cli.NewConfigError("policy.modules", "no modules configured")
	}

	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	cache := manager.NewPolicyCache(manager.WithCacheMetrics(collector))

	mgr, err := manager.NewPolicyManager(&cfg.Policy, cache, logger, manager.WithMetrics(collector))
	if err != nil {
		return nil, cli.NewConfigError("policy", fmt.Sprintf("cannot create policy manager: %v", err))
	}

	return &stack{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		cache:     cache,
		manager:   mgr,
	}, nil
}
