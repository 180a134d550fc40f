package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/storagerpc/pkg/config"
	"mercator-hq/storagerpc/pkg/rpc/policy"
)

// DefaultPolicyManager is the default implementation of PolicyManager.
// It loads the configured modules into a PolicyCache and keeps them fresh
// through a file watcher and a refresh schedule.
type DefaultPolicyManager struct {
	config  *config.PolicyConfig
	cache   *PolicyCache
	loader  *PolicyLoader
	opener  ResourceOpener
	logger  *slog.Logger
	metrics Metrics

	loaderOpts []LoaderOption

	// State management
	mu            sync.RWMutex
	lastLoadTime  time.Time
	lastLoadError error

	// Background work
	bgMu      sync.Mutex
	watcher   *FileWatcher
	scheduler *RefreshScheduler
}

// ManagerOption configures a DefaultPolicyManager.
type ManagerOption func(*DefaultPolicyManager)

// WithOpener replaces the resource opener. By default resources are read
// from config.BaseDir.
func WithOpener(o ResourceOpener) ManagerOption {
	return func(m *DefaultPolicyManager) {
		if o != nil {
			m.opener = o
		}
	}
}

// WithMetrics reports loads to metrics.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *DefaultPolicyManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithLoaderOptions forwards options to the underlying PolicyLoader.
func WithLoaderOptions(opts ...LoaderOption) ManagerOption {
	return func(m *DefaultPolicyManager) {
		m.loaderOpts = append(m.loaderOpts, opts...)
	}
}

// NewPolicyManager creates a manager for cfg that registers into cache.
func NewPolicyManager(cfg *config.PolicyConfig, cache *PolicyCache, logger *slog.Logger, opts ...ManagerOption) (*DefaultPolicyManager, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cache == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &DefaultPolicyManager{
		config:  cfg,
		cache:   cache,
		logger:  logger.With("component", "policy.manager"),
		metrics: noopMetrics{},
	}
	if cfg.BaseDir != "" {
		m.opener = DirOpener(cfg.BaseDir)
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loader = NewPolicyLoader(cache, LoaderConfigFrom(cfg), logger,
		append([]LoaderOption{WithLoaderMetrics(m.metrics)}, m.loaderOpts...)...)
	if m.opener == nil {
		return nil, errors.New("no resource opener: set base_dir or supply an opener")
	}

	return m, nil
}

// LoadPolicies implements PolicyManager.
func (m *DefaultPolicyManager) LoadPolicies() {
	start := time.Now()
	m.loader.LoadModules(m.opener, m.config.Modules)
	m.recordLoad(nil)

	m.logger.Info("Policies loaded",
		"modules", len(m.config.Modules),
		"registered", m.cache.Count(),
		"version", m.cache.Version(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// LoadPoliciesStrict implements PolicyManager.
func (m *DefaultPolicyManager) LoadPoliciesStrict() error {
	err := m.loader.LoadModulesStrict(m.opener, m.config.Modules)
	m.recordLoad(err)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}
	return nil
}

// ReloadPolicies implements PolicyManager. A module that fails to reload
// keeps its previous policy.
func (m *DefaultPolicyManager) ReloadPolicies() error {
	var errs ErrorList
	for _, mod := range m.config.Modules {
		errs.Add(m.reloadModule(mod))
	}
	err := errs.ErrorOrNil()
	m.recordLoad(err)
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	m.logger.Info("Policies reloaded", "modules", len(m.config.Modules), "version", m.cache.Version())
	return nil
}

// ReloadNamespace reloads one namespace, keeping its default status.
func (m *DefaultPolicyManager) ReloadNamespace(namespace string) error {
	err := m.loader.Reload(m.opener, namespace)
	if err != nil {
		m.recordLoad(err)
	}
	return err
}

// reloadModule reloads a configured module. Modules never loaded before
// take their configured default flag.
func (m *DefaultPolicyManager) reloadModule(mod config.ModuleConfig) error {
	if !m.cache.Has(mod.Name) && mod.Default {
		if err := ValidateNamespace(mod.Name); err != nil {
			return err
		}
		return m.loader.loadResource(m.opener, mod.Name, true)
	}
	return m.loader.Reload(m.opener, mod.Name)
}

// GetPolicy implements PolicyManager.
func (m *DefaultPolicyManager) GetPolicy(namespace string) (policy.Policy, bool) {
	return m.cache.Get(namespace)
}

// GetPolicyVersion implements PolicyManager.
func (m *DefaultPolicyManager) GetPolicyVersion() string {
	return m.cache.Version()
}

// Watch implements PolicyManager. It requires a base directory, since only
// files on disk can be watched.
func (m *DefaultPolicyManager) Watch(ctx context.Context) error {
	if m.config.BaseDir == "" {
		return errors.New("watching requires policy.base_dir")
	}

	fw, err := NewFileWatcher(&FileWatcherConfig{
		BaseDir:          m.config.BaseDir,
		Namespaces:       m.config.ModuleNames(),
		FileName:         LoaderConfigFrom(m.config).FileName,
		DebounceInterval: m.config.Watch.Debounce,
	}, m.logger)
	if err != nil {
		return err
	}

	m.bgMu.Lock()
	if m.watcher != nil {
		m.bgMu.Unlock()
		_ = fw.Stop()
		return errors.New("already watching")
	}
	m.watcher = fw
	m.bgMu.Unlock()

	defer func() {
		m.bgMu.Lock()
		if m.watcher == fw {
			m.watcher = nil
		}
		m.bgMu.Unlock()
		_ = fw.Stop()
	}()

	return fw.Watch(ctx, m.ReloadNamespace)
}

// StartRefresh starts the configured refresh schedule. It is a no-op when
// no schedule is configured.
func (m *DefaultPolicyManager) StartRefresh(ctx context.Context) error {
	m.bgMu.Lock()
	defer m.bgMu.Unlock()

	if m.scheduler != nil {
		return errors.New("refresh already started")
	}
	s := NewRefreshScheduler(m.config.Refresh.Schedule, func(context.Context) error {
		return m.ReloadPolicies()
	}, m.logger)
	if err := s.Start(ctx); err != nil {
		return err
	}
	m.scheduler = s
	return nil
}

// Close implements PolicyManager.
func (m *DefaultPolicyManager) Close() error {
	m.bgMu.Lock()
	fw, s := m.watcher, m.scheduler
	m.watcher, m.scheduler = nil, nil
	m.bgMu.Unlock()

	if s != nil {
		s.Stop()
	}
	if fw != nil {
		if err := fw.Stop(); err != nil {
			return fmt.Errorf("failed to stop file watcher: %w", err)
		}
	}
	return nil
}

// Cache returns the policy cache.
func (m *DefaultPolicyManager) Cache() *PolicyCache {
	return m.cache
}

// Loader returns the policy loader.
func (m *DefaultPolicyManager) Loader() *PolicyLoader {
	return m.loader
}

// GetLastLoadTime returns the time of the last load or reload.
func (m *DefaultPolicyManager) GetLastLoadTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoadTime
}

// GetLastLoadError returns the error of the last strict load or reload.
func (m *DefaultPolicyManager) GetLastLoadError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoadError
}

func (m *DefaultPolicyManager) recordLoad(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLoadTime = time.Now()
	m.lastLoadError = err
}

var _ PolicyManager = (*DefaultPolicyManager)(nil)
