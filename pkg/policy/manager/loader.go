package manager

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/storagerpc/pkg/config"
	"mercator-hq/storagerpc/pkg/rpc/policy"
)

const (
	// PolicyFileName is the default policy file name without extension.
	PolicyFileName = "StorageSerializerPolicy"

	// PolicyFileExtension is appended to the policy file name.
	PolicyFileExtension = ".gwt.rpc"

	// DefaultMaxPolicySize bounds the bytes read from one policy resource.
	DefaultMaxPolicySize = int64(10 * 1024 * 1024)

	streamSource = "<stream>"
)

// ResourcePath returns the resource path of a namespace's policy:
// "/<namespace>/<fileName>.gwt.rpc". An empty fileName means PolicyFileName.
func ResourcePath(namespace, fileName string) string {
	if fileName == "" {
		fileName = PolicyFileName
	}
	return "/" + namespace + "/" + fileName + PolicyFileExtension
}

// ValidateNamespace reports whether namespace can name a module resource.
func ValidateNamespace(namespace string) error {
	ns := strings.TrimSpace(namespace)
	switch {
	case ns == "":
		return fmt.Errorf("%w: namespace is blank", ErrInvalidNamespace)
	case ns == DefaultNamespace:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidNamespace, ns)
	case strings.ContainsAny(ns, `/\`) || ns == "." || ns == "..":
		return fmt.Errorf("%w: %q must be a single path element", ErrInvalidNamespace, ns)
	}
	return nil
}

// ParseFunc builds a policy from raw resource bytes.
type ParseFunc func(data []byte) (policy.Policy, error)

// ParsePolicyFile is the default ParseFunc for .gwt.rpc files.
func ParsePolicyFile(data []byte) (policy.Policy, error) {
	p, err := policy.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PolicyLoaderConfig contains configuration for the policy loader.
type PolicyLoaderConfig struct {
	// FileName is the policy file name without extension
	FileName string

	// MaxPolicySize is the largest accepted policy in bytes
	MaxPolicySize int64
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *PolicyLoaderConfig {
	return &PolicyLoaderConfig{
		FileName:      PolicyFileName,
		MaxPolicySize: DefaultMaxPolicySize,
	}
}

// LoaderConfigFrom derives a loader configuration from the policy section.
func LoaderConfigFrom(cfg *config.PolicyConfig) *PolicyLoaderConfig {
	lc := DefaultLoaderConfig()
	if cfg == nil {
		return lc
	}
	if cfg.FileName != "" {
		lc.FileName = cfg.FileName
	}
	if cfg.MaxSize > 0 {
		lc.MaxPolicySize = cfg.MaxSize
	}
	return lc
}

// PolicyLoader reads policy resources, parses them and registers the
// result in a PolicyCache. Reading and parsing always happen before the
// cache is touched, so a failed load leaves the cache unchanged.
type PolicyLoader struct {
	cache   *PolicyCache
	config  *PolicyLoaderConfig
	parse   ParseFunc
	logger  *slog.Logger
	metrics Metrics
}

// LoaderOption configures a PolicyLoader.
type LoaderOption func(*PolicyLoader)

// WithParser replaces the policy file parser.
func WithParser(parse ParseFunc) LoaderOption {
	return func(l *PolicyLoader) {
		if parse != nil {
			l.parse = parse
		}
	}
}

// WithLoaderMetrics reports load outcomes to m.
func WithLoaderMetrics(m Metrics) LoaderOption {
	return func(l *PolicyLoader) {
		if m != nil {
			l.metrics = m
		}
	}
}

// NewPolicyLoader creates a loader that registers into cache.
func NewPolicyLoader(cache *PolicyCache, config *PolicyLoaderConfig, logger *slog.Logger, opts ...LoaderOption) *PolicyLoader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if config.MaxPolicySize <= 0 {
		config.MaxPolicySize = DefaultMaxPolicySize
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &PolicyLoader{
		cache:   cache,
		config:  config,
		parse:   ParsePolicyFile,
		logger:  logger.With("component", "policy.loader"),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache returns the cache the loader registers into.
func (l *PolicyLoader) Cache() *PolicyCache {
	return l.cache
}

// ResourcePath returns the resource path for namespace under this loader's
// file name.
func (l *PolicyLoader) ResourcePath(namespace string) string {
	return ResourcePath(strings.TrimSpace(namespace), l.config.FileName)
}

// LoadFromResource loads the policy of namespace through opener. Nothing is
// returned: a missing resource, unreadable content or a malformed policy is
// logged and the cache is left as it was.
//
// With markDefault set, a namespace that is already the default is not
// reloaded.
func (l *PolicyLoader) LoadFromResource(opener ResourceOpener, namespace string, markDefault bool) {
	ns := strings.TrimSpace(namespace)
	if err := ValidateNamespace(ns); err != nil {
		l.logger.Error("Refusing to load policy", "namespace", namespace, "error", err)
		return
	}

	if markDefault && l.cache.IsDefault(ns) {
		l.logger.Debug("Policy already loaded as default", "namespace", ns)
		l.metrics.RecordPolicyLoad(ns, LoadResultSkipped, 0)
		return
	}

	err := l.loadResource(opener, ns, markDefault)

	var (
		missing  *ResourceMissingError
		parseErr *ParseError
		loadErr  *LoadError
	)
	switch {
	case err == nil:
	case errors.As(err, &missing):
		l.logger.Error("Policy resource missing, did you forget to include it in this deployment?",
			"namespace", ns,
			"path", missing.Path,
		)
	case errors.As(err, &parseErr):
		l.logger.Error("Failed to parse policy",
			"namespace", ns,
			"path", parseErr.FilePath,
			"line", parseErr.Line,
			"error", err,
		)
	case errors.As(err, &loadErr):
		l.logger.Error("Could not read policy",
			"namespace", ns,
			"path", loadErr.FilePath,
			"error", err,
		)
	default:
		l.logger.Error("Policy load failed", "namespace", ns, "error", err)
	}
}

// LoadFromStream parses a policy from r and registers it under namespace.
// It returns *ParseError for malformed content and *LoadError when r fails
// or exceeds the size limit; in both cases the cache is untouched. The
// caller owns r.
func (l *PolicyLoader) LoadFromStream(r io.Reader, namespace string, markDefault bool) error {
	ns := strings.TrimSpace(namespace)
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	return l.loadStream(r, ns, markDefault, streamSource)
}

// Load loads each namespace through opener without marking a default.
func (l *PolicyLoader) Load(opener ResourceOpener, namespaces ...string) {
	for _, ns := range namespaces {
		l.LoadFromResource(opener, ns, false)
	}
}

// LoadModules loads configured modules in order, honouring each module's
// default flag.
func (l *PolicyLoader) LoadModules(opener ResourceOpener, modules []config.ModuleConfig) {
	for _, m := range modules {
		l.LoadFromResource(opener, m.Name, m.Default)
	}
}

// LoadModulesStrict loads configured modules in order and returns every
// failure. Modules that load successfully stay registered.
func (l *PolicyLoader) LoadModulesStrict(opener ResourceOpener, modules []config.ModuleConfig) error {
	var errs ErrorList
	for _, m := range modules {
		ns := strings.TrimSpace(m.Name)
		if err := ValidateNamespace(ns); err != nil {
			errs.Add(err)
			continue
		}
		if m.Default && l.cache.IsDefault(ns) {
			l.metrics.RecordPolicyLoad(ns, LoadResultSkipped, 0)
			continue
		}
		errs.Add(l.loadResource(opener, ns, m.Default))
	}
	return errs.ErrorOrNil()
}

// Reload loads namespace again regardless of its current state. A namespace
// that was the default before the reload remains the default.
func (l *PolicyLoader) Reload(opener ResourceOpener, namespace string) error {
	ns := strings.TrimSpace(namespace)
	if err := ValidateNamespace(ns); err != nil {
		return err
	}
	return l.loadResource(opener, ns, l.cache.IsDefault(ns))
}

func (l *PolicyLoader) loadResource(opener ResourceOpener, ns string, markDefault bool) error {
	start := time.Now()
	path := ResourcePath(ns, l.config.FileName)

	rc, err := opener.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.metrics.RecordPolicyLoad(ns, LoadResultMissing, time.Since(start))
			return &ResourceMissingError{Namespace: ns, Path: path, Cause: err}
		}
		l.metrics.RecordPolicyLoad(ns, LoadResultIOError, time.Since(start))
		return &LoadError{FilePath: path, Message: "failed to open resource", Cause: err}
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			l.logger.Warn("Failed to close policy resource", "path", path, "error", cerr)
		}
	}()

	return l.loadStream(rc, ns, markDefault, path)
}

func (l *PolicyLoader) loadStream(r io.Reader, ns string, markDefault bool, source string) error {
	start := time.Now()
	loadID := uuid.NewString()

	data, err := io.ReadAll(io.LimitReader(r, l.config.MaxPolicySize+1))
	if err != nil {
		l.metrics.RecordPolicyLoad(ns, LoadResultIOError, time.Since(start))
		return &LoadError{FilePath: source, Message: "failed to read policy", Cause: err}
	}
	if int64(len(data)) > l.config.MaxPolicySize {
		l.metrics.RecordPolicyLoad(ns, LoadResultIOError, time.Since(start))
		return &LoadError{
			FilePath: source,
			Message:  fmt.Sprintf("policy exceeds maximum size of %d bytes", l.config.MaxPolicySize),
		}
	}

	p, err := l.parse(data)
	if err != nil {
		var pe *policy.ParseError
		if errors.As(err, &pe) {
			l.metrics.RecordPolicyLoad(ns, LoadResultParseError, time.Since(start))
			return &ParseError{FilePath: source, Line: pe.Line, Message: pe.Message, Cause: err}
		}
		l.metrics.RecordPolicyLoad(ns, LoadResultIOError, time.Since(start))
		return &LoadError{FilePath: source, Message: "failed to read policy", Cause: err}
	}
	if p == nil {
		l.metrics.RecordPolicyLoad(ns, LoadResultParseError, time.Since(start))
		return &ParseError{FilePath: source, Message: "parser returned no policy"}
	}

	becameDefault := l.cache.Put(ns, p, markDefault)
	duration := time.Since(start)
	l.metrics.RecordPolicyLoad(ns, LoadResultSuccess, duration)

	l.logger.Info("Policy loaded",
		"load_id", loadID,
		"namespace", ns,
		"source", source,
		"bytes", len(data),
		"default", becameDefault,
		"duration_ms", duration.Milliseconds(),
	)

	return nil
}
