// Package session wires the engine together behind one explicitly
// constructed lifecycle object. A process normally owns exactly one
// session, but nothing here is global: tests and embedders may run several
// independent sessions side by side.
package session

import (
	"fmt"

	"github.com/covmap/covmap/internal/cache"
	"github.com/covmap/covmap/internal/config"
	"github.com/covmap/covmap/internal/coverage"
	"github.com/covmap/covmap/internal/flush"
	"github.com/covmap/covmap/internal/instrument"
	"github.com/covmap/covmap/internal/loader"
	"github.com/covmap/covmap/internal/logger"
	"github.com/covmap/covmap/internal/policy"
)

// Session is one coverage measurement context: policy, cache, registry and
// flusher, sharing a resolved working root.
type Session struct {
	cfg      *config.Config
	root     string
	policy   *policy.Policy
	cache    *cache.Cache
	registry *coverage.Registry
	flusher  *flush.Flusher
	hooks    *flush.Hooks

	interceptor *loader.Interceptor
}

// Options configures session construction beyond the file-level Config.
type Options struct {
	// Instrumenter rewrites source; required.
	Instrumenter instrument.Instrumenter

	// Transform optionally converts non-native source before
	// instrumentation.
	Transform loader.Transform

	// NativeExt is the extension Transform is skipped for.
	NativeExt string

	// HandleSignals installs flush-on-signal handling. Off by default so
	// embedders control their own signal surface.
	HandleSignals bool
}

// New builds a session from cfg. The cache runs disabled in child mode:
// the coordinating parent owns the cache directory, children just
// instrument in memory and flush their own reports.
func New(cfg *config.Config, opts Options) (*Session, error) {
	if opts.Instrumenter == nil {
		return nil, fmt.Errorf("session requires an instrumenter")
	}

	root, err := cfg.ResolveCwd()
	if err != nil {
		return nil, err
	}

	p := policy.New(policy.Config{
		Root:          root,
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
		ReportInclude: cfg.ReportInclude,
		ReportExclude: cfg.ReportExclude,
		Extensions:    cfg.Extensions,
	})

	cacheEnabled := cfg.CacheEnabled && !cfg.Child
	c := cache.New(cfg.CacheDirIn(root), cacheEnabled, opts.Instrumenter, cfg.Instrument)

	reg := coverage.NewRegistry()
	fl := flush.NewFlusher(reg, cfg.ReportDirIn(root))

	s := &Session{
		cfg:      cfg,
		root:     root,
		policy:   p,
		cache:    c,
		registry: reg,
		flusher:  fl,
		hooks:    flush.NewHooks(),
	}

	s.hooks.Register(func() {
		if err := s.flusher.Flush(); err != nil {
			logger.Error("coverage flush failed: %v", err)
		}
	})
	if opts.HandleSignals {
		s.hooks.HandleSignals()
	}

	s.interceptor = loader.NewInterceptor(p, c, reg, opts.Transform, opts.NativeExt)
	return s, nil
}

// Install layers the coverage interceptor onto l.
func (s *Session) Install(l *loader.Loader) error {
	return s.interceptor.Install(l)
}

// Registry exposes the in-process coverage state.
func (s *Session) Registry() *coverage.Registry { return s.registry }

// Cache exposes the instrumentation cache, for report-time skeleton
// recovery (merge.AddAllFiles).
func (s *Session) Cache() *cache.Cache { return s.cache }

// Policy exposes the eligibility policy.
func (s *Session) Policy() *policy.Policy { return s.policy }

// Root returns the resolved working root.
func (s *Session) Root() string { return s.root }

// ReportDir returns the directory this session flushes into.
func (s *Session) ReportDir() string { return s.cfg.ReportDirIn(s.root) }

// Flush persists the current registry snapshot. Idempotent.
func (s *Session) Flush() error {
	return s.flusher.Flush()
}

// Reset clears all counters, starting a fresh measurement window.
func (s *Session) Reset() {
	s.registry.Reset()
}

// Close runs the shutdown hooks (flushing exactly once if nothing flushed
// before) and detaches signal handling.
func (s *Session) Close() {
	s.hooks.Run()
	s.hooks.StopSignals()
}
