package loader

import (
	"fmt"
	"path/filepath"

	"github.com/covmap/covmap/internal/cache"
	"github.com/covmap/covmap/internal/coverage"
	"github.com/covmap/covmap/internal/logger"
	"github.com/covmap/covmap/internal/policy"
)

// Transform converts source that is not yet in a directly-instrumentable
// form (a transpile step, typically). It runs before instrumentation.
type Transform func(content []byte, filename string) ([]byte, error)

// Interceptor rewrites eligible loads to their instrumented form and seeds
// the registry with each file's skeleton before execution.
type Interceptor struct {
	policy    *policy.Policy
	cache     *cache.Cache
	registry  *coverage.Registry
	transform Transform
	nativeExt string
}

// NewInterceptor builds an interceptor. transform may be nil when every
// eligible extension is already directly instrumentable. nativeExt is the
// extension whose content skips the transform (default policy extension
// when empty).
func NewInterceptor(p *policy.Policy, c *cache.Cache, reg *coverage.Registry, transform Transform, nativeExt string) *Interceptor {
	if nativeExt == "" {
		nativeExt = policy.DefaultExtension
	}
	return &Interceptor{
		policy:    p,
		cache:     c,
		registry:  reg,
		transform: transform,
		nativeExt: nativeExt,
	}
}

// Install wraps every policy-eligible extension on l. Extensions the host
// never registered are an error: coverage over files nothing can execute
// would silently count nothing.
func (ic *Interceptor) Install(l *Loader) error {
	for _, ext := range ic.policy.Extensions() {
		if !l.Handles(ext) {
			return fmt.Errorf("cannot instrument %q loads: %w: %q", ext, ErrUnknownExtension, ext)
		}
		if err := l.Wrap(ext, ic.Middleware); err != nil {
			return err
		}
	}
	return nil
}

// Middleware is the interceptor as loader middleware. Excluded files pass
// through untouched. Eligible files are transformed if needed, swapped for
// their instrumented text, and registered so every loaded file shows up in
// reports even when none of its statements ever run.
func (ic *Interceptor) Middleware(next Handler) Handler {
	return func(src *Source) error {
		if !ic.policy.ShouldInstrument(src.Path) {
			return next(src)
		}

		content := src.Content
		if ic.transform != nil && filepath.Ext(src.Path) != ic.nativeExt {
			transformed, err := ic.transform(content, src.Path)
			if err != nil {
				return fmt.Errorf("pre-transform failed for %s: %w", src.Path, err)
			}
			content = transformed
		}

		res, err := ic.cache.GetOrInstrument(src.Path, content)
		if err != nil {
			return err
		}
		if _, err := ic.registry.Register(src.Path, res.Skeleton); err != nil {
			return err
		}

		logger.Debug("loader: instrumented %s", src.Path)
		src.Content = []byte(res.Text)
		return next(src)
	}
}
