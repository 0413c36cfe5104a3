// Package loader routes source file loads through an extension-keyed chain
// of handlers. The coverage interceptor installs itself as middleware over
// the host's handlers, so instrumented text executes in place of the
// original without either side losing its hook.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrUnknownExtension is returned when a load or registration names an
// extension nothing handles.
var ErrUnknownExtension = errors.New("no handler registered for extension")

// Source is one file being loaded. Middleware may rewrite Content before
// the underlying handler executes it.
type Source struct {
	Path    string
	Content []byte
}

// Handler executes a loaded source file.
type Handler func(src *Source) error

// Middleware wraps a handler, observing or rewriting loads before
// delegating. Wrapping composes: neither the outer nor the inner hook is
// lost.
type Middleware func(next Handler) Handler

// Registration is the capability handle returned when an extension is
// registered. Holders may layer middleware onto their extension or remove
// it again.
type Registration struct {
	loader *Loader
	ext    string
}

// Ext returns the registered extension.
func (r *Registration) Ext() string { return r.ext }

// Wrap layers middleware over this extension's handler chain.
func (r *Registration) Wrap(mw Middleware) error {
	return r.loader.Wrap(r.ext, mw)
}

// Loader dispatches file loads by extension.
type Loader struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New returns a loader with no handlers.
func New() *Loader {
	return &Loader{handlers: make(map[string]Handler)}
}

// Register installs base behavior for an extension and returns a capability
// handle for it. Extensions must start with a dot; registering the same
// extension twice fails fast instead of silently replacing the handler.
func (l *Loader) Register(ext string, h Handler) (*Registration, error) {
	if len(ext) < 2 || ext[0] != '.' {
		return nil, fmt.Errorf("invalid extension %q: must start with '.'", ext)
	}
	if h == nil {
		return nil, fmt.Errorf("nil handler for extension %q", ext)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.handlers[ext]; exists {
		return nil, fmt.Errorf("extension %q already registered", ext)
	}
	l.handlers[ext] = h
	return &Registration{loader: l, ext: ext}, nil
}

// Wrap layers middleware over the current handler for ext. The previous
// handler becomes the middleware's next, so existing hooks keep observing
// every load.
func (l *Loader) Wrap(ext string, mw Middleware) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next, exists := l.handlers[ext]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownExtension, ext)
	}
	l.handlers[ext] = mw(next)
	return nil
}

// Extensions returns the registered extensions, sorted.
func (l *Loader) Extensions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	exts := make([]string, 0, len(l.handlers))
	for ext := range l.handlers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Handles reports whether ext has a handler.
func (l *Loader) Handles(ext string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.handlers[ext]
	return ok
}

// Load reads path and dispatches it to the handler chain for its
// extension.
func (l *Loader) Load(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	l.mu.RLock()
	h, ok := l.handlers[filepath.Ext(abs)]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownExtension, filepath.Ext(abs))
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", abs, err)
	}
	return h(&Source{Path: abs, Content: content})
}
