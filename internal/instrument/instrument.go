// Package instrument defines the contract between the engine and the
// external instrumenter that rewrites source text.
package instrument

import (
	"encoding/json"
	"fmt"

	"github.com/covmap/covmap/internal/coverage"
)

// Options is the subset of configuration that changes instrumented output.
// It participates in cache keys, so only settings the instrumenter actually
// honors belong here.
type Options struct {
	Branches  bool `json:"branches" mapstructure:"branches"`
	Functions bool `json:"functions" mapstructure:"functions"`
}

// Fingerprint returns a canonical byte form of the options for hashing.
func (o Options) Fingerprint() []byte {
	b, err := json.Marshal(o)
	if err != nil {
		// Options is a fixed struct of booleans; Marshal cannot fail.
		panic(err)
	}
	return b
}

// Result is what an instrumenter produces for one file: the rewritten
// source plus the skeleton describing its countable ids.
type Result struct {
	Text     string            `json:"text"`
	Skeleton coverage.Skeleton `json:"skeleton"`
}

// Instrumenter rewrites source so that executing it updates counters.
// Implementations must be deterministic: identical (path, content, options)
// must yield byte-identical results, or caching breaks.
type Instrumenter interface {
	Instrument(path string, content []byte, opts Options) (*Result, error)
}

// Func adapts a plain function to the Instrumenter interface.
type Func func(path string, content []byte, opts Options) (*Result, error)

// Instrument calls f.
func (f Func) Instrument(path string, content []byte, opts Options) (*Result, error) {
	return f(path, content, opts)
}

// Error wraps an instrumenter failure with the file it occurred on, so a
// load failure names the unparseable file instead of silently skipping it.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("instrumenting %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
