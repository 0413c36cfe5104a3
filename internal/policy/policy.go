// Package policy decides which file paths participate in instrumentation
// and reporting. Decisions are pure functions of (path, configuration), so
// repeated calls are idempotent and callers may cache them freely.
package policy

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExtension is the one source extension recognized out of the box.
const DefaultExtension = ".js"

// baselineExcludes keeps dependency trees out of coverage unless the user
// supplies an exclude list of their own.
var baselineExcludes = []string{
	"**/node_modules/**",
	"**/vendor/**",
}

// Policy evaluates include/exclude globs and the eligible extension set.
// Instrumentation and reporting eligibility are evaluated independently: a
// file may be excluded from instrumentation yet still reported at zero, and
// vice versa.
type Policy struct {
	root       string
	instrument matcher
	report     matcher
	extensions map[string]bool
}

type matcher struct {
	include []string
	exclude []string
}

// Config carries the values a Policy is built from.
type Config struct {
	// Root anchors relative glob matching. Patterns are matched against the
	// path relative to Root as well as against the absolute path.
	Root string

	// Include patterns; empty means no include filter (everything passes).
	Include []string

	// Exclude patterns; empty means the baseline dependency-directory
	// exclusion applies. A non-empty list replaces the baseline entirely.
	Exclude []string

	// ReportInclude / ReportExclude override Include / Exclude for the
	// reporting decision. Empty means "same as instrumentation".
	ReportInclude []string
	ReportExclude []string

	// Extensions eligible for instrumentation. Empty means the default set.
	Extensions []string
}

// New builds a Policy. The baseline exclusion is only dropped when the user
// explicitly supplies their own exclude list.
func New(cfg Config) *Policy {
	inst := matcher{include: cfg.Include, exclude: cfg.Exclude}
	if len(inst.exclude) == 0 {
		inst.exclude = baselineExcludes
	}

	rep := matcher{include: cfg.ReportInclude, exclude: cfg.ReportExclude}
	if len(rep.include) == 0 {
		rep.include = inst.include
	}
	if len(rep.exclude) == 0 {
		rep.exclude = inst.exclude
	}

	p := &Policy{
		root:       cfg.Root,
		instrument: inst,
		report:     rep,
		extensions: make(map[string]bool),
	}
	if len(cfg.Extensions) == 0 {
		p.extensions[DefaultExtension] = true
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.extensions[ext] = true
	}
	return p
}

// EligibleExtension reports whether files with this extension are handled
// at all. Paths with other extensions never reach glob matching.
func (p *Policy) EligibleExtension(ext string) bool {
	return p.extensions[ext]
}

// Extensions returns the eligible extension set in no particular order.
func (p *Policy) Extensions() []string {
	exts := make([]string, 0, len(p.extensions))
	for ext := range p.extensions {
		exts = append(exts, ext)
	}
	return exts
}

// ShouldInstrument reports whether path is eligible for instrumentation.
func (p *Policy) ShouldInstrument(path string) bool {
	return p.EligibleExtension(filepath.Ext(path)) && p.matches(p.instrument, path)
}

// ShouldReport reports whether path may appear in merged reports.
func (p *Policy) ShouldReport(path string) bool {
	return p.EligibleExtension(filepath.Ext(path)) && p.matches(p.report, path)
}

func (p *Policy) matches(m matcher, path string) bool {
	candidates := []string{filepath.ToSlash(path)}
	if p.root != "" {
		if rel, err := filepath.Rel(p.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			candidates = append(candidates, filepath.ToSlash(rel))
		}
	}

	for _, pat := range m.exclude {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pat, c); ok {
				return false
			}
		}
	}

	// An empty include list means "no include filter", not "match nothing".
	if len(m.include) == 0 {
		return true
	}
	for _, pat := range m.include {
		for _, c := range candidates {
			if ok, _ := doublestar.Match(pat, c); ok {
				return true
			}
		}
	}
	return false
}
