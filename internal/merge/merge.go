// Package merge combines per-process report files into one coverage map.
// Merging sums counters per id and is commutative and associative, so the
// order reports are read in never changes the result.
package merge

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/covmap/covmap/internal/cache"
	"github.com/covmap/covmap/internal/coverage"
	"github.com/covmap/covmap/internal/flush"
	"github.com/covmap/covmap/internal/policy"
)

// Warning is a soft diagnostic raised while loading or merging. Corrupt
// report files and mismatched skeletons degrade the report, they do not
// abort it.
type Warning struct {
	Path string
	Msg  string
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Msg
	}
	return fmt.Sprintf("%s: %s", w.Path, w.Msg)
}

// LoadReports reads every report file under dir. Unreadable or undecodable
// files are skipped with a warning so one corrupt file cannot poison the
// rest.
func LoadReports(dir string) ([]*flush.Report, []Warning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read report directory %s: %w", dir, err)
	}

	var reports []*flush.Report
	var warns []Warning
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "coverage-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			warns = append(warns, Warning{Path: path, Msg: fmt.Sprintf("unreadable report skipped: %v", err)})
			continue
		}
		var rep flush.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			warns = append(warns, Warning{Path: path, Msg: fmt.Sprintf("corrupt report skipped: %v", err)})
			continue
		}
		reports = append(reports, &rep)
	}
	return reports, warns, nil
}

// Merge sums the given record sets into one map. When two sets carry
// different skeletons for the same path (a source change mid-run), the
// most complete id space wins and a warning records the inconsistency.
func Merge(reports ...*flush.Report) (coverage.Map, []Warning) {
	merged := make(coverage.Map)
	var warns []Warning

	for _, rep := range reports {
		if rep == nil {
			continue
		}
		for path, fc := range rep.Files {
			if fc == nil {
				continue
			}
			existing, ok := merged[path]
			if !ok {
				merged[path] = cloneFileCoverage(path, fc)
				continue
			}
			if !sameIDSpace(existing, fc) {
				warns = append(warns, Warning{
					Path: path,
					Msg:  "reports disagree on instrumentation skeleton; keeping the most complete id space",
				})
				if idSpaceSize(fc) > idSpaceSize(existing) {
					wider := cloneFileCoverage(path, fc)
					addCounts(wider, existing)
					merged[path] = wider
					continue
				}
			}
			addCounts(existing, fc)
		}
	}
	return merged, warns
}

// AddAllFiles augments merged with zero-filled records for every
// report-eligible file under root that no process ever loaded. Skeletons
// come from instrumenting through c; the files' code never executes.
func AddAllFiles(merged coverage.Map, root string, p *policy.Policy, c *cache.Cache) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if !p.ShouldReport(abs) {
			return nil
		}
		if _, seen := merged[abs]; seen {
			return nil
		}

		content, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", abs, err)
		}
		res, err := c.GetOrInstrument(abs, content)
		if err != nil {
			return err
		}
		merged[abs] = coverage.NewFileCoverage(abs, res.Skeleton)
		return nil
	})
}

// Filter drops merged entries the policy excludes from reporting. Reports
// written by an earlier run with a looser policy stay out of this report.
func Filter(merged coverage.Map, p *policy.Policy) coverage.Map {
	out := make(coverage.Map, len(merged))
	for path, fc := range merged {
		if p.ShouldReport(path) {
			out[path] = fc
		}
	}
	return out
}

func cloneFileCoverage(path string, fc *coverage.FileCoverage) *coverage.FileCoverage {
	out := coverage.NewFileCoverage(path, fc.Skeleton)
	addCounts(out, fc)
	return out
}

// addCounts sums src's counters into dst for every id dst knows about.
func addCounts(dst, src *coverage.FileCoverage) {
	for id, n := range src.Statements {
		if _, ok := dst.Statements[id]; ok {
			dst.Statements[id] += n
		}
	}
	for id, paths := range src.Branches {
		cells, ok := dst.Branches[id]
		if !ok {
			continue
		}
		for i, n := range paths {
			if i < len(cells) {
				cells[i] += n
			}
		}
	}
	for id, n := range src.Functions {
		if _, ok := dst.Functions[id]; ok {
			dst.Functions[id] += n
		}
	}
}

func sameIDSpace(a, b *coverage.FileCoverage) bool {
	if len(a.Statements) != len(b.Statements) ||
		len(a.Branches) != len(b.Branches) ||
		len(a.Functions) != len(b.Functions) {
		return false
	}
	for id := range a.Statements {
		if _, ok := b.Statements[id]; !ok {
			return false
		}
	}
	for id, cells := range a.Branches {
		other, ok := b.Branches[id]
		if !ok || len(other) != len(cells) {
			return false
		}
	}
	for id := range a.Functions {
		if _, ok := b.Functions[id]; !ok {
			return false
		}
	}
	return true
}

func idSpaceSize(fc *coverage.FileCoverage) int {
	n := len(fc.Statements) + len(fc.Functions)
	for _, cells := range fc.Branches {
		n += len(cells)
	}
	return n
}
