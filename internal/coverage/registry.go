package coverage

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Record is the live, mutable counterpart of a FileCoverage. Counter cells
// are allocated once at registration; after that the maps are never written
// again, so instrumented code may increment concurrently without locking.
type Record struct {
	path  string
	skel  Skeleton
	stmts map[string]*int64
	brs   map[string][]int64
	fns   map[string]*int64
}

// CoverStatement increments the hit count of one statement id.
// Unknown ids are ignored: the id space is fixed at registration and a
// mismatch means the instrumented text and skeleton went out of sync.
func (r *Record) CoverStatement(id string) {
	if c, ok := r.stmts[id]; ok {
		atomic.AddInt64(c, 1)
	}
}

// CoverBranch increments the hit count of path index path of branch id.
func (r *Record) CoverBranch(id string, path int) {
	if cells, ok := r.brs[id]; ok && path >= 0 && path < len(cells) {
		atomic.AddInt64(&cells[path], 1)
	}
}

// CoverFunction increments the hit count of one function id.
func (r *Record) CoverFunction(id string) {
	if c, ok := r.fns[id]; ok {
		atomic.AddInt64(c, 1)
	}
}

func (r *Record) snapshot() *FileCoverage {
	fc := NewFileCoverage(r.path, r.skel)
	for id, c := range r.stmts {
		fc.Statements[id] = atomic.LoadInt64(c)
	}
	for id, cells := range r.brs {
		dst := fc.Branches[id]
		for i := range cells {
			dst[i] = atomic.LoadInt64(&cells[i])
		}
	}
	for id, c := range r.fns {
		fc.Functions[id] = atomic.LoadInt64(c)
	}
	return fc
}

// Registry is the process-wide coverage state: one Record per loaded file.
// It is born empty, populated lazily as files are first loaded, and is the
// only mutable coverage state in the process. Cross-process sharing happens
// exclusively through serialized snapshots.
type Registry struct {
	mu    sync.RWMutex
	files map[string]*Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{files: make(map[string]*Record)}
}

// Register seeds a zero-filled record for path and returns a handle for the
// instrumented code to increment. Registering the same path again returns
// the existing record, so a file loaded twice keeps one id space.
func (g *Registry) Register(path string, sk Skeleton) (*Record, error) {
	if err := sk.Validate(); err != nil {
		return nil, fmt.Errorf("invalid skeleton for %s: %w", path, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.files[path]; ok {
		return rec, nil
	}

	rec := &Record{
		path:  path,
		skel:  sk,
		stmts: make(map[string]*int64, len(sk.Statements)),
		brs:   make(map[string][]int64, len(sk.Branches)),
		fns:   make(map[string]*int64, len(sk.Functions)),
	}
	for id := range sk.Statements {
		rec.stmts[id] = new(int64)
	}
	for id, br := range sk.Branches {
		rec.brs[id] = make([]int64, len(br.Locations))
	}
	for id := range sk.Functions {
		rec.fns[id] = new(int64)
	}
	g.files[path] = rec
	return rec, nil
}

// Lookup returns the record for path, if one was registered.
func (g *Registry) Lookup(path string) (*Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.files[path]
	return rec, ok
}

// Increment bumps a single counter by id. Instrumented code should prefer
// the Record handle returned by Register; this form exists for callers that
// only hold a path.
func (g *Registry) Increment(path, kind, id string, branchPath int) {
	rec, ok := g.Lookup(path)
	if !ok {
		return
	}
	switch kind {
	case "s":
		rec.CoverStatement(id)
	case "b":
		rec.CoverBranch(id, branchPath)
	case "f":
		rec.CoverFunction(id)
	}
}

// Snapshot returns a point-in-time copy of every record, safe to serialize
// while instrumented code keeps running. Counters are read atomically, so a
// snapshot never observes a torn value.
func (g *Registry) Snapshot() Map {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m := make(Map, len(g.files))
	for path, rec := range g.files {
		m[path] = rec.snapshot()
	}
	return m
}

// Reset drops every record, starting a fresh measurement window.
func (g *Registry) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files = make(map[string]*Record)
}

// Len returns the number of registered files.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.files)
}
