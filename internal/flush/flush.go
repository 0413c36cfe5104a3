// Package flush persists a registry snapshot to a per-process report file.
// One durable flush must happen however the process ends: normal exit,
// uncaught error, or termination signal. The file system is the only
// synchronization primitive between cooperating processes, so every write
// is atomic and every file name is unique per process.
package flush

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covmap/covmap/internal/atomicfile"
	"github.com/covmap/covmap/internal/coverage"
)

// DefaultDir is the report location relative to the project root.
const DefaultDir = ".covmap_output"

// Report is the on-disk shape of one process's coverage snapshot.
type Report struct {
	PID       int          `json:"pid"`
	RunID     string       `json:"run_id"`
	Timestamp time.Time    `json:"timestamp"`
	Files     coverage.Map `json:"files"`
}

// Flusher writes one process's registry to its report file. The file name
// is fixed at construction from the pid and a random suffix, so repeated
// flushes overwrite the same file and concurrent processes never collide.
type Flusher struct {
	mu       sync.Mutex
	registry *coverage.Registry
	dir      string
	pid      int
	runID    string
}

// NewFlusher creates a flusher writing into dir.
func NewFlusher(reg *coverage.Registry, dir string) *Flusher {
	return &Flusher{
		registry: reg,
		dir:      dir,
		pid:      os.Getpid(),
		runID:    uuid.NewString(),
	}
}

// Path returns the report file this flusher writes.
func (f *Flusher) Path() string {
	return filepath.Join(f.dir, fmt.Sprintf("coverage-%d-%s.json", f.pid, f.runID))
}

// Flush writes the current snapshot. Calling it again overwrites the file
// with an equivalent or newer snapshot, so double flushing never
// double-counts. The write itself is atomic: a crash mid-flush leaves the
// previous complete file, never a truncated one.
func (f *Flusher) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rep := Report{
		PID:       f.pid,
		RunID:     f.runID,
		Timestamp: time.Now().UTC(),
		Files:     f.registry.Snapshot(),
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode coverage report: %w", err)
	}
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory %s: %w", f.dir, err)
	}
	if err := atomicfile.Write(f.Path(), data, 0644); err != nil {
		return fmt.Errorf("failed to write coverage report: %w", err)
	}
	return nil
}
