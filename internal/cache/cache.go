// Package cache persists instrumented source keyed by a hash of content,
// instrumentation options and file path, so unchanged files are never
// re-instrumented. The cache directory may be shared by concurrent
// processes: identical keys always map to byte-identical entries, and every
// write goes through write-to-temp plus rename, so readers see either a
// complete entry or nothing.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/covmap/covmap/internal/atomicfile"
	"github.com/covmap/covmap/internal/instrument"
	"github.com/covmap/covmap/internal/logger"
)

// DefaultDir is the cache location relative to the project root.
const DefaultDir = ".covmap_cache"

// Cache wraps an external instrumenter with content-addressed storage.
type Cache struct {
	dir   string
	instr instrument.Instrumenter
	opts  instrument.Options

	// disabled entries are never read or written; every call goes straight
	// to the instrumenter. This is also the degraded state entered after a
	// write failure, since correctness must never depend on the cache.
	disabled atomic.Bool
}

// New returns a cache rooted at dir. If enabled is false the cache starts
// in pass-through mode, which is how a child process in a coordinated run
// avoids managing its own cache directory.
func New(dir string, enabled bool, instr instrument.Instrumenter, opts instrument.Options) *Cache {
	c := &Cache{dir: dir, instr: instr, opts: opts}
	c.disabled.Store(!enabled)
	return c
}

// Enabled reports whether entries are currently persisted.
func (c *Cache) Enabled() bool {
	return !c.disabled.Load()
}

// Key derives the cache key for one file. Any change to the source bytes,
// the instrumentation options, or the path yields a different key, so a
// stale entry can never be served for different content.
func (c *Cache) Key(path string, content []byte) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write(c.opts.Fingerprint())
	h.Write([]byte{0})
	h.Write([]byte(path))
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrInstrument returns the instrumented form of content, from the cache
// when possible. A miss invokes the instrumenter and stores the result; the
// instrumenter is deterministic, so a concurrent last-writer-wins race on
// the same key is harmless.
func (c *Cache) GetOrInstrument(path string, content []byte) (*instrument.Result, error) {
	if c.disabled.Load() {
		return c.runInstrumenter(path, content)
	}

	key := c.Key(path, content)
	if res, ok := c.read(key); ok {
		return res, nil
	}

	res, err := c.runInstrumenter(path, content)
	if err != nil {
		return nil, err
	}
	c.write(key, res)
	return res, nil
}

func (c *Cache) runInstrumenter(path string, content []byte) (*instrument.Result, error) {
	res, err := c.instr.Instrument(path, content, c.opts)
	if err != nil {
		return nil, &instrument.Error{Path: path, Err: err}
	}
	return res, nil
}

// read loads an entry. Missing, truncated or otherwise undecodable entries
// are all treated as a miss; rename-based writes make truncation rare but a
// reader must still tolerate garbage.
func (c *Cache) read(key string) (*instrument.Result, bool) {
	data, err := os.ReadFile(c.entryPath(key))
	if err != nil {
		return nil, false
	}
	var res instrument.Result
	if err := json.Unmarshal(data, &res); err != nil {
		logger.Debug("cache: discarding undecodable entry %s: %v", key, err)
		return nil, false
	}
	return &res, true
}

// write stores an entry. On failure the cache degrades to pass-through for
// the rest of the process instead of failing the load.
func (c *Cache) write(key string, res *instrument.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		logger.Warn("cache: cannot encode entry %s: %v", key, err)
		return
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.degrade(err)
		return
	}
	if err := atomicfile.Write(c.entryPath(key), data, 0644); err != nil {
		c.degrade(err)
	}
}

func (c *Cache) degrade(err error) {
	if c.disabled.CompareAndSwap(false, true) {
		logger.Warn("cache: write failed, disabling cache for this process: %v", err)
	}
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Clear removes the cache directory and everything in it.
func Clear(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear cache %s: %w", dir, err)
	}
	return nil
}
