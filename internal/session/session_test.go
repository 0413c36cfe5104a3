package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covmap/covmap/internal/config"
	"github.com/covmap/covmap/internal/coverage"
	"github.com/covmap/covmap/internal/flush"
	"github.com/covmap/covmap/internal/instrument"
	"github.com/covmap/covmap/internal/loader"
	"github.com/covmap/covmap/internal/merge"
)

func lineInstrumenter() instrument.Instrumenter {
	return instrument.Func(func(path string, content []byte, opts instrument.Options) (*instrument.Result, error) {
		sk := coverage.Skeleton{Statements: make(map[string]coverage.Location)}
		for i, line := range strings.Split(string(content), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			sk.Statements[strconv.Itoa(len(sk.Statements))] = coverage.Location{StartLine: i + 1, EndLine: i + 1}
		}
		return &instrument.Result{Text: "/*cov*/" + string(content), Skeleton: sk}, nil
	})
}

func testConfig(root string) *config.Config {
	return &config.Config{
		CacheEnabled: true,
		CacheDir:     ".covmap_cache",
		ReportDir:    ".covmap_output",
		Cwd:          root,
	}
}

func TestSession(t *testing.T) {
	t.Run("should require an instrumenter", func(t *testing.T) {
		_, err := New(testConfig(t.TempDir()), Options{})
		assert.Error(t, err)
	})

	t.Run("should collect, flush and merge end to end", func(t *testing.T) {
		root := t.TempDir()
		path := filepath.Join(root, "app.js")
		require.NoError(t, os.WriteFile(path, []byte("let a = 1\nlet b = 2"), 0644))

		s, err := New(testConfig(root), Options{Instrumenter: lineInstrumenter()})
		require.NoError(t, err)

		l := loader.New()
		_, err = l.Register(".js", func(src *loader.Source) error {
			// Simulate execution: the instrumented text would call back into
			// the registry record as its statements run.
			rec, ok := s.Registry().Lookup(src.Path)
			require.True(t, ok)
			rec.CoverStatement("0")
			rec.CoverStatement("1")
			rec.CoverStatement("1")
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, s.Install(l))

		require.NoError(t, l.Load(path))
		require.NoError(t, s.Flush())

		reports, warns, err := merge.LoadReports(s.ReportDir())
		require.NoError(t, err)
		require.Empty(t, warns)
		require.Len(t, reports, 1)

		merged, mergeWarns := merge.Merge(reports...)
		require.Empty(t, mergeWarns)
		fc := merged[path]
		require.NotNil(t, fc)
		assert.Equal(t, int64(1), fc.Statements["0"])
		assert.Equal(t, int64(2), fc.Statements["1"])
	})

	t.Run("should disable the cache in child mode", func(t *testing.T) {
		cfg := testConfig(t.TempDir())
		cfg.Child = true

		s, err := New(cfg, Options{Instrumenter: lineInstrumenter()})
		require.NoError(t, err)
		assert.False(t, s.Cache().Enabled())
	})

	t.Run("should reset to a fresh measurement window", func(t *testing.T) {
		root := t.TempDir()
		s, err := New(testConfig(root), Options{Instrumenter: lineInstrumenter()})
		require.NoError(t, err)

		_, err = s.Registry().Register("/src/a.js", coverage.Skeleton{
			Statements: map[string]coverage.Location{"0": {StartLine: 1}},
		})
		require.NoError(t, err)
		require.Equal(t, 1, s.Registry().Len())

		s.Reset()
		assert.Equal(t, 0, s.Registry().Len())
	})

	t.Run("should flush exactly once on close", func(t *testing.T) {
		root := t.TempDir()
		s, err := New(testConfig(root), Options{Instrumenter: lineInstrumenter()})
		require.NoError(t, err)

		s.Close()
		s.Close()

		entries, err := os.ReadDir(s.ReportDir())
		require.NoError(t, err)
		require.Len(t, entries, 1)

		var rep flush.Report
		data, err := os.ReadFile(filepath.Join(s.ReportDir(), entries[0].Name()))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &rep))
		assert.Empty(t, rep.Files)
	})
}
