package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults when no config file exists", func(t *testing.T) {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)

		assert.True(t, cfg.CacheEnabled)
		assert.Equal(t, ".covmap_cache", cfg.CacheDir)
		assert.Equal(t, ".covmap_output", cfg.ReportDir)
		assert.False(t, cfg.Child)
		assert.Empty(t, cfg.Extensions)
	})

	t.Run("should read values from covmap.yaml", func(t *testing.T) {
		dir := t.TempDir()
		yaml := `
extensions: [".js", ".mjs"]
include:
  - "src/**"
exclude:
  - "**/generated/**"
cache_enabled: false
report_dir: reports
instrument:
  branches: true
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "covmap.yaml"), []byte(yaml), 0644))

		cfg, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{".js", ".mjs"}, cfg.Extensions)
		assert.Equal(t, []string{"src/**"}, cfg.Include)
		assert.Equal(t, []string{"**/generated/**"}, cfg.Exclude)
		assert.False(t, cfg.CacheEnabled)
		assert.Equal(t, "reports", cfg.ReportDir)
		assert.True(t, cfg.Instrument.Branches)
	})

	t.Run("should honor child and report dir environment overrides", func(t *testing.T) {
		t.Setenv("COVMAP_CHILD", "1")
		t.Setenv("COVMAP_REPORT_DIR", "/shared/reports")

		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		assert.True(t, cfg.Child)
		assert.Equal(t, "/shared/reports", cfg.ReportDir)
	})
}

func TestResolveCwd(t *testing.T) {
	t.Run("should prefer an explicit cwd", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(EnvCwd, t.TempDir())

		cfg := &Config{Cwd: dir}
		got, err := cfg.ResolveCwd()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("should fall back to the environment override", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(EnvCwd, dir)

		got, err := (&Config{}).ResolveCwd()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("should walk up to a project manifest", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "covmap.yaml"), []byte("{}"), 0644))
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0755))

		got, ok := findProjectRoot(nested)
		assert.True(t, ok)
		assert.Equal(t, root, got)
	})

	t.Run("should report no root when nothing matches", func(t *testing.T) {
		_, ok := findProjectRoot(t.TempDir())
		assert.False(t, ok)
	})
}

func TestDirAnchoring(t *testing.T) {
	t.Run("should anchor relative directories under the root", func(t *testing.T) {
		cfg := &Config{CacheDir: ".covmap_cache", ReportDir: "out"}
		assert.Equal(t, filepath.Join("/proj", ".covmap_cache"), cfg.CacheDirIn("/proj"))
		assert.Equal(t, filepath.Join("/proj", "out"), cfg.ReportDirIn("/proj"))
	})

	t.Run("should keep absolute directories as-is", func(t *testing.T) {
		cfg := &Config{CacheDir: "/abs/cache", ReportDir: "/abs/out"}
		assert.Equal(t, "/abs/cache", cfg.CacheDirIn("/proj"))
		assert.Equal(t, "/abs/out", cfg.ReportDirIn("/proj"))
	})
}
