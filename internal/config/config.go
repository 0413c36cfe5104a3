// Package config loads the engine configuration. Values come from a
// covmap.yaml config file, COVMAP_* environment variables and defaults, in
// that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/covmap/covmap/internal/cache"
	"github.com/covmap/covmap/internal/flush"
	"github.com/covmap/covmap/internal/instrument"
)

// EnvCwd overrides the effective working directory. It ranks below an
// explicit Cwd config value and above project-root auto-detection.
const EnvCwd = "COVMAP_CWD"

// manifestNames are the files whose presence marks a project root when
// walking up from the process's working directory.
var manifestNames = []string{"covmap.yaml", "covmap.yml", "package.json"}

// Config is the full configuration surface the engine consumes.
type Config struct {
	// Extensions eligible for instrumentation, e.g. [".js"].
	Extensions []string `mapstructure:"extensions"`

	// Include / Exclude glob patterns for instrumentation eligibility.
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`

	// ReportInclude / ReportExclude override the patterns for reporting
	// eligibility; empty means same as instrumentation.
	ReportInclude []string `mapstructure:"report_include"`
	ReportExclude []string `mapstructure:"report_exclude"`

	// Instrument is the option subset handed to the instrumenter. It
	// participates in cache keys.
	Instrument instrument.Options `mapstructure:"instrument"`

	CacheEnabled bool   `mapstructure:"cache_enabled"`
	CacheDir     string `mapstructure:"cache_dir"`
	ReportDir    string `mapstructure:"report_dir"`

	// Child marks this process as a worker in a coordinated parent/child
	// run: it still flushes its own report, but does not manage a cache
	// directory of its own.
	Child bool `mapstructure:"child"`

	// Cwd overrides the effective working directory outright.
	Cwd string `mapstructure:"cwd"`
}

// Load reads configuration from dir (or the detected project root when dir
// is empty), applying env overrides and defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("covmap")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COVMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_dir", cache.DefaultDir)
	v.SetDefault("report_dir", flush.DefaultDir)
	v.SetDefault("child", false)

	if dir != "" {
		v.AddConfigPath(dir)
	} else {
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is the common case; anything else is real.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Boolean env toggles are read directly: viper only folds env values
	// into Unmarshal for keys it can type, and "1" is not a yaml bool.
	if env := os.Getenv("COVMAP_CHILD"); env == "1" || strings.EqualFold(env, "true") {
		cfg.Child = true
	}
	if env := os.Getenv("COVMAP_REPORT_DIR"); env != "" {
		cfg.ReportDir = env
	}
	return &cfg, nil
}

// ResolveCwd determines the effective working directory: an explicit Cwd
// value wins, then the COVMAP_CWD environment variable, then walking up
// from the process's working directory looking for a project manifest,
// then the working directory itself.
func (c *Config) ResolveCwd() (string, error) {
	if c.Cwd != "" {
		return filepath.Abs(c.Cwd)
	}
	if env := os.Getenv(EnvCwd); env != "" {
		return filepath.Abs(env)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	if root, ok := findProjectRoot(wd); ok {
		return root, nil
	}
	return wd, nil
}

// findProjectRoot walks up from dir looking for a project manifest.
func findProjectRoot(dir string) (string, bool) {
	for {
		for _, name := range manifestNames {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// CacheDirIn anchors the configured cache directory under root when it is
// relative.
func (c *Config) CacheDirIn(root string) string {
	return anchor(c.CacheDir, root)
}

// ReportDirIn anchors the configured report directory under root when it
// is relative.
func (c *Config) ReportDirIn(root string) string {
	return anchor(c.ReportDir, root)
}

func anchor(dir, root string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
