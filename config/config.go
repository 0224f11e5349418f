// Package config handles modrun.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file the runtime looks for.
const FileName = "modrun.toml"

// Config is the runtime configuration.
type Config struct {
	Cache     CacheConfig    `toml:"cache"`
	Delegates DelegateConfig `toml:"delegates"`
	Catalog   CatalogConfig  `toml:"catalog"`

	// Dir is the directory containing the config file (set at load time).
	Dir string `toml:"-"`
}

// CacheConfig configures the module cache.
type CacheConfig struct {
	MaxEntries int    `toml:"max-entries"`
	StorePath  string `toml:"store-path"` // empty disables persistence
}

// DelegateConfig configures delegate-handle sweeping. Wired into
// DelegateCache.StartSweeper when the runtime stack is assembled.
type DelegateConfig struct {
	SweepInterval Duration `toml:"sweep-interval"`
	TTL           Duration `toml:"ttl"`
}

// CatalogConfig points at optional catalog and rule-table files; when
// empty the built-in catalog and rules apply.
type CatalogConfig struct {
	CatalogFile string `toml:"catalog-file"`
	RulesFile   string `toml:"rules-file"`
}

// Duration wraps time.Duration for TOML values like "5m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{MaxEntries: 128},
		Delegates: DelegateConfig{
			SweepInterval: Duration(time.Minute),
			TTL:           Duration(30 * time.Minute),
		},
	}
}

// Load parses a modrun.toml file from the given directory, applying
// defaults for anything unset.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir looking for a modrun.toml, then loads
// it. Returns nil (no error) if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the cache store path resolved against the config
// directory, or "" when persistence is disabled.
func (c *Config) StorePath() string {
	if c.Cache.StorePath == "" {
		return ""
	}
	if filepath.IsAbs(c.Cache.StorePath) || c.Dir == "" {
		return c.Cache.StorePath
	}
	return filepath.Join(c.Dir, c.Cache.StorePath)
}
