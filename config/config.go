package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/scipunch/rssreader/cache"
)

var baseCfgPath = filepath.Join("rssreader", "config.toml")

type Config struct {
	Cache     CacheConfig       `toml:"cache"`
	HTTP      HTTPConfig        `toml:"http"`
	Log       LogConfig         `toml:"log"`
	Resources []ResourceConfig  `toml:"resources"`
	Filters   map[string]Filter `toml:"filters"` // Named filters that can be referenced by resources
}

type CacheConfig struct {
	Backend cache.Backend `toml:"backend"` // "json", "sqlite" or "bolt"
	Path    string        `toml:"path"`    // Defaults to the XDG cache directory
}

type HTTPConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Retries        int    `toml:"retries"`
	UserAgent      string `toml:"user_agent"`
}

type LogConfig struct {
	Level      string `toml:"level"` // Overridden by --verbose
	File       string `toml:"file"`  // Empty logs to stderr only
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// ResourceConfig holds per-source settings
type ResourceConfig struct {
	FeedURL     string   `toml:"feed_url"`
	Limit       *int     `toml:"limit"`   // Used when --limit is not given
	FilterNames []string `toml:"filters"` // Names of filters to apply (pipeline)
}

// Filter defines rules for filtering feed items
type Filter struct {
	MinLength         int      `toml:"min_length"`         // Minimum character count (0 = no limit)
	MinWords          int      `toml:"min_words"`          // Minimum word count (0 = no limit)
	ExcludePatterns   []string `toml:"exclude_patterns"`   // Regex patterns to exclude
	RequireParagraphs bool     `toml:"require_paragraphs"` // Must have multiple lines/paragraphs
}

// Timeout returns the HTTP timeout as a duration
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// CachePath returns the configured cache path or the backend default
func (c Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return cache.DefaultPath(c.Cache.Backend)
}

// Resource returns the settings for source, if any
func (c Config) Resource(source string) (ResourceConfig, bool) {
	for _, r := range c.Resources {
		if r.FeedURL == source {
			return r, true
		}
	}
	return ResourceConfig{}, false
}

// Read decodes the config at cfgPath over the defaults. The returned error
// wraps os.ErrNotExist when the file is missing.
func Read(cfgPath string) (Config, error) {
	conf := Default()
	if _, err := toml.DecodeFile(cfgPath, &conf); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return conf, err
		}
		return conf, fmt.Errorf("failed to decode config at %s: %w", cfgPath, err)
	}
	return conf, nil
}

// Write encodes cfg as TOML at cfgPath, creating parent directories
func Write(cfgPath string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory for '%s': %w", cfgPath, err)
	}

	out, err := os.Create(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to create config file '%s': %w", cfgPath, err)
	}
	defer out.Close()

	if err := toml.NewEncoder(out).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return out.Close()
}

func Default() Config {
	return Config{
		Cache: CacheConfig{
			Backend: cache.JSON,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 15,
			Retries:        2,
			UserAgent:      "rssreader/1.0",
		},
		Log: LogConfig{
			Level: "warn",
		},
		Resources: []ResourceConfig{},
		Filters:   map[string]Filter{},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/rssreader/config.toml, falling back to
// ~/.config and then the working directory
func DefaultPath() string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, baseCfgPath)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", baseCfgPath)
	}
	return "config.toml"
}
