package hwpx

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all configuration options for the merge engine
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
	// LogFormat selects the log encoding (console, json)
	LogFormat string `yaml:"log_format"`
	// LoadConcurrency bounds concurrent source fetches. 0 means unbounded.
	LoadConcurrency int `yaml:"load_concurrency"`
	// LoadTimeout bounds the whole load phase. 0 means no timeout.
	LoadTimeout time.Duration `yaml:"load_timeout"`
	// Mirror returns a single source's bytes untouched when it is the only source.
	Mirror bool `yaml:"mirror"`
	// PrefixFormat is the namespace prefix pattern; %d is the 1-based source index.
	PrefixFormat string `yaml:"prefix_format"`
	// Sentinels are the "no reference" values that are never rewritten.
	Sentinels []string `yaml:"sentinels"`
	// RefMatch selects how reference attributes are recognized (allowlist, suffix).
	RefMatch string `yaml:"ref_match"`
	// TemplatePath is the local path of the template container.
	TemplatePath string `yaml:"template_path"`
	// TemplateCacheSize is the number of template byte slices kept. 0 disables caching.
	TemplateCacheSize int `yaml:"template_cache_size"`
	// TemplateCacheTTL is the time-to-live of cached templates. 0 means no expiration.
	TemplateCacheTTL time.Duration `yaml:"template_cache_ttl"`
	// SourceDir is the directory served by the filesystem source provider.
	SourceDir string `yaml:"source_dir"`
	// SQLitePath is the database served by the SQLite source provider.
	SQLitePath string `yaml:"sqlite_path"`
	// SQLiteTable is the table holding source documents.
	SQLiteTable string `yaml:"sqlite_table"`
}

// DefaultSentinels are the reserved "no reference" values.
var DefaultSentinels = []string{"4294967295", "-1", "0", ""}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "console",
		LoadConcurrency:   8,
		LoadTimeout:       0,
		Mirror:            false,
		PrefixFormat:      "q%d_",
		Sentinels:         append([]string(nil), DefaultSentinels...),
		RefMatch:          string(RefMatchAllowList),
		TemplateCacheSize: 4,
		TemplateCacheTTL:  0,
		SQLiteTable:       "documents",
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	applyEnvironment(config)
	return config
}

// LoadConfigFile reads a YAML configuration file. Unset fields keep their
// defaults and environment variables override file values.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	applyEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

func applyEnvironment(config *Config) {
	// HWPXMERGE_LOG_LEVEL
	if val := os.Getenv("HWPXMERGE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}

	// HWPXMERGE_LOG_FORMAT
	if val := os.Getenv("HWPXMERGE_LOG_FORMAT"); val != "" {
		config.LogFormat = val
	}

	// HWPXMERGE_LOAD_CONCURRENCY
	if val := os.Getenv("HWPXMERGE_LOAD_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.LoadConcurrency = n
		}
	}

	// HWPXMERGE_LOAD_TIMEOUT
	if val := os.Getenv("HWPXMERGE_LOAD_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.LoadTimeout = d
		}
	}

	// HWPXMERGE_MIRROR
	if val := os.Getenv("HWPXMERGE_MIRROR"); val != "" {
		config.Mirror = parseBool(val)
	}

	// HWPXMERGE_PREFIX_FORMAT
	if val := os.Getenv("HWPXMERGE_PREFIX_FORMAT"); val != "" {
		config.PrefixFormat = val
	}

	// HWPXMERGE_REF_MATCH
	if val := os.Getenv("HWPXMERGE_REF_MATCH"); val != "" {
		config.RefMatch = val
	}

	// HWPXMERGE_TEMPLATE
	if val := os.Getenv("HWPXMERGE_TEMPLATE"); val != "" {
		config.TemplatePath = val
	}

	// HWPXMERGE_TEMPLATE_CACHE_SIZE
	if val := os.Getenv("HWPXMERGE_TEMPLATE_CACHE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.TemplateCacheSize = n
		}
	}

	// HWPXMERGE_TEMPLATE_CACHE_TTL
	if val := os.Getenv("HWPXMERGE_TEMPLATE_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.TemplateCacheTTL = d
		}
	}

	// HWPXMERGE_SOURCE_DIR
	if val := os.Getenv("HWPXMERGE_SOURCE_DIR"); val != "" {
		config.SourceDir = val
	}

	// HWPXMERGE_SQLITE_PATH
	if val := os.Getenv("HWPXMERGE_SQLITE_PATH"); val != "" {
		config.SQLitePath = val
	}
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}

	if config.PrefixFormat == "" {
		config.PrefixFormat = defaults.PrefixFormat
	}

	if config.Sentinels == nil {
		config.Sentinels = defaults.Sentinels
	}

	if config.RefMatch == "" {
		config.RefMatch = defaults.RefMatch
	}

	if config.SQLiteTable == "" {
		config.SQLiteTable = defaults.SQLiteTable
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return errors.New("invalid log format: " + c.LogFormat)
	}

	if c.LoadConcurrency < 0 {
		return errors.New("load concurrency cannot be negative")
	}

	if c.LoadTimeout < 0 {
		return errors.New("load timeout cannot be negative")
	}

	if strings.Count(c.PrefixFormat, "%d") != 1 || strings.Count(c.PrefixFormat, "%") != 1 {
		return errors.New("prefix format must contain exactly one %d verb: " + c.PrefixFormat)
	}

	// "q%d" would map source 1 id 15 and source 11 id 5 to the same value
	rest := c.PrefixFormat[strings.Index(c.PrefixFormat, "%d")+2:]
	if rest == "" || (rest[0] >= '0' && rest[0] <= '9') {
		return errors.New("prefix format needs a non-digit separator after %d: " + c.PrefixFormat)
	}

	switch RefMatchMode(c.RefMatch) {
	case RefMatchAllowList, RefMatchSuffix:
	default:
		return errors.New("invalid reference match mode: " + c.RefMatch)
	}

	if c.TemplateCacheSize < 0 {
		return errors.New("template cache size cannot be negative")
	}

	if c.TemplateCacheTTL < 0 {
		return errors.New("template cache TTL cannot be negative")
	}

	return nil
}

// Prefix returns the namespace prefix of the source at the 0-based index i.
func (c *Config) Prefix(i int) string {
	return fmt.Sprintf(c.PrefixFormat, i+1)
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
