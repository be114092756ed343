package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Console    string            `mapstructure:"console"`
	MaxSize    string            `mapstructure:"max_size"`
	MaxBackups int               `mapstructure:"max_backups"`
	Components map[string]string `mapstructure:"components"`
}

// IndexConfig configures the indexer.
type IndexConfig struct {
	Workers       int           `mapstructure:"workers"`
	HashCache     bool          `mapstructure:"hash_cache"`
	HashCachePath string        `mapstructure:"hash_cache_path"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// SearchConfig configures the query layer search passes.
type SearchConfig struct {
	Limit     int           `mapstructure:"limit"`
	Threshold float64       `mapstructure:"threshold"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

// ArchiveConfig configures archive assembly.
type ArchiveConfig struct {
	BatchSize int    `mapstructure:"batch_size"`
	OutputDir string `mapstructure:"output_dir"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr    string `mapstructure:"addr"`
	Metrics bool   `mapstructure:"metrics"`
}

// S3Config configures the S3 fetch origin.
type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Config represents the application configuration.
type Config struct {
	Root         string            `mapstructure:"root"`
	Catalog      string            `mapstructure:"catalog"`
	ExcludeDirs  []string          `mapstructure:"exclude_dirs"`
	ExcludeFiles []string          `mapstructure:"exclude_files"`
	Hash         string            `mapstructure:"hash"`
	Aliases      map[string]string `mapstructure:"aliases"`
	AliasesFile  string            `mapstructure:"aliases_file"`
	Origin       string            `mapstructure:"origin"`
	Index        IndexConfig       `mapstructure:"index"`
	Search       SearchConfig      `mapstructure:"search"`
	Archive      ArchiveConfig     `mapstructure:"archive"`
	Serve        ServeConfig       `mapstructure:"serve"`
	S3           S3Config          `mapstructure:"s3"`
	Logging      LoggingConfig     `mapstructure:"logging"`
}

// CatalogPath returns the configured catalog location, defaulting to
// DefaultCatalogName under Root.
func (c *Config) CatalogPath() string {
	if c.Catalog != "" {
		return c.Catalog
	}
	return filepath.Join(c.Root, DefaultCatalogName)
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("root", DefaultRoot)
	v.SetDefault("catalog", "")
	v.SetDefault("exclude_dirs", DefaultExcludeDirs)
	v.SetDefault("exclude_files", DefaultExcludeFiles)
	v.SetDefault("hash", DefaultHash)
	v.SetDefault("aliases_file", "")
	v.SetDefault("origin", "")

	v.SetDefault("index.workers", DefaultIndexWorkers)
	v.SetDefault("index.hash_cache", false)
	v.SetDefault("index.hash_cache_path", DefaultHashCachePath())
	v.SetDefault("index.watch_debounce", DefaultWatchDebounce)

	v.SetDefault("search.limit", DefaultSearchLimit)
	v.SetDefault("search.threshold", DefaultSearchThreshold)
	v.SetDefault("search.debounce", DefaultSearchDebounce)

	v.SetDefault("archive.batch_size", DefaultArchiveBatchSize)
	v.SetDefault("archive.output_dir", ".")

	v.SetDefault("serve.addr", DefaultServeAddr)
	v.SetDefault("serve.metrics", true)

	v.SetDefault("s3.region", "us-east-1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console", "warn")
	v.SetDefault("logging.max_size", "10MB")
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.components", map[string]string{
		"indexer": "info",
		"archive": "info",
		"server":  "info",
		"watcher": "info",
		"tui":     "info",
	})
}

// Configure points v at the standard config locations and env prefix.
// An explicit file overrides the search path.
func Configure(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
	}
	v.SetEnvPrefix("FWINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Read reads the config file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper decodes v into a Config and expands ~ in path settings.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Root, &cfg.Catalog, &cfg.AliasesFile, &cfg.Index.HashCachePath, &cfg.Archive.OutputDir, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

// Load builds a Config from the default file locations, environment, and
// defaults.
func Load() (*Config, error) {
	v := viper.New()
	Configure(v, "")
	if err := Read(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ConfigDir returns $XDG_CONFIG_HOME/fwindex, falling back to
// ~/.config/fwindex.
func ConfigDir() string {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "fwindex")
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "fwindex")
	}
	return filepath.Join(xdg.ConfigHome, "fwindex")
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// CacheDir returns $XDG_CACHE_HOME/fwindex.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "fwindex")
}

// DefaultHashCachePath returns the default badger directory for the hash cache.
func DefaultHashCachePath() string {
	return filepath.Join(CacheDir(), "hashes")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config file if none exists and
// returns its path.
func WriteDefault() (string, error) {
	path := ConfigFile()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(ConfigDir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# fwindex configuration

# Tree to index and serve
root: %s

# Catalog location (empty means <root>/%s)
catalog: ""

# Root-level exclusions (directories are glob patterns, files exact names)
exclude_dirs:
%s
exclude_files:
%s

# Content digest: sha256 or blake2b
hash: %s

# Alternate device spellings -> canonical device directory
aliases: {}
aliases_file: ""

# Remote origin for archive fetches (http(s) URL or s3://bucket/prefix)
origin: ""

index:
  workers: %d
  hash_cache: false
  watch_debounce: %s

search:
  limit: %d
  threshold: %g
  debounce: %s

archive:
  batch_size: %d
  output_dir: "."

serve:
  addr: %s
  metrics: true

logging:
  level: info
  path: ""
  console: warn
  max_size: 10MB
  max_backups: 5
`, DefaultRoot, DefaultCatalogName, yamlList(DefaultExcludeDirs), yamlList(DefaultExcludeFiles),
		DefaultHash, DefaultIndexWorkers, DefaultWatchDebounce, DefaultSearchLimit, DefaultSearchThreshold,
		DefaultSearchDebounce, DefaultArchiveBatchSize, DefaultServeAddr)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return path, nil
}

func yamlList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  - %q", item)
	}
	return b.String()
}
