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

// Root describes one configured scan root.
type Root struct {
	// Path is the absolute directory to scan.
	Path string `mapstructure:"path"`

	// MaxDepth bounds traversal depth relative to Path (the root itself
	// is depth 0). Zero means unbounded.
	MaxDepth int `mapstructure:"max_depth"`

	// Exclude lists directory names skipped within this root, in
	// addition to the global scan exclusions.
	Exclude []string `mapstructure:"exclude"`
}

// ScanConfig configures the scan stage.
type ScanConfig struct {
	Roots   []Root   `mapstructure:"roots"`
	MinSize string   `mapstructure:"min_size"`
	Exclude []string `mapstructure:"exclude"`
	Workers int      `mapstructure:"workers"` // 0 = auto
	Report  string   `mapstructure:"report"`  // empty = DefaultReportPath
	Cache   bool     `mapstructure:"cache"`
}

// MigrateConfig configures the migrate stage.
type MigrateConfig struct {
	Target         string        `mapstructure:"target"`
	Staging        string        `mapstructure:"staging"` // empty = <target>/.offload-staging
	Mapping        string        `mapstructure:"mapping"` // empty = DefaultMappingPath
	Workers        int           `mapstructure:"workers"` // 0 = monitor budget
	CPULimit       float64       `mapstructure:"cpu_limit"`
	MemoryLimit    float64       `mapstructure:"memory_limit"`
	ChunkSize      string        `mapstructure:"chunk_size"`
	ChunkThreshold string        `mapstructure:"chunk_threshold"`
	ThrottleWait   time.Duration `mapstructure:"throttle_wait"`
}

// CleanConfig configures the clean stage.
type CleanConfig struct {
	Retries       int           `mapstructure:"retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	ForceUnlock   bool          `mapstructure:"force_unlock"`
}

// LinkConfig configures the link stage.
type LinkConfig struct {
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"`
	Migrate MigrateConfig `mapstructure:"migrate"`
	Clean   CleanConfig   `mapstructure:"clean"`
	Link    LinkConfig    `mapstructure:"link"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  struct {
		Format string `mapstructure:"format"`
	} `mapstructure:"output"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/offload/config.yaml
//   - $HOME/.config/offload/config.yaml
//
// Environment variables are prefixed with OFFLOAD_
// (e.g., OFFLOAD_MIGRATE_TARGET).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "offload"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "offload"))

	v.SetEnvPrefix("OFFLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand ~ in paths that commonly carry it
	for i := range cfg.Scan.Roots {
		cfg.Scan.Roots[i].Path, err = ExpandPath(cfg.Scan.Roots[i].Path)
		if err != nil {
			return nil, err
		}
	}
	cfg.Migrate.Target, err = ExpandPath(cfg.Migrate.Target)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SetDefaults registers the default value for every configuration key on v.
// The CLI calls this on its own viper instance so flag bindings and the
// config file share one set of defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("scan.roots", []Root{})
	v.SetDefault("scan.min_size", DefaultMinSize)
	v.SetDefault("scan.exclude", DefaultExclusions)
	v.SetDefault("scan.workers", 0)
	v.SetDefault("scan.report", "")
	v.SetDefault("scan.cache", false)

	v.SetDefault("migrate.target", "")
	v.SetDefault("migrate.staging", "")
	v.SetDefault("migrate.mapping", "")
	v.SetDefault("migrate.workers", 0)
	v.SetDefault("migrate.cpu_limit", DefaultCPULimit)
	v.SetDefault("migrate.memory_limit", DefaultMemoryLimit)
	v.SetDefault("migrate.chunk_size", DefaultChunkSize)
	v.SetDefault("migrate.chunk_threshold", DefaultChunkThreshold)
	v.SetDefault("migrate.throttle_wait", "5s")

	v.SetDefault("clean.retries", DefaultRetries)
	v.SetDefault("clean.retry_interval", DefaultRetryInterval.String())
	v.SetDefault("clean.force_unlock", true)

	v.SetDefault("link.check_timeout", DefaultCheckTimeout.String())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"scanner":  "info",
		"migrator": "info",
		"monitor":  "warn",
		"cleaner":  "info",
		"linker":   "info",
	})

	v.SetDefault("output.format", "pretty")
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "offload"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "offload"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		// Config file exists, do nothing
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Offload Migration Pipeline Configuration

# Scan stage: where to look for oversized items
scan:
  # Roots to scan. Each may carry its own depth bound and exclusions.
  roots: []
  #  - path: /var/lib/big
  #    max_depth: 3
  #    exclude:
  #      - node_modules

  # Minimum size for a migration candidate
  min_size: %s

  # Directory names excluded from every root
  exclude:
    - lost+found

  # Scan worker count (0 = automatic)
  workers: 0

  # Scan report path (empty means use default: %s)
  report: ""

  # Cache directory sizes between scans
  cache: false

# Migrate stage: where the data goes
migrate:
  # Destination volume root (required)
  target: ""
  # Staging directory for archives (empty means <target>/%s)
  staging: ""
  # Path mapping artifact (empty means use default: %s)
  mapping: ""
  # Worker count (0 = derive from resource budget)
  workers: 0
  # Resource ceilings, fractions of total capacity
  cpu_limit: %.2f
  memory_limit: %.2f
  # Chunked copy tuning
  chunk_size: %s
  chunk_threshold: %s
  # Bounded wait before submitting work while throttled
  throttle_wait: 5s

# Clean stage: deleting migrated sources
clean:
  retries: %d
  retry_interval: %s
  # Force-terminate processes holding locks on delete targets
  force_unlock: true

# Link stage: symlink verification bound
link:
  check_timeout: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means use default: $XDG_STATE_HOME/offload/offload.log)
  path: ""
  # Log rotation settings
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    scanner: info
    migrator: info
    monitor: warn
    cleaner: info
    linker: info

# Output format: pretty, plain, json
output:
  format: pretty
`, DefaultMinSize, DefaultReportPath(), DefaultStagingName, DefaultMappingPath(),
		DefaultCPULimit, DefaultMemoryLimit, DefaultChunkSize, DefaultChunkThreshold,
		DefaultRetries, DefaultRetryInterval, DefaultCheckTimeout)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ in a path to the user's home directory.
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

// StateDir returns $XDG_STATE_HOME/offload/ for logs and stage artifacts.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "offload")
}

// CacheDir returns $XDG_CACHE_HOME/offload/ for the scan size cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "offload")
}

// DefaultReportPath returns the default scan report artifact path.
func DefaultReportPath() string {
	return filepath.Join(StateDir(), "scan.json")
}

// DefaultMappingPath returns the default path mapping artifact path.
func DefaultMappingPath() string {
	return filepath.Join(StateDir(), "mapping.json")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "offload.log")
}

// EnsureStateDir creates the state directory if it doesn't exist.
func EnsureStateDir() error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// EnsureCacheDir creates the cache directory if it doesn't exist.
func EnsureCacheDir() error {
	if err := os.MkdirAll(CacheDir(), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	return nil
}
