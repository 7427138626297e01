package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/tabcycle/config.yaml"

// Config holds all tabcycle configuration.
type Config struct {
	History    HistoryConfig    `yaml:"history"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Cycle      CycleConfig      `yaml:"cycle"`
	Registry   RegistryConfig   `yaml:"registry"`
	Activation ActivationConfig `yaml:"activation"`
	Exclusion  ExclusionConfig  `yaml:"exclusion"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	CDP        CDPConfig        `yaml:"cdp"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type HistoryConfig struct {
	Key     string `yaml:"key"`
	Backend string `yaml:"backend"`
}

// ReconcileConfig holds the thresholds that decide when a registry read is
// trusted enough to prune history.
type ReconcileConfig struct {
	MinLiveURLs     int     `yaml:"min_live_urls"`
	MinHistoryLen   int     `yaml:"min_history_len"`
	MaxRemovalRatio float64 `yaml:"max_removal_ratio"`
}

type CycleConfig struct {
	OpenDebounceMS    int `yaml:"open_debounce_ms"`
	DoublePressMS     int `yaml:"double_press_ms"`
	RetryDelayMS      int `yaml:"retry_delay_ms"`
	SwitchSettleMS    int `yaml:"switch_settle_ms"`
	RegistryTimeoutMS int `yaml:"registry_timeout_ms"`
}

type RegistryConfig struct {
	Backend           string `yaml:"backend"`
	StaleAfterSeconds int    `yaml:"stale_after_seconds"`
}

type ActivationConfig struct {
	Backend        string `yaml:"backend"`
	DeepLinkPrefix string `yaml:"deeplink_prefix"`
	Opener         string `yaml:"opener"`
}

type ExclusionConfig struct {
	Patterns []string `yaml:"patterns"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

type CDPConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

type DaemonConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// DBPath resolves the SQLite database file.
func (c *Config) DBPath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// LogPath resolves the log file. A relative logging.file lives under
// storage.path; an empty one disables file logging.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	file, err := ExpandPath(c.Logging.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(file) {
		return file, nil
	}
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file), nil
}

// DaemonAddr is the host:port the daemon listens on.
func (c *Config) DaemonAddr() string {
	return fmt.Sprintf("%s:%d", c.Daemon.Host, c.Daemon.Port)
}
