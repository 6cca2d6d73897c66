package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	DataDir           string        `toml:"data_dir"`
	LogLevel          string        `toml:"log_level"`
	Journal           *bool         `toml:"journal"`
	JournalSync       *bool         `toml:"journal_sync"`
	MaxFileSize       int64         `toml:"max_file_size"`
	DefaultCapacity   int           `toml:"default_capacity"`
	DefaultPersistent *bool         `toml:"default_persistent"`
	ShutdownTimeout   string        `toml:"shutdown_timeout"`
	WatchConfig       *bool         `toml:"watch_config"`
	Queues            []QueueConfig `toml:"queue"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// WriteFileConfig writes fc to path as TOML.
func WriteFileConfig(path string, fc FileConfig) error {
	b, err := toml.Marshal(fc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// DefaultConfigPath returns ~/.mulecore/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".mulecore", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). Queues
// listed in the file replace the configured ones.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setInt64("max-file-size", fc.MaxFileSize, &cfg.MaxFileSize)
	s.setInt("default-capacity", fc.DefaultCapacity, &cfg.DefaultCapacity)

	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBool("journal", fc.Journal, &cfg.Journal)
	s.setBool("journal-sync", fc.JournalSync, &cfg.JournalSync)
	s.setBool("default-persistent", fc.DefaultPersistent, &cfg.DefaultPersistent)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	if len(fc.Queues) > 0 {
		cfg.Queues = append([]QueueConfig(nil), fc.Queues...)
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
