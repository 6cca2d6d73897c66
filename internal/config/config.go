package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultLogLevel        = "info"
	DefaultMaxFileSize     = 1 << 20
	DefaultShutdownTimeout = 30 * time.Second
)

var (
	ErrNoDataDir        = errors.New("config: data-dir is required")
	ErrEmptyQueueName   = errors.New("config: queue name is required")
	ErrDuplicateQueue   = errors.New("config: duplicate queue")
	ErrNegativeCapacity = errors.New("config: capacity must not be negative")
)

// Config holds CLI configuration for mulecore.
type Config struct {
	ConfigPath string

	DataDir  string
	LogLevel string

	Journal     bool
	JournalSync bool
	MaxFileSize int64

	DefaultCapacity   int
	DefaultPersistent bool

	ShutdownTimeout time.Duration
	WatchConfig     bool

	Queues []QueueConfig
}

// QueueConfig configures one named queue.
type QueueConfig struct {
	Name       string `toml:"name"`
	Capacity   int    `toml:"capacity"`
	Persistent bool   `toml:"persistent"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// DefaultDataDir returns ~/.mulecore/data, or "" when there is no home directory.
func DefaultDataDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".mulecore", "data")
	}
	return ""
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("config: max file size must be positive, got %d", c.MaxFileSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if c.DefaultCapacity < 0 {
		return ErrNegativeCapacity
	}

	seen := make(map[string]bool, len(c.Queues))
	for _, q := range c.Queues {
		if q.Name == "" {
			return ErrEmptyQueueName
		}
		if seen[q.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateQueue, q.Name)
		}
		seen[q.Name] = true
		if q.Capacity < 0 {
			return fmt.Errorf("queue %s: %w", q.Name, ErrNegativeCapacity)
		}
	}
	return nil
}

// configSetter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
