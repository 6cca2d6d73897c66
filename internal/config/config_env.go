package config

import "os"

// ApplyEnvConfig applies configuration from environment variables (MULECORE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("data-dir", os.Getenv("MULECORE_DATA_DIR"), &cfg.DataDir)
	s.setString("log-level", os.Getenv("MULECORE_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setInt64FromString("max-file-size", os.Getenv("MULECORE_MAX_FILE_SIZE"), &cfg.MaxFileSize); err != nil {
		return err
	}
	if err := s.setIntFromString("default-capacity", os.Getenv("MULECORE_DEFAULT_CAPACITY"), &cfg.DefaultCapacity); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("MULECORE_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBoolFromString("journal", os.Getenv("MULECORE_JOURNAL"), &cfg.Journal)
	s.setBoolFromString("journal-sync", os.Getenv("MULECORE_JOURNAL_SYNC"), &cfg.JournalSync)
	s.setBoolFromString("default-persistent", os.Getenv("MULECORE_DEFAULT_PERSISTENT"), &cfg.DefaultPersistent)
	s.setBoolFromString("watch-config", os.Getenv("MULECORE_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
