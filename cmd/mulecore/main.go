package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/mulecore/internal/config"
	"github.com/bft-labs/mulecore/pkg/log"
	"github.com/bft-labs/mulecore/pkg/mulecore"
	"github.com/bft-labs/mulecore/pkg/queue"
)

const longHelp = `
Run a lifecycle-managed container hosting transactional queues.

Highlights:
  - Named FIFO queues with blocking, timed and transactional operations.
  - Persistent queues survive restarts; a journal rolls back interrupted transactions.
  - Prepared XA branches are kept across restarts until the coordinator completes them.
  - Configure via file, env, or flags; queue capacities reload while running.
`

var exampleUsage = strings.TrimSpace(`
  mulecore run --data-dir /var/lib/mulecore --journal
  mulecore queue put orders 'order-1'
  mulecore queue take orders --timeout 5s
  mulecore queue recover
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the configuration shared by every command.
type cli struct {
	cfg     config.Config
	cfgPath string
}

func main() {
	c := &cli{cfg: config.DefaultConfig()}
	if err := c.rootCommand().Execute(); err != nil {
		logger := config.Logger(c.cfg.LogLevel)
		logger.Error().Err(err).Msg("mulecore")
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mulecore",
		Short:         "Lifecycle-managed transactional queues",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.mulecore/config.toml)")
	flags.StringVar(&c.cfg.DataDir, "data-dir", c.cfg.DataDir, "directory for queue files and the journal (default: $HOME/.mulecore/data)")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&c.cfg.Journal, "journal", c.cfg.Journal, "journal local transactions")
	flags.BoolVar(&c.cfg.JournalSync, "journal-sync", c.cfg.JournalSync, "sync every journal record")
	flags.Int64Var(&c.cfg.MaxFileSize, "max-file-size", c.cfg.MaxFileSize, "rotation threshold of queue files in bytes")
	flags.IntVar(&c.cfg.DefaultCapacity, "default-capacity", c.cfg.DefaultCapacity, "capacity of queues without their own configuration (0 = unbounded)")
	flags.BoolVar(&c.cfg.DefaultPersistent, "default-persistent", c.cfg.DefaultPersistent, "persist queues without their own configuration")
	flags.DurationVar(&c.cfg.ShutdownTimeout, "shutdown-timeout", c.cfg.ShutdownTimeout, "how long stopping waits for blocked callers")

	root.AddCommand(c.runCommand(), c.queueCommand())
	return root
}

// load resolves the configuration: defaults, then the config file, then
// MULECORE_* variables, with explicitly set flags taking precedence.
func (c *cli) load(cmd *cobra.Command) (config.Config, error) {
	cfg := c.cfg
	cfg.ConfigPath = c.cfgPath
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = config.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfg.ConfigPath != "" && config.FileExists(cfg.ConfigPath) {
		fc, err := config.LoadFileConfig(cfg.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}

	if err := config.ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newContainer creates a container for cfg logging through zl.
func newContainer(cfg config.Config, zl zerolog.Logger, opts ...mulecore.Option) (*mulecore.Container, error) {
	libCfg := mulecore.Config{
		DataDir:         cfg.DataDir,
		Journal:         cfg.Journal,
		JournalSync:     cfg.JournalSync,
		MaxFileSize:     cfg.MaxFileSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
		DefaultQueue: queue.Configuration{
			Capacity:   cfg.DefaultCapacity,
			Persistent: cfg.DefaultPersistent,
		},
		Queues: make(map[string]queue.Configuration, len(cfg.Queues)),
	}
	for _, q := range cfg.Queues {
		libCfg.Queues[q.Name] = queue.Configuration{Capacity: q.Capacity, Persistent: q.Persistent}
	}

	opts = append([]mulecore.Option{mulecore.WithLogger(log.NewZerologAdapterWithLogger(zl))}, opts...)
	c, err := mulecore.New(libCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	return c, nil
}
