package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bft-labs/mulecore/internal/config"
	"github.com/bft-labs/mulecore/pkg/mulecore"
)

func (c *cli) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the container and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.load(cmd)
			if err != nil {
				return err
			}
			zl := config.Logger(cfg.LogLevel)
			zl.Info().Interface("config", cfg).Msg("configuration")

			var opts []mulecore.Option
			opts = append(opts, mulecore.WithRegisterer(prometheus.DefaultRegisterer))
			if cfg.WatchConfig && config.FileExists(cfg.ConfigPath) {
				opts = append(opts, mulecore.WithConfigWatcher(cfg.ConfigPath, 0))
			}

			container, err := newContainer(cfg, zl, opts...)
			if err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			if err := container.Start(); err != nil {
				_ = container.Dispose()
				return fmt.Errorf("start container: %w", err)
			}

			sig := <-sigCh
			zl.Info().Str("signal", sig.String()).Msg("received signal, stopping...")

			if err := container.Dispose(); err != nil {
				return fmt.Errorf("stop container: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&c.cfg.WatchConfig, "watch-config", c.cfg.WatchConfig, "reload queue configuration when the config file changes")
	return cmd
}
