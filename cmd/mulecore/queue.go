package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/mulecore/internal/config"
	"github.com/bft-labs/mulecore/pkg/queue"
)

func (c *cli) queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Operate on the persisted queues under the data directory",
		Long: "Operate on the persisted queues under the data directory. Queues " +
			"without their own configuration are treated as persistent.",
	}
	cmd.AddCommand(
		c.putCommand(),
		c.takeCommand(),
		c.peekCommand(),
		c.sizeCommand(),
		c.disposeCommand(),
		c.recoverCommand(),
	)
	return cmd
}

// withQueues starts a container for the duration of fn.
func (c *cli) withQueues(cmd *cobra.Command, fn func(qm *queue.Manager, zl zerolog.Logger) error) error {
	cfg, err := c.load(cmd)
	if err != nil {
		return err
	}
	cfg.DefaultPersistent = true
	zl := config.Logger(cfg.LogLevel)

	container, err := newContainer(cfg, zl)
	if err != nil {
		return err
	}
	if err := container.Start(); err != nil {
		_ = container.Dispose()
		return fmt.Errorf("start container: %w", err)
	}

	fnErr := fn(container.QueueManager(), zl)
	if err := container.Dispose(); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

func openQueue(qm *queue.Manager, name string) (*queue.Queue, error) {
	q, err := qm.Session().Queue(name)
	if err != nil {
		return nil, err
	}
	if !q.IsPersistent() {
		return nil, fmt.Errorf("queue %q is not persistent", name)
	}
	return q, nil
}

func (c *cli) putCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "put <queue> [item]",
		Short: "Append an item, read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var item []byte
			if len(args) == 2 {
				item = []byte(args[1])
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read item: %w", err)
				}
				item = data
			}

			return c.withQueues(cmd, func(qm *queue.Manager, _ zerolog.Logger) error {
				q, err := openQueue(qm, args[0])
				if err != nil {
					return err
				}
				ok, err := q.Offer(cmd.Context(), item, timeout)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("queue %q is full", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for room in a full queue")
	return cmd
}

func (c *cli) takeCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "take <queue>",
		Short: "Remove and print the head item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueues(cmd, func(qm *queue.Manager, _ zerolog.Logger) error {
				q, err := openQueue(qm, args[0])
				if err != nil {
					return err
				}
				item, err := q.Poll(cmd.Context(), timeout)
				if err != nil {
					return err
				}
				return printItem(cmd, args[0], item)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for an item")
	return cmd
}

func (c *cli) peekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "peek <queue>",
		Short: "Print the head item without removing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueues(cmd, func(qm *queue.Manager, _ zerolog.Logger) error {
				q, err := openQueue(qm, args[0])
				if err != nil {
					return err
				}
				item, err := q.Peek()
				if err != nil {
					return err
				}
				return printItem(cmd, args[0], item)
			})
		},
	}
}

func (c *cli) sizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "size <queue>",
		Short: "Print the number of items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueues(cmd, func(qm *queue.Manager, _ zerolog.Logger) error {
				q, err := openQueue(qm, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), q.Size())
				return err
			})
		},
	}
}

func (c *cli) disposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dispose <queue>",
		Short: "Delete a queue together with its items and store files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueues(cmd, func(qm *queue.Manager, zl zerolog.Logger) error {
				if err := qm.DisposeQueue(args[0]); err != nil {
					return err
				}
				zl.Info().Str("queue", args[0]).Msg("queue disposed")
				return nil
			})
		},
	}
}

func (c *cli) recoverCommand() *cobra.Command {
	var commit, rollback bool
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "List in-doubt XA branches, optionally completing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if commit && rollback {
				return fmt.Errorf("--commit and --rollback are mutually exclusive")
			}
			return c.withQueues(cmd, func(qm *queue.Manager, zl zerolog.Logger) error {
				res := qm.XAResource()
				xids, err := res.Recover()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, xid := range xids {
					fmt.Fprintf(out, "%d %s %s\n", xid.FormatID,
						hex.EncodeToString(xid.GlobalTransactionID),
						hex.EncodeToString(xid.BranchQualifier))

					switch {
					case commit:
						err = res.Commit(xid, false)
					case rollback:
						err = res.Rollback(xid)
					default:
						continue
					}
					if err != nil {
						return err
					}
					zl.Info().Str("xid", xid.String()).Bool("commit", commit).Msg("completed in-doubt branch")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "commit every in-doubt branch")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back every in-doubt branch")
	return cmd
}

func printItem(cmd *cobra.Command, name string, item []byte) error {
	if item == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "queue %q is empty\n", name)
		return nil
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n", item)
	return err
}
