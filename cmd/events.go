/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gamevault/apiserver/config"
	"github.com/gamevault/apiserver/internal/events"
	"github.com/gamevault/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// eventsCmd groups commands that inspect domain events.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events on the message queue",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail [channel]",
	Short: "Print events from a channel until interrupted",
	Long: fmt.Sprintf(`Subscribes to a channel and prints each event as it arrives.
The channel defaults to %s; %s carries library changes.`, events.CatalogChannel, events.LibraryChannel),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel := events.CatalogChannel
		if len(args) == 1 {
			channel = args[0]
		}

		cfg := config.LoadConfig()
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.New(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer queue.Close()

		logger.Info(ctx, "tailing events", "channel", channel, "backend", queue.Backend())
		out := cmd.OutOrStdout()
		err = queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
			ev, err := events.Decode(msg.Data)
			if err != nil {
				logger.Warn(ctx, "skipping undecodable event", "message_id", msg.ID, "error", err)
				return nil
			}
			if ev.UserID != 0 {
				fmt.Fprintf(out, "%s %-16s game=%d user=%d\n", ev.At.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.GameID, ev.UserID)
			} else {
				fmt.Fprintf(out, "%s %-16s game=%d\n", ev.At.Format("2006-01-02T15:04:05Z07:00"), ev.Type, ev.GameID)
			}
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
