package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Backland-Labs/docflow/internal/config"
	"github.com/Backland-Labs/docflow/internal/notify"
	"github.com/Backland-Labs/docflow/internal/workflow"
)

func newWatchCommand(deps *Dependencies, load func() (*config.Config, error)) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow runs published by other docflow clients",
		Long: `Follow run transitions published on Redis by docflow clients that have
notify.enabled set. Each line is labeled with the run it belongs to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if channel == "" {
				channel = cfg.Notify.Channel
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := deps.ConnectRedis(ctx, cfg.Notify.RedisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			events, err := notify.NewSubscriber(client, channel).Subscribe(ctx)
			if err != nil {
				return err
			}

			printer := newPrinter(cmd, deps)
			printer.Info("Watching %s on %s (Ctrl+C to stop)", channel, cfg.Notify.RedisAddr)
			return watchRuns(events, cmd.OutOrStdout(), deps.Color)
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Redis channel to follow (overrides notify.channel)")

	return cmd
}

// watchRuns prints one labeled line per snapshot until events closes
func watchRuns(events <-chan workflow.Snapshot, w io.Writer, useColor bool) error {
	writers := make(map[string]*PrefixWriter)

	for snap := range events {
		pw, ok := writers[snap.RunID]
		if !ok {
			pw = NewPrefixWriter(w, shortID(snap.RunID), useColor, len(writers))
			writers[snap.RunID] = pw
		}
		if _, err := fmt.Fprintln(pw, describe(snap)); err != nil {
			return err
		}
		if snap.State.Terminal() {
			delete(writers, snap.RunID)
		}
	}
	return nil
}

// describe renders a snapshot as a single line
func describe(snap workflow.Snapshot) string {
	parts := []string{snap.UpdatedAt.Local().Format("15:04:05"), string(snap.State)}
	if snap.File != "" {
		parts = append(parts, snap.File)
	}
	if snap.RemoteID != "" {
		parts = append(parts, "upload="+snap.RemoteID)
	}
	if snap.Result != nil {
		parts = append(parts, fmt.Sprintf("tasks=%d", len(snap.Result.AnalyzedTasks)))
	}
	if snap.Error != nil {
		parts = append(parts, fmt.Sprintf("%s: %s", snap.Error.Kind, snap.Error.Message))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
