package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/manifest"
	"github.com/roach88/exhume/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Reconstruct a persisted run from the database",
		Long: `Load a previously persisted run and replay its ordered delta event
log. Without a run id the most recent run is replayed.

The command exits 1 when the stored events are not in replay order.

Example:
  exhume replay --db runs.db
  exhume replay --db runs.db 3f1c...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runReplay(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if runID == "" {
		record, found, err := st.LatestRun(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to find latest run", err)
		}
		if !found {
			return NewExitError(ExitCommandError, "database contains no runs")
		}
		runID = record.ID
	}

	replay, err := st.ReplayRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	if opts.Format == "json" {
		raw, err := manifest.Encode(replay)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode replay", err)
		}
		_, _ = cmd.OutOrStdout().Write(raw)
	} else {
		renderReplay(cmd, replay)
	}

	if !replay.Ordered {
		return NewExitError(ExitFailure, "stored events are out of replay order")
	}
	return nil
}

func renderReplay(cmd *cobra.Command, replay store.RunReplay) {
	out := cmd.OutOrStdout()
	record := replay.Record
	fmt.Fprintf(out, "Run %s (%s)\n", record.ID, record.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Data root: %s | default set: %s | developer mode: %t\n",
		record.DataRoot, record.DefaultSet, record.DeveloperMode)
	fmt.Fprintf(out, "Delta events (%d, in replay order):\n", len(replay.Events))
	for i, event := range replay.Events {
		fmt.Fprintf(out, "  %3d. seq %d %s/%s.%s x%d\n",
			i+1, event.TriggerSequence, event.Subsystem.Label(), event.Target, event.Method, event.Count)
	}
	if len(replay.HostEvents) > 0 {
		fmt.Fprintf(out, "Host events (%d):\n", len(replay.HostEvents))
		for _, event := range replay.HostEvents {
			fmt.Fprintf(out, "  %s\n", event)
		}
	}
}
