package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/config"
	"github.com/roach88/exhume/internal/host"
	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config          string
	Database        string
	Registry        string
	ClassifyOverlay string
	ResumeSave      bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <data-root>",
		Short: "Drive the boot scripts inside the sandboxed host",
		Long: `Execute the boot chunk inside the cooperative Lua host and drive the
scripts it spawns through bounded round-robin passes.

The static analysis runs first so that, with --db, the run's summary and
ordered delta events can be persisted alongside the host event log.

Example:
  exhume run ./extracted
  exhume run ./extracted --db runs.db --config exhume.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a config file (defaults to exhume.yaml when present)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database for run persistence")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to registry JSON (optional)")
	cmd.Flags().StringVar(&opts.ClassifyOverlay, "classify-overlay", "", "path to a classification overlay CUE file (optional)")
	cmd.Flags().BoolVar(&opts.ResumeSave, "resume-save", false, "replay the boot as a saved-game resume")

	return cmd
}

func runHost(opts *RunOptions, dataRoot string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	analysis, err := Analyze(dataRoot, AnalyzeOptions{
		Registry:        opts.Registry,
		ClassifyOverlay: opts.ClassifyOverlay,
		ResumeSave:      opts.ResumeSave,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	// Setup signal handling for graceful shutdown. Use the command's
	// context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	engineCtx, err := host.NewEngineContext(host.Options{
		DataRoot: dataRoot,
		Logger:   slog.Default(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create host", err)
	}
	defer engineCtx.Close()

	slog.Info("loading boot chunk", "script", script.BootScriptName)
	if err := engineCtx.LoadScript(script.BootScriptName); err != nil {
		return WrapExitError(ExitFailure, "boot chunk failed", err)
	}

	engineCtx.DriveActiveScripts(cfg.Host.BootPasses, cfg.Host.YieldBudget)

	out := cmd.OutOrStdout()
	events := engineCtx.Events()
	fmt.Fprintf(out, "Boot drove %d host events\n", len(events))
	for _, event := range events {
		fmt.Fprintf(out, "  %s\n", event)
	}
	for _, status := range engineCtx.PendingScripts() {
		fmt.Fprintf(out, "Still pending: %s (handle %d, %d yields)\n",
			status.Label, status.Handle, status.Yields)
	}

	if opts.Database == "" {
		return nil
	}

	slog.Info("persisting run", "db", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	record := store.NewRunRecord(dataRoot, analysis.Summary)
	if err := st.SaveRun(ctx, record, analysis.Engine.SubsystemDeltaEvents); err != nil {
		return WrapExitError(ExitFailure, "failed to persist run", err)
	}
	if err := st.WriteHostEvents(ctx, record.ID, events); err != nil {
		return WrapExitError(ExitFailure, "failed to persist host events", err)
	}
	fmt.Fprintf(out, "Persisted run %s\n", record.ID)
	return nil
}
