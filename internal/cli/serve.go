package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/stream"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr            string
	Build           string
	Registry        string
	ClassifyOverlay string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <data-root>",
		Short: "Stream the boot analysis to a viewer over WebSocket",
		Long: `Analyze the decompiled boot scripts and publish the resulting state
updates to a single connected viewer.

Updates are held until the viewer signals readiness, and the movie
queue is offered through the movie-control backchannel.

Example:
  exhume serve ./extracted
  exhume serve ./extracted --addr :7421 --build nightly`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:7421", "listen address for the stream server")
	cmd.Flags().StringVar(&opts.Build, "build", "", "build identifier advertised in the hello frame")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to registry JSON (optional)")
	cmd.Flags().StringVar(&opts.ClassifyOverlay, "classify-overlay", "", "path to a classification overlay CUE file (optional)")

	return cmd
}

func runServe(opts *ServeOptions, dataRoot string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	analysis, err := Analyze(dataRoot, AnalyzeOptions{
		Registry:        opts.Registry,
		ClassifyOverlay: opts.ClassifyOverlay,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	server, err := stream.NewServer(stream.Options{
		Addr:   opts.Addr,
		Build:  opts.Build,
		Logger: slog.Default(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start stream server", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			slog.Error("error closing stream server", "error", closeErr)
		}
	}()

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

	fmt.Fprintf(cmd.OutOrStdout(), "Streaming on ws://%s/stream\n", server.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Waiting for viewer. Press Ctrl-C to stop.")

	for {
		if err := server.ViewerGate().WaitForReady(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("stream server stopped")
				return nil
			}
			return WrapExitError(ExitFailure, "viewer wait failed", err)
		}

		generation := server.Generation()
		slog.Info("viewer ready, publishing run", "generation", generation)
		if err := publishAnalysis(server, analysis); err != nil {
			return WrapExitError(ExitFailure, "publish failed", err)
		}

		// Serve movie controls until the viewer drops or the context ends.
		if done := pumpMovieControls(ctx, server, generation); done {
			return nil
		}
	}
}

// publishAnalysis streams the reduced engine state to the connected viewer:
// one update per delta event, then a closing update carrying the coverage
// tallies and the recovered actor transform.
func publishAnalysis(server *stream.Server, analysis *Analysis) error {
	for _, event := range analysis.Engine.SubsystemDeltaEvents {
		update := stream.StateUpdate{
			Events: []string{formatDeltaEvent(event)},
		}
		if err := server.SendStateUpdate(update); err != nil {
			return err
		}
	}

	final := stream.StateUpdate{
		ActiveSetup: analysis.Summary.DefaultSet,
		Coverage:    coverageCounters(analysis.Engine),
	}
	if manny, ok := analysis.Engine.ReplaySnapshot.Actors["manny"]; ok && manny.Transform != nil {
		if pos := manny.Transform.Position; pos != nil {
			position := [3]float64{pos.X, pos.Y, pos.Z}
			final.Position = &position
		}
		if rot := manny.Transform.Rotation; rot != nil {
			yaw := rot.Y
			final.Yaw = &yaw
		}
	}
	if err := server.SendStateUpdate(final); err != nil {
		return err
	}

	for _, movie := range analysis.Engine.QueuedMovies {
		if err := server.SendMovieStart(stream.MovieStart{Name: movie.Name}); err != nil {
			return err
		}
	}
	return nil
}

// pumpMovieControls drains the viewer backchannel. It returns true when the
// context ended and false when the viewer reconnected with a new generation.
func pumpMovieControls(ctx context.Context, server *stream.Server, generation uint64) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case control := <-server.MovieControls():
			if control.Generation != generation {
				return false
			}
			slog.Info("movie control", "action", control.Control.Action, "name", control.Control.Name)
		}
	}
}

func formatDeltaEvent(event state.SubsystemDeltaEvent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%s.%s", event.Subsystem.Label(), event.Target, event.Method)
	if len(event.Arguments) > 0 {
		fmt.Fprintf(&sb, "(%s)", strings.Join(event.Arguments, ", "))
	}
	if event.Count > 1 {
		fmt.Fprintf(&sb, " x%d", event.Count)
	}
	return sb.String()
}

func coverageCounters(engine *state.EngineState) []stream.CoverageCounter {
	totals := make(map[string]uint64)
	for _, event := range engine.SubsystemDeltaEvents {
		key := strings.ToLower(event.Subsystem.Label()) + ":" + event.Target
		totals[key] += uint64(event.Count)
	}
	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	counters := make([]stream.CoverageCounter, 0, len(keys))
	for _, key := range keys {
		counters = append(counters, stream.CoverageCounter{Key: key, Value: totals[key]})
	}
	return counters
}
