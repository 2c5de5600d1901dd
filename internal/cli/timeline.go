package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/manifest"
)

// TimelineOptions holds flags for the timeline command.
type TimelineOptions struct {
	*RootOptions
	Registry        string
	ClassifyOverlay string
	ResumeSave      bool
	Output          string
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimelineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timeline <data-root>",
		Short: "Export the boot timeline manifest as JSON",
		Long: `Analyze the decompiled boot scripts and export the machine-readable
timeline manifest, pairing the boot timeline with the derived engine state.

Example:
  exhume timeline ./extracted
  exhume timeline ./extracted --output artifacts/timeline.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to registry JSON (optional)")
	cmd.Flags().StringVar(&opts.ClassifyOverlay, "classify-overlay", "", "path to a classification overlay CUE file (optional)")
	cmd.Flags().BoolVar(&opts.ResumeSave, "resume-save", false, "replay the boot as a saved-game resume")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the manifest to a file instead of stdout")

	return cmd
}

func runTimeline(opts *TimelineOptions, dataRoot string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	analysis, err := Analyze(dataRoot, AnalyzeOptions{
		Registry:        opts.Registry,
		ClassifyOverlay: opts.ClassifyOverlay,
		ResumeSave:      opts.ResumeSave,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	artifact := manifest.TimelineManifest{
		Timeline:    &analysis.Timeline,
		EngineState: analysis.Engine,
	}

	if opts.Output != "" {
		if err := manifest.WriteFile(opts.Output, artifact); err != nil {
			return WrapExitError(ExitCommandError, "failed to write manifest", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote timeline manifest to %s\n", opts.Output)
		return nil
	}

	raw, err := manifest.Encode(artifact)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode manifest", err)
	}
	_, _ = cmd.OutOrStdout().Write(raw)
	return nil
}
