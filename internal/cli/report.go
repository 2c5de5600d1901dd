package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/manifest"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Registry          string
	ClassifyOverlay   string
	ResumeSave        bool
	SimulateScheduler bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <data-root>",
		Short: "Render the boot analysis report",
		Long: `Analyze the decompiled boot scripts and render a human-readable report.

The report covers the boot stage sequence, the default set's hook timeline,
the reduced engine state, and the globally ordered subsystem replay.

Example:
  exhume report ./extracted
  exhume report ./extracted --simulate-scheduler --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to registry JSON (optional)")
	cmd.Flags().StringVar(&opts.ClassifyOverlay, "classify-overlay", "", "path to a classification overlay CUE file (optional)")
	cmd.Flags().BoolVar(&opts.ResumeSave, "resume-save", false, "replay the boot as a saved-game resume")
	cmd.Flags().BoolVar(&opts.SimulateScheduler, "simulate-scheduler", false, "include the script scheduler drain in the report")

	return cmd
}

func runReport(opts *ReportOptions, dataRoot string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	analysis, err := Analyze(dataRoot, AnalyzeOptions{
		Registry:        opts.Registry,
		ClassifyOverlay: opts.ClassifyOverlay,
		ResumeSave:      opts.ResumeSave,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	report := manifest.Report{
		Summary:           analysis.Summary,
		Timeline:          &analysis.Timeline,
		Engine:            analysis.Engine,
		Verbose:           opts.Verbose,
		SimulateScheduler: opts.SimulateScheduler,
	}
	report.Render(cmd.OutOrStdout())
	return nil
}
