package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/geometry"
)

// GeomDiffOptions holds flags for the geomdiff command.
type GeomDiffOptions struct {
	*RootOptions
	Snapshot        string
	Registry        string
	ClassifyOverlay string
}

// NewGeomDiffCommand creates the geomdiff command.
func NewGeomDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GeomDiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "geomdiff <data-root>",
		Short: "Reconcile predicted geometry against a runtime snapshot",
		Long: `Compare the statically predicted sector and visibility state against a
captured runtime snapshot.

The command exits 1 when the snapshot disagrees with the prediction, so it
can gate a capture in CI.

Example:
  exhume geomdiff ./extracted --snapshot captures/boot.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeomDiff(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "path to a runtime snapshot JSON (required)")
	_ = cmd.MarkFlagRequired("snapshot")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to registry JSON (optional)")
	cmd.Flags().StringVar(&opts.ClassifyOverlay, "classify-overlay", "", "path to a classification overlay CUE file (optional)")

	return cmd
}

func runGeomDiff(opts *GeomDiffOptions, dataRoot string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	snapshot, err := geometry.LoadSnapshot(opts.Snapshot)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	analysis, err := Analyze(dataRoot, AnalyzeOptions{
		Registry:        opts.Registry,
		ClassifyOverlay: opts.ClassifyOverlay,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	summary, err := geometry.Diff(&analysis.Timeline, analysis.Engine, snapshot, opts.Snapshot, dataRoot)
	if err != nil {
		return WrapExitError(ExitCommandError, "diff failed", err)
	}
	if summary == nil {
		return NewExitError(ExitCommandError, "no default set mined; nothing to diff")
	}

	summary.Render(cmd.OutOrStdout())
	if !summary.Clean() {
		return NewExitError(ExitFailure, "snapshot disagrees with prediction")
	}
	return nil
}
