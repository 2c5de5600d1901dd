package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/exhume/internal/catalog"
	"github.com/roach88/exhume/internal/manifest"
)

// CoverageOptions holds flags for the coverage command.
type CoverageOptions struct {
	*RootOptions
	Counts          string
	CatalogOutput   string
	Registry        string
	ClassifyOverlay string
}

// NewCoverageCommand creates the coverage command.
func NewCoverageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CoverageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "coverage <data-root>",
		Short: "Compare observed coverage counts against the state catalog",
		Long: `Build the state catalog for a data root and, when a counts file is
given, compare it against observed coverage counts.

Without --counts the command emits the catalog itself as JSON. With
--counts it reports missing, unexpected, and covered keys, and exits 1
when coverage is incomplete.

Example:
  exhume coverage ./extracted
  exhume coverage ./extracted --counts captures/coverage.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoverage(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Counts, "counts", "", "path to an observed coverage counts JSON")
	cmd.Flags().StringVar(&opts.CatalogOutput, "catalog-output", "", "write the catalog JSON to a file")
	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to registry JSON (optional)")
	cmd.Flags().StringVar(&opts.ClassifyOverlay, "classify-overlay", "", "path to a classification overlay CUE file (optional)")

	return cmd
}

func runCoverage(opts *CoverageOptions, dataRoot string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	analysis, err := Analyze(dataRoot, AnalyzeOptions{
		Registry:        opts.Registry,
		ClassifyOverlay: opts.ClassifyOverlay,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	stateCatalog := catalog.Build(dataRoot, analysis.Resources, analysis.Model)

	if opts.CatalogOutput != "" {
		if err := manifest.WriteFile(opts.CatalogOutput, stateCatalog); err != nil {
			return WrapExitError(ExitCommandError, "failed to write catalog", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote state catalog to %s\n", opts.CatalogOutput)
	}

	if opts.Counts == "" {
		if opts.CatalogOutput != "" {
			return nil
		}
		raw, err := manifest.Encode(stateCatalog)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to encode catalog", err)
		}
		_, _ = cmd.OutOrStdout().Write(raw)
		return nil
	}

	counts, err := catalog.LoadCoverageCounts(opts.Counts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load coverage counts", err)
	}

	comparison := catalog.Compare(stateCatalog.Coverage, counts)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Format == "json" {
		if err := formatter.Success(comparison); err != nil {
			return WrapExitError(ExitFailure, "failed to encode comparison", err)
		}
	} else {
		renderComparison(cmd, comparison)
	}

	if !comparison.Clean() {
		return NewExitError(ExitFailure, "coverage is incomplete")
	}
	return nil
}

func renderComparison(cmd *cobra.Command, comparison catalog.CoverageComparison) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Covered: %d | missing: %d | unexpected: %d\n",
		len(comparison.Covered), len(comparison.Missing), len(comparison.Unexpected))
	for _, key := range comparison.Missing {
		fmt.Fprintf(out, "  missing    %s\n", key)
	}
	for _, key := range comparison.Unexpected {
		fmt.Fprintf(out, "  unexpected %s\n", key)
	}
}
