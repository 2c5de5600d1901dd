package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/registry"
	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/simulate"
	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// AnalyzeOptions selects the inputs for a static boot analysis.
type AnalyzeOptions struct {
	// Registry is an optional path to a registry JSON file. Missing files
	// behave like an empty registry.
	Registry string
	// ClassifyOverlay is an optional path to a YAML overlay appended to the
	// built-in classification tables.
	ClassifyOverlay string
	// ResumeSave replays the boot as if a saved game were being resumed.
	ResumeSave bool
	// Logger receives graph-loading diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Analysis is the full static pipeline output for one data root.
type Analysis struct {
	Resources *script.ResourceGraph
	Summary   timeline.BootSummary
	Model     *timeline.BootRuntimeModel
	Timeline  timeline.BootTimeline
	Engine    *state.EngineState
}

// Analyze runs the static pipeline end to end: mine the resource graph,
// replay the boot decisions against the registry, classify and simulate the
// default set's hooks, and reduce the timeline into engine state.
func Analyze(dataRoot string, opts AnalyzeOptions) (*Analysis, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resources, err := script.LoadGraph(dataRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("loading resource graph from %s: %w", dataRoot, err)
	}

	reg, err := registry.Open(opts.Registry)
	if err != nil {
		return nil, err
	}

	tables, err := loadClassifyTables(opts.ClassifyOverlay)
	if err != nil {
		return nil, err
	}

	summary := timeline.RunBootPipeline(reg, timeline.BootRequest{ResumeSave: opts.ResumeSave}, resources)
	model := timeline.BuildRuntimeModel(resources)
	sim := simulate.NewSimulator(tables)
	boot := timeline.BuildBootTimeline(&summary, model, sim)
	engine := state.FromTimeline(&boot)

	return &Analysis{
		Resources: resources,
		Summary:   summary,
		Model:     model,
		Timeline:  boot,
		Engine:    engine,
	}, nil
}

func loadClassifyTables(overlay string) (*classify.Table, error) {
	if overlay != "" {
		return classify.LoadOverlay(overlay)
	}
	return classify.Load()
}

// configureLogging installs the default slog handler for a command run.
// Verbose lowers the level to debug.
func configureLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
