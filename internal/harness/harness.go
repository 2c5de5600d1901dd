// Package harness runs YAML-declared boot conformance scenarios against
// the static analysis pipeline. A scenario materializes its script tree
// into a fresh directory, replays the boot, and checks assertions on the
// resulting summary and engine state. The rendered report feeds golden
// comparison so drifts in analysis output surface as diffs.
package harness

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/manifest"
	"github.com/roach88/exhume/internal/registry"
	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/simulate"
	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// Harness executes scenarios. A zero logger defaults to slog.Default.
type Harness struct {
	logger *slog.Logger
}

// New creates a scenario harness.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{logger: logger}
}

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool
	// Failures lists the assertions that did not hold.
	Failures []string
	// Report is the rendered boot report, for golden comparison.
	Report string
	// Summary and Engine expose the analysis for further checks.
	Summary timeline.BootSummary
	Engine  *state.EngineState
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run materializes the scenario's script tree, analyzes the boot, and
// evaluates the assertions. The tree lives in a throwaway directory that is
// removed before returning.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "harness-"+scenario.Name+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating scenario root: %w", err)
	}
	defer os.RemoveAll(root)

	for name, body := range scenario.Scripts {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory for %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("writing script %s: %w", name, err)
		}
	}

	reg, err := buildRegistry(scenario.Registry)
	if err != nil {
		return nil, err
	}

	resources, err := script.LoadGraph(root, h.logger)
	if err != nil {
		return nil, fmt.Errorf("loading resource graph: %w", err)
	}
	tables, err := classify.Load()
	if err != nil {
		return nil, err
	}

	summary := timeline.RunBootPipeline(reg, timeline.BootRequest{ResumeSave: scenario.ResumeSave}, resources)
	model := timeline.BuildRuntimeModel(resources)
	sim := simulate.NewSimulator(tables)
	boot := timeline.BuildBootTimeline(&summary, model, sim)
	engine := state.FromTimeline(&boot)

	var rendered strings.Builder
	manifest.Report{Summary: summary, Timeline: &boot, Engine: engine}.Render(&rendered)

	result := &Result{
		Pass:    true,
		Report:  rendered.String(),
		Summary: summary,
		Engine:  engine,
	}
	for _, assertion := range scenario.Assertions {
		evaluate(result, assertion)
	}
	return result, nil
}

// buildRegistry converts the scenario's registry map into typed entries.
func buildRegistry(values map[string]any) (*registry.Registry, error) {
	reg := registry.New()
	for key, value := range values {
		switch v := value.(type) {
		case string:
			reg.WriteString(key, v)
		case bool:
			reg.WriteBool(key, v)
		case int:
			reg.WriteInt(key, int64(v))
		case int64:
			reg.WriteInt(key, v)
		case float64:
			reg.WriteFloat(key, v)
		case nil:
			reg.WriteNull(key)
		default:
			return nil, fmt.Errorf("registry key %q has unsupported type %T", key, value)
		}
	}
	return reg, nil
}
