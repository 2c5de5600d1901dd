// Package manifest serializes analysis results into their canonical JSON
// artifacts and renders the human-readable boot report.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// TimelineManifest pairs the boot timeline with the engine state derived
// from it. This is the primary machine-readable artifact.
type TimelineManifest struct {
	Timeline    *timeline.BootTimeline `json:"timeline"`
	EngineState *state.EngineState     `json:"engine_state"`
}

// SchedulerManifest exports the queued script and movie events for
// downstream consumers.
type SchedulerManifest struct {
	Scripts []state.ScriptEvent `json:"scripts"`
	Movies  []state.MovieEvent  `json:"movies"`
}

// NewSchedulerManifest snapshots the engine state's queues.
func NewSchedulerManifest(engine *state.EngineState) SchedulerManifest {
	return SchedulerManifest{
		Scripts: engine.QueuedScripts,
		Movies:  engine.QueuedMovies,
	}
}

// Encode renders any manifest as indented JSON with a trailing newline.
func Encode(manifest any) ([]byte, error) {
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(raw, '\n'), nil
}

// WriteFile encodes the manifest and writes it to path, creating parent
// directories as needed.
func WriteFile(path string, manifest any) error {
	raw, err := Encode(manifest)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing manifest to %s: %w", path, err)
	}
	return nil
}
