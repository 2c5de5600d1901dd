package timeline

import (
	"strings"

	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/simulate"
)

// BootTimeline pairs the ordered boot stages with the default set's hooks.
type BootTimeline struct {
	Stages     []StageTimelineEntry `json:"stages"`
	DefaultSet *SetTimeline         `json:"default_set"`
}

// StageTimelineEntry is a boot stage with its 1-based position.
type StageTimelineEntry struct {
	Index int       `json:"index"`
	Label string    `json:"label"`
	Stage BootStage `json:"stage"`
}

// SetTimeline is the default set's hook sequence.
type SetTimeline struct {
	VariableName string              `json:"variable_name"`
	SetFile      string              `json:"set_file"`
	DisplayName  string              `json:"display_name,omitempty"`
	Hooks        []HookTimelineEntry `json:"hooks"`
}

// HookTimelineEntry is one hook with its stage placement and simulated
// effects.
type HookTimelineEntry struct {
	HookName      string                      `json:"hook_name"`
	Kind          HookKind                    `json:"kind"`
	DefinedIn     string                      `json:"defined_in"`
	DefinedAtLine int                         `json:"defined_at_line"`
	Parameters    []string                    `json:"parameters"`
	Stage         *HookStageContext           `json:"stage"`
	Simulation    simulate.FunctionSimulation `json:"simulation"`
}

// HookStageContext places a hook at a boot stage, with the labels of every
// stage that must complete first.
type HookStageContext struct {
	Index         int       `json:"index"`
	Label         string    `json:"label"`
	Stage         BootStage `json:"stage"`
	Prerequisites []string  `json:"prerequisites"`
}

// HookKind classifies the role a set method plays at runtime.
type HookKind string

const (
	HookEnter        HookKind = "Enter"
	HookExit         HookKind = "Exit"
	HookCameraChange HookKind = "CameraChange"
	HookSetup        HookKind = "Setup"
	HookOther        HookKind = "Other"
)

// Label renders the lowercase form used in reports.
func (k HookKind) Label() string {
	switch k {
	case HookEnter:
		return "enter"
	case HookExit:
		return "exit"
	case HookCameraChange:
		return "camera_change"
	case HookSetup:
		return "setup"
	default:
		return "other"
	}
}

// BuildBootTimeline lays the boot stages out in order and, when the default
// set was mined, attaches its hooks to the finalize stage.
func BuildBootTimeline(summary *BootSummary, model *BootRuntimeModel, sim *simulate.Simulator) BootTimeline {
	stages := buildStageEntries(summary)
	finalizeIndex := determineFinalizeBootStage(summary)

	return BootTimeline{
		Stages:     stages,
		DefaultSet: locateDefaultSetTimeline(summary, model, stages, finalizeIndex, sim),
	}
}

func buildStageEntries(summary *BootSummary) []StageTimelineEntry {
	entries := make([]StageTimelineEntry, 0, len(summary.Stages))
	for i, stage := range summary.Stages {
		entries = append(entries, StageTimelineEntry{
			Index: i + 1,
			Label: stage.Describe(),
			Stage: stage,
		})
	}
	return entries
}

// determineFinalizeBootStage returns the 1-based index of the FinalizeBoot
// stage for the default set, or 0 when none matches.
func determineFinalizeBootStage(summary *BootSummary) int {
	for i, stage := range summary.Stages {
		if stage.Kind == StageFinalizeBoot && strings.EqualFold(stage.Set, summary.DefaultSet) {
			return i + 1
		}
	}
	return 0
}

func locateDefaultSetTimeline(summary *BootSummary, model *BootRuntimeModel, stages []StageTimelineEntry, finalizeIndex int, sim *simulate.Simulator) *SetTimeline {
	for i := range model.Sets {
		if strings.EqualFold(model.Sets[i].SetFile, summary.DefaultSet) {
			entry := buildSetTimeline(&model.Sets[i], stages, finalizeIndex, sim)
			return &entry
		}
	}
	return nil
}

// buildSetTimeline emits the hooks in the order the engine runs them: enter
// first, then the setup functions, then camera_change.
func buildSetTimeline(set *RuntimeSet, stages []StageTimelineEntry, finalizeIndex int, sim *simulate.Simulator) SetTimeline {
	stageContext := stageContextForIndex(stages, finalizeIndex)
	var hooks []HookTimelineEntry

	if set.Hooks.Enter != nil {
		hooks = append(hooks, buildHookEntry(set.Hooks.Enter, HookEnter, stageContext, sim))
	}
	for i := range set.Hooks.SetupFunctions {
		hooks = append(hooks, buildHookEntry(&set.Hooks.SetupFunctions[i], HookSetup, stageContext, sim))
	}
	if set.Hooks.CameraChange != nil {
		hooks = append(hooks, buildHookEntry(set.Hooks.CameraChange, HookCameraChange, stageContext, sim))
	}

	return SetTimeline{
		VariableName: set.VariableName,
		SetFile:      set.SetFile,
		DisplayName:  set.DisplayName,
		Hooks:        hooks,
	}
}

func buildHookEntry(fn *script.SetFunction, kind HookKind, stage *HookStageContext, sim *simulate.Simulator) HookTimelineEntry {
	return HookTimelineEntry{
		HookName:      fn.Name,
		Kind:          kind,
		DefinedIn:     fn.DefinedIn,
		DefinedAtLine: fn.DefinedAtLine,
		Parameters:    fn.Parameters,
		Stage:         stage,
		Simulation:    sim.SetFunction(fn),
	}
}

// stageContextForIndex resolves the preferred stage, falling back to the
// last stage when the preferred index is absent.
func stageContextForIndex(stages []StageTimelineEntry, preferredIndex int) *HookStageContext {
	var entry *StageTimelineEntry
	for i := range stages {
		if preferredIndex != 0 && stages[i].Index == preferredIndex {
			entry = &stages[i]
			break
		}
	}
	if entry == nil {
		if len(stages) == 0 {
			return nil
		}
		entry = &stages[len(stages)-1]
	}

	var prerequisites []string
	for _, stage := range stages {
		if stage.Index < entry.Index {
			prerequisites = append(prerequisites, stage.Label)
		}
	}

	return &HookStageContext{
		Index:         entry.Index,
		Label:         entry.Label,
		Stage:         entry.Stage,
		Prerequisites: prerequisites,
	}
}
