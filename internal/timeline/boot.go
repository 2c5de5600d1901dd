// Package timeline reconstructs the engine's boot sequence as an ordered
// list of stages and attaches the default set's hooks to the stage where the
// engine would run them.
package timeline

import (
	"fmt"
	"strings"

	"github.com/roach88/exhume/internal/registry"
	"github.com/roach88/exhume/internal/script"
)

// DefaultSetFile is where a fresh game begins.
const DefaultSetFile = "mo.set"

// BootRequest selects between a fresh boot and resuming a saved game.
type BootRequest struct {
	ResumeSave bool
}

// BootSummary is the reconstructed boot outcome.
type BootSummary struct {
	DeveloperMode  bool           `json:"developer_mode"`
	PLMode         bool           `json:"pl_mode"`
	DefaultSet     string         `json:"default_set"`
	ResumeSaveSlot *int64         `json:"resume_save_slot"`
	TimeToRunIntro bool           `json:"time_to_run_intro"`
	Stages         []BootStage    `json:"stages"`
	ResourceCounts ResourceCounts `json:"resource_counts"`
}

// ResourceCounts tallies the script categories named by the boot chunk.
type ResourceCounts struct {
	Years int `json:"years"`
	Menus int `json:"menus"`
	Rooms int `json:"rooms"`
}

// StageKind identifies one step of the boot sequence.
type StageKind string

const (
	StageInitializeFonts     StageKind = "InitializeFonts"
	StagePreloadCursors      StageKind = "PreloadCursors"
	StageInitPreferences     StageKind = "InitPreferences"
	StageEnableControls      StageKind = "EnableControls"
	StageDetermineDefaultSet StageKind = "DetermineDefaultSet"
	StageLoadAchievements    StageKind = "LoadAchievements"
	StageShowLogo            StageKind = "ShowLogo"
	StageResumeSave          StageKind = "ResumeSave"
	StageLoadContent         StageKind = "LoadContent"
	StageFinalizeBoot        StageKind = "FinalizeBoot"
	StageStartIntroCutscene  StageKind = "StartIntroCutscene"
)

// BootStage is one step of the boot sequence. Set and Slot are populated
// only for the kinds that carry them.
type BootStage struct {
	Kind                  StageKind `json:"kind"`
	Set                   string    `json:"set,omitempty"`
	DeveloperShortcutUsed bool      `json:"developer_shortcut_used,omitempty"`
	Slot                  *int64    `json:"slot,omitempty"`
}

// Describe renders the human-readable stage label.
func (s BootStage) Describe() string {
	switch s.Kind {
	case StageInitializeFonts:
		return "Load system fonts"
	case StagePreloadCursors:
		return "Preload mouse cursors"
	case StageInitPreferences:
		return "Initialize system preferences"
	case StageEnableControls:
		return "Enable joystick + mouse controls"
	case StageDetermineDefaultSet:
		if s.DeveloperShortcutUsed {
			return fmt.Sprintf("Jump back to developer set %s", s.Set)
		}
		return fmt.Sprintf("Select default set %s for new game", s.Set)
	case StageLoadAchievements:
		return "Load achievement tables"
	case StageShowLogo:
		return "Queue SHOWLOGO sequence"
	case StageResumeSave:
		slot := int64(0)
		if s.Slot != nil {
			slot = *s.Slot
		}
		return fmt.Sprintf("Resume from save slot %d", slot)
	case StageLoadContent:
		return "Load year, menu, and room scripts"
	case StageFinalizeBoot:
		return fmt.Sprintf("Finalize boot inside %s", s.Set)
	case StageStartIntroCutscene:
		return "Start intro cutscene"
	}
	return string(s.Kind)
}

// RunBootPipeline replays the boot chunk's decision points against the
// registry and resource graph. The developer set shortcut is disabled in the
// shipped script, so DetermineDefaultSet always lands on DefaultSetFile.
func RunBootPipeline(reg *registry.Registry, request BootRequest, resources *script.ResourceGraph) BootSummary {
	developerFlag := false
	if value, ok := reg.ReadString("good_times"); ok {
		developerFlag = strings.EqualFold(value, "pl")
	}

	defaultSet := DefaultSetFile
	timeToRunIntro := true

	var resumeSlot *int64
	if request.ResumeSave {
		if slot, ok := reg.ReadInt("LastSavedGame"); ok {
			resumeSlot = &slot
		}
	}

	stages := []BootStage{
		{Kind: StageInitializeFonts},
		{Kind: StagePreloadCursors},
		{Kind: StageInitPreferences},
		{Kind: StageEnableControls},
		{Kind: StageDetermineDefaultSet, Set: defaultSet},
		{Kind: StageLoadAchievements},
		{Kind: StageShowLogo},
	}
	if resumeSlot != nil {
		stages = append(stages, BootStage{Kind: StageResumeSave, Slot: resumeSlot})
	}
	stages = append(stages,
		BootStage{Kind: StageLoadContent},
		BootStage{Kind: StageFinalizeBoot, Set: defaultSet},
	)
	if resumeSlot == nil && timeToRunIntro {
		stages = append(stages, BootStage{Kind: StageStartIntroCutscene})
	}

	if resumeSlot == nil {
		reg.WriteString("GrimLastSet", defaultSet)
	}

	return BootSummary{
		DeveloperMode:  developerFlag,
		PLMode:         developerFlag,
		DefaultSet:     defaultSet,
		ResumeSaveSlot: resumeSlot,
		TimeToRunIntro: timeToRunIntro,
		Stages:         stages,
		ResourceCounts: ResourceCounts{
			Years: len(resources.YearScripts),
			Menus: len(resources.MenuScripts),
			Rooms: len(resources.RoomScripts),
		},
	}
}
