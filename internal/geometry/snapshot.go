// Package geometry compares live-engine geometry snapshots against the
// expectations derived from the static boot timeline. The comparison is
// diagnostic only; it never mutates engine state.
package geometry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot.schema.json
var snapshotSchema string

// Snapshot is the runtime geometry dump exported by the live engine.
type Snapshot struct {
	CurrentSet     *CurrentSetSnapshot          `json:"current_set"`
	SelectedActor  string                       `json:"selected_actor,omitempty"`
	VoiceEffect    string                       `json:"voice_effect,omitempty"`
	LoadedSets     []string                     `json:"loaded_sets"`
	CurrentSetups  map[string]SelectionSnapshot `json:"current_setups"`
	Sets           []SetSnapshot                `json:"sets"`
	Actors         map[string]ActorSnapshot     `json:"actors"`
	Objects        []ObjectSnapshot             `json:"objects"`
	VisibleObjects []VisibleObjectSnapshot      `json:"visible_objects"`
	HotlistHandles []int64                      `json:"hotlist_handles"`
	Inventory      []string                     `json:"inventory"`
	InventoryRooms []string                     `json:"inventory_rooms"`
	CutScenes      []CutSceneSnapshot           `json:"cut_scenes"`
	Events         []string                     `json:"events"`
}

// CurrentSetSnapshot names the set the runtime currently has loaded.
type CurrentSetSnapshot struct {
	SetFile      string             `json:"set_file"`
	VariableName string             `json:"variable_name"`
	DisplayName  string             `json:"display_name,omitempty"`
	Selection    *SelectionSnapshot `json:"selection"`
}

// SelectionSnapshot is a camera setup selection.
type SelectionSnapshot struct {
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
}

// SetSnapshot is one loaded set with its walk geometry.
type SetSnapshot struct {
	SetFile       string             `json:"set_file"`
	VariableName  string             `json:"variable_name,omitempty"`
	DisplayName   string             `json:"display_name,omitempty"`
	HasGeometry   bool               `json:"has_geometry"`
	CurrentSetup  *SelectionSnapshot `json:"current_setup"`
	Setups        []SetupSnapshot    `json:"setups"`
	Sectors       []SectorSnapshot   `json:"sectors"`
	ActiveSectors map[string]bool    `json:"active_sectors"`
}

// SetupSnapshot is one camera setup within a set.
type SetupSnapshot struct {
	Name     string      `json:"name"`
	Interest *[2]float64 `json:"interest"`
	Position *[2]float64 `json:"position"`
}

// SectorSnapshot is one walk/camera/hot sector.
type SectorSnapshot struct {
	ID            int          `json:"id"`
	Name          string       `json:"name"`
	Kind          string       `json:"kind"`
	DefaultActive bool         `json:"default_active"`
	Active        bool         `json:"active"`
	Vertices      [][2]float64 `json:"vertices"`
	Centroid      [2]float64   `json:"centroid"`
}

// ActorSnapshot is the runtime view of one actor.
type ActorSnapshot struct {
	Name         string                         `json:"name"`
	Costume      string                         `json:"costume,omitempty"`
	CurrentSet   string                         `json:"current_set,omitempty"`
	Position     *[3]float64                    `json:"position"`
	Rotation     *[3]float64                    `json:"rotation"`
	IsSelected   bool                           `json:"is_selected"`
	IsVisible    bool                           `json:"is_visible"`
	Handle       uint32                         `json:"handle"`
	Sectors      map[string]ActorSectorSnapshot `json:"sectors"`
	CurrentChore string                         `json:"current_chore,omitempty"`
	HeadTarget   string                         `json:"head_target,omitempty"`
	Speaking     bool                           `json:"speaking"`
}

// ActorSectorSnapshot names the sector an actor currently occupies.
type ActorSectorSnapshot struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ObjectSnapshot is one interactable object.
type ObjectSnapshot struct {
	Handle         int64                  `json:"handle"`
	Name           string                 `json:"name"`
	StringName     string                 `json:"string_name,omitempty"`
	SetFile        string                 `json:"set_file,omitempty"`
	Position       *[3]float64            `json:"position"`
	Range          float64                `json:"range"`
	Touchable      bool                   `json:"touchable"`
	Visible        bool                   `json:"visible"`
	Sectors        []ObjectSectorSnapshot `json:"sectors"`
	InActiveSector *bool                  `json:"in_active_sector"`
}

// ObjectSectorSnapshot names a sector an object overlaps.
type ObjectSectorSnapshot struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// VisibleObjectSnapshot is one entry of the runtime's visibility hotlist
// computation.
type VisibleObjectSnapshot struct {
	Handle      int64    `json:"handle"`
	Name        string   `json:"name"`
	StringName  string   `json:"string_name,omitempty"`
	DisplayName string   `json:"display_name"`
	Range       float64  `json:"range"`
	Distance    *float64 `json:"distance"`
	Angle       *float64 `json:"angle"`
	WithinRange *bool    `json:"within_range"`
	InHotlist   bool     `json:"in_hotlist"`
}

// CutSceneSnapshot is one cutscene record from the runtime.
type CutSceneSnapshot struct {
	Label      string `json:"label,omitempty"`
	SetFile    string `json:"set_file,omitempty"`
	Sector     string `json:"sector,omitempty"`
	Suppressed bool   `json:"suppressed"`
}

// LoadSnapshot reads, schema-validates, and decodes a geometry snapshot.
func LoadSnapshot(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geometry snapshot from %s: %w", path, err)
	}
	return ParseSnapshot(raw)
}

// ParseSnapshot validates raw JSON against the snapshot schema and decodes
// it.
func ParseSnapshot(raw []byte) (*Snapshot, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("snapshot.schema.json", strings.NewReader(snapshotSchema)); err != nil {
		return nil, fmt.Errorf("loading snapshot schema: %w", err)
	}
	schema, err := compiler.Compile("snapshot.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling snapshot schema: %w", err)
	}

	var document any
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, fmt.Errorf("parsing geometry snapshot JSON: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return nil, fmt.Errorf("validating geometry snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding geometry snapshot: %w", err)
	}
	return &snapshot, nil
}
