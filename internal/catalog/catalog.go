// Package catalog flattens the mined resource graph into a queryable
// inventory and derives the coverage key universe a live capture is
// expected to touch.
package catalog

import (
	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/timeline"
)

// StateCatalog is the full inventory of one data root.
type StateCatalog struct {
	DataRoot string          `json:"data_root"`
	Summary  CatalogSummary  `json:"summary"`
	Scripts  CatalogScripts  `json:"scripts"`
	Actors   []CatalogActor  `json:"actors"`
	Sets     []CatalogSet    `json:"sets"`
	Coverage CatalogCoverage `json:"coverage"`
}

// CatalogSummary tallies the catalog's top-level sections.
type CatalogSummary struct {
	TotalYearScripts int `json:"total_year_scripts"`
	TotalMenuScripts int `json:"total_menu_scripts"`
	TotalRoomScripts int `json:"total_room_scripts"`
	TotalSets        int `json:"total_sets"`
	TotalActors      int `json:"total_actors"`
}

// CatalogScripts lists the boot script categories in declaration order.
type CatalogScripts struct {
	Years []string `json:"years"`
	Menus []string `json:"menus"`
	Rooms []string `json:"rooms"`
}

// CatalogActor is one mined character entity.
type CatalogActor struct {
	VariableName string `json:"variable_name"`
	Label        string `json:"label"`
	LuaFile      string `json:"lua_file"`
}

// CatalogSet is one mined location with its classified hooks.
type CatalogSet struct {
	VariableName string             `json:"variable_name"`
	SetFile      string             `json:"set_file"`
	LuaFile      string             `json:"lua_file,omitempty"`
	DisplayName  string             `json:"display_name,omitempty"`
	SetupSlots   []CatalogSetupSlot `json:"setup_slots"`
	Hooks        CatalogSetHooks    `json:"hooks"`
}

// CatalogSetupSlot is a named camera/background configuration index.
type CatalogSetupSlot struct {
	Label string `json:"label"`
	Index int64  `json:"index"`
}

// CatalogSetHooks groups a set's methods by engine role.
type CatalogSetHooks struct {
	Enter        *CatalogFunction  `json:"enter"`
	Exit         *CatalogFunction  `json:"exit"`
	CameraChange *CatalogFunction  `json:"camera_change"`
	Setup        []CatalogFunction `json:"setup"`
	Other        []CatalogFunction `json:"other"`
}

// CatalogFunction is a hook signature without its parsed body.
type CatalogFunction struct {
	Name          string   `json:"name"`
	DefinedIn     string   `json:"defined_in"`
	DefinedAtLine int      `json:"defined_at_line,omitempty"`
	Parameters    []string `json:"parameters"`
}

// CatalogCoverage is the key universe a capture should touch.
type CatalogCoverage struct {
	Keys []string `json:"keys"`
}

// Build flattens the resource graph and runtime model into a catalog.
// Sets follow the runtime model's order; setup slots and lua files come
// from the graph metadata when the set was mined there.
func Build(dataRoot string, resources *script.ResourceGraph, model *timeline.BootRuntimeModel) *StateCatalog {
	catalog := &StateCatalog{
		DataRoot: dataRoot,
		Summary: CatalogSummary{
			TotalYearScripts: len(resources.YearScripts),
			TotalMenuScripts: len(resources.MenuScripts),
			TotalRoomScripts: len(resources.RoomScripts),
			TotalSets:        len(resources.Sets),
			TotalActors:      len(resources.Actors),
		},
		Scripts: CatalogScripts{
			Years: scriptList(resources.YearScripts),
			Menus: scriptList(resources.MenuScripts),
			Rooms: scriptList(resources.RoomScripts),
		},
		Actors: []CatalogActor{},
		Sets:   []CatalogSet{},
	}

	for _, actor := range resources.Actors {
		catalog.Actors = append(catalog.Actors, CatalogActor{
			VariableName: actor.VariableName,
			Label:        actor.Label,
			LuaFile:      actor.LuaFile,
		})
	}

	metadataByVariable := make(map[string]script.SetMetadata, len(resources.Sets))
	for _, set := range resources.Sets {
		metadataByVariable[set.VariableName] = set
	}

	for _, runtimeSet := range model.Sets {
		entry := CatalogSet{
			VariableName: runtimeSet.VariableName,
			SetFile:      runtimeSet.SetFile,
			DisplayName:  runtimeSet.DisplayName,
			SetupSlots:   []CatalogSetupSlot{},
			Hooks:        buildSetHooks(runtimeSet.Hooks),
		}
		if metadata, ok := metadataByVariable[runtimeSet.VariableName]; ok {
			entry.LuaFile = metadata.LuaFile
			for _, slot := range metadata.SetupSlots {
				entry.SetupSlots = append(entry.SetupSlots, CatalogSetupSlot{
					Label: slot.Label,
					Index: slot.Index,
				})
			}
		}
		catalog.Sets = append(catalog.Sets, entry)
	}

	catalog.Coverage = buildCoverage(catalog)
	return catalog
}

func buildSetHooks(hooks timeline.SetHooks) CatalogSetHooks {
	out := CatalogSetHooks{
		Enter:        catalogFunction(hooks.Enter),
		Exit:         catalogFunction(hooks.Exit),
		CameraChange: catalogFunction(hooks.CameraChange),
		Setup:        []CatalogFunction{},
		Other:        []CatalogFunction{},
	}
	for _, fn := range hooks.SetupFunctions {
		out.Setup = append(out.Setup, *catalogFunction(&fn))
	}
	for _, fn := range hooks.OtherMethods {
		out.Other = append(out.Other, *catalogFunction(&fn))
	}
	return out
}

func catalogFunction(fn *script.SetFunction) *CatalogFunction {
	if fn == nil {
		return nil
	}
	parameters := fn.Parameters
	if parameters == nil {
		parameters = []string{}
	}
	return &CatalogFunction{
		Name:          fn.Name,
		DefinedIn:     fn.DefinedIn,
		DefinedAtLine: fn.DefinedAtLine,
		Parameters:    parameters,
	}
}

// buildCoverage derives the expected coverage key universe:
// set:<variable>, actor:<variable>, and script:<category>:<name>.
func buildCoverage(catalog *StateCatalog) CatalogCoverage {
	keys := []string{}
	for _, set := range catalog.Sets {
		keys = append(keys, "set:"+set.VariableName)
	}
	for _, actor := range catalog.Actors {
		keys = append(keys, "actor:"+actor.VariableName)
	}
	for _, name := range catalog.Scripts.Years {
		keys = append(keys, "script:year:"+name)
	}
	for _, name := range catalog.Scripts.Menus {
		keys = append(keys, "script:menu:"+name)
	}
	for _, name := range catalog.Scripts.Rooms {
		keys = append(keys, "script:room:"+name)
	}
	return CatalogCoverage{Keys: keys}
}

func scriptList(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
