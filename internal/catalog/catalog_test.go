package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/timeline"
)

func TestBuildWithEmptyGraph(t *testing.T) {
	resources := &script.ResourceGraph{}
	model := &timeline.BootRuntimeModel{}

	catalog := Build("/tmp", resources, model)

	require.Equal(t, 0, catalog.Summary.TotalSets)
	require.Empty(t, catalog.Sets)
	require.Equal(t, 0, catalog.Summary.TotalActors)
	require.Empty(t, catalog.Actors)
	require.Empty(t, catalog.Coverage.Keys)
}

func TestBuildIncludesBasicMetadata(t *testing.T) {
	resources := &script.ResourceGraph{
		YearScripts: []string{"year1.lua"},
		MenuScripts: []string{"menu.lua"},
		RoomScripts: []string{"mo.lua"},
		Sets: []script.SetMetadata{{
			LuaFile:      "mo.lua",
			VariableName: "mo",
			SetFile:      "mo.set",
			DisplayName:  "Manny's Office",
			SetupSlots:   []script.SetupSlot{{Label: "desk", Index: 1}},
		}},
		Actors: []script.ActorMetadata{{
			LuaFile:      "_actors.lua",
			VariableName: "manny",
			Label:        "Manny Calavera",
		}},
	}
	model := timeline.BuildRuntimeModel(resources)

	catalog := Build("/workspace", resources, model)

	require.Equal(t, "/workspace", catalog.DataRoot)
	require.Equal(t, 1, catalog.Summary.TotalSets)
	require.Equal(t, 1, catalog.Summary.TotalActors)
	require.Len(t, catalog.Scripts.Years, 1)
	require.Equal(t, "manny", catalog.Actors[0].VariableName)
	require.Equal(t, "mo.lua", catalog.Sets[0].LuaFile)
	require.Equal(t, "desk", catalog.Sets[0].SetupSlots[0].Label)
}

func TestBuildClassifiedHooksCarrySignatures(t *testing.T) {
	resources := &script.ResourceGraph{
		Sets: []script.SetMetadata{{
			LuaFile:      "mo.lua",
			VariableName: "mo",
			SetFile:      "mo.set",
			Methods: []script.SetFunction{
				{Name: "enter", DefinedIn: "mo.lua", DefinedAtLine: 12, Parameters: []string{"self"}},
				{Name: "set_up_desk", DefinedIn: "mo.lua", DefinedAtLine: 40},
			},
		}},
	}
	model := timeline.BuildRuntimeModel(resources)

	catalog := Build("/workspace", resources, model)

	hooks := catalog.Sets[0].Hooks
	require.NotNil(t, hooks.Enter)
	require.Equal(t, "enter", hooks.Enter.Name)
	require.Equal(t, 12, hooks.Enter.DefinedAtLine)
	require.Equal(t, []string{"self"}, hooks.Enter.Parameters)
	require.Nil(t, hooks.Exit)
	require.NotEmpty(t, hooks.Setup)
	require.NotNil(t, hooks.Setup[0].Parameters, "parameters serialize as an array even when empty")
}

func TestBuildCoverageKeyUniverse(t *testing.T) {
	resources := &script.ResourceGraph{
		YearScripts: []string{"year1.lua"},
		MenuScripts: []string{"menu.lua"},
		RoomScripts: []string{"mo.lua"},
		Sets: []script.SetMetadata{{
			VariableName: "mo",
			SetFile:      "mo.set",
		}},
		Actors: []script.ActorMetadata{{VariableName: "manny", Label: "Manny Calavera"}},
	}
	model := timeline.BuildRuntimeModel(resources)

	catalog := Build("/workspace", resources, model)

	require.Equal(t, []string{
		"set:mo",
		"actor:manny",
		"script:year:year1.lua",
		"script:menu:menu.lua",
		"script:room:mo.lua",
	}, catalog.Coverage.Keys)
}
