package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/registry"
	"github.com/roach88/exhume/internal/script"
	"github.com/roach88/exhume/internal/simulate"
)

func testGraph() *script.ResourceGraph {
	return &script.ResourceGraph{
		YearScripts: []string{"year_1.lua", "year_2.lua"},
		MenuScripts: []string{"menu_main.lua"},
		RoomScripts: []string{"mo.decompiled.lua"},
		Sets: []script.SetMetadata{
			{
				LuaFile:      "mo.decompiled.lua",
				VariableName: "mo",
				SetFile:      "MO.SET",
				DisplayName:  "Manny's Office",
				Methods: []script.SetFunction{
					{Name: "camerachange", DefinedAtLine: 40, DefinedIn: "mo.decompiled.lua"},
					{Name: "enter", DefinedAtLine: 10, DefinedIn: "mo.decompiled.lua"},
					{Name: "exit", DefinedAtLine: 20, DefinedIn: "mo.decompiled.lua"},
					{Name: "set_up_desk", DefinedAtLine: 60, DefinedIn: "mo.decompiled.lua"},
					{Name: "set_up_balloon", DefinedAtLine: 50, DefinedIn: "mo.decompiled.lua"},
					{Name: "update_tube", DefinedAtLine: 70, DefinedIn: "mo.decompiled.lua"},
				},
			},
		},
	}
}

func testSimulator(t *testing.T) *simulate.Simulator {
	t.Helper()
	tables, err := classify.Load()
	require.NoError(t, err)
	return simulate.NewSimulator(tables)
}

func TestRunBootPipelineFreshGame(t *testing.T) {
	reg := registry.New()
	reg.WriteString("good_times", "PL")

	summary := RunBootPipeline(reg, BootRequest{}, testGraph())

	assert.True(t, summary.DeveloperMode)
	assert.True(t, summary.PLMode)
	assert.Equal(t, "mo.set", summary.DefaultSet)
	assert.Nil(t, summary.ResumeSaveSlot)
	assert.Equal(t, ResourceCounts{Years: 2, Menus: 1, Rooms: 1}, summary.ResourceCounts)

	kinds := make([]StageKind, 0, len(summary.Stages))
	for _, stage := range summary.Stages {
		kinds = append(kinds, stage.Kind)
	}
	assert.Equal(t, []StageKind{
		StageInitializeFonts,
		StagePreloadCursors,
		StageInitPreferences,
		StageEnableControls,
		StageDetermineDefaultSet,
		StageLoadAchievements,
		StageShowLogo,
		StageLoadContent,
		StageFinalizeBoot,
		StageStartIntroCutscene,
	}, kinds)

	// A fresh boot records where the game started.
	lastSet, ok := reg.ReadString("GrimLastSet")
	require.True(t, ok)
	assert.Equal(t, "mo.set", lastSet)
}

func TestRunBootPipelineResume(t *testing.T) {
	reg := registry.New()
	reg.WriteInt("LastSavedGame", 3)

	summary := RunBootPipeline(reg, BootRequest{ResumeSave: true}, testGraph())

	require.NotNil(t, summary.ResumeSaveSlot)
	assert.Equal(t, int64(3), *summary.ResumeSaveSlot)

	var resumed, intro bool
	for _, stage := range summary.Stages {
		switch stage.Kind {
		case StageResumeSave:
			resumed = true
			require.NotNil(t, stage.Slot)
			assert.Equal(t, "Resume from save slot 3", stage.Describe())
		case StageStartIntroCutscene:
			intro = true
		}
	}
	assert.True(t, resumed)
	assert.False(t, intro)

	// Resuming must not clobber the stored set.
	_, ok := reg.ReadString("GrimLastSet")
	assert.False(t, ok)
}

func TestBuildRuntimeModelClassifiesHooks(t *testing.T) {
	model := BuildRuntimeModel(testGraph())
	require.Len(t, model.Sets, 1)
	hooks := model.Sets[0].Hooks

	require.NotNil(t, hooks.Enter)
	assert.Equal(t, "enter", hooks.Enter.Name)
	require.NotNil(t, hooks.Exit)
	require.NotNil(t, hooks.CameraChange)

	require.Len(t, hooks.SetupFunctions, 2)
	assert.Equal(t, "set_up_balloon", hooks.SetupFunctions[0].Name)
	assert.Equal(t, "set_up_desk", hooks.SetupFunctions[1].Name)

	require.Len(t, hooks.OtherMethods, 1)
	assert.Equal(t, "update_tube", hooks.OtherMethods[0].Name)
}

func TestBuildBootTimelinePlacesHooksAtFinalizeStage(t *testing.T) {
	reg := registry.New()
	graph := testGraph()
	summary := RunBootPipeline(reg, BootRequest{}, graph)
	model := BuildRuntimeModel(graph)

	built := BuildBootTimeline(&summary, model, testSimulator(t))

	require.Len(t, built.Stages, 10)
	assert.Equal(t, 1, built.Stages[0].Index)
	assert.Equal(t, "Load system fonts", built.Stages[0].Label)

	// The set file comparison is case-insensitive: MO.SET matches mo.set.
	require.NotNil(t, built.DefaultSet)
	assert.Equal(t, "mo", built.DefaultSet.VariableName)

	require.Len(t, built.DefaultSet.Hooks, 4)
	assert.Equal(t, HookEnter, built.DefaultSet.Hooks[0].Kind)
	assert.Equal(t, HookSetup, built.DefaultSet.Hooks[1].Kind)
	assert.Equal(t, "set_up_balloon", built.DefaultSet.Hooks[1].HookName)
	assert.Equal(t, HookSetup, built.DefaultSet.Hooks[2].Kind)
	assert.Equal(t, HookCameraChange, built.DefaultSet.Hooks[3].Kind)

	stage := built.DefaultSet.Hooks[0].Stage
	require.NotNil(t, stage)
	assert.Equal(t, 9, stage.Index)
	assert.Equal(t, StageFinalizeBoot, stage.Stage.Kind)
	assert.Equal(t, "Finalize boot inside mo.set", stage.Label)
	require.Len(t, stage.Prerequisites, 8)
	assert.Equal(t, "Load system fonts", stage.Prerequisites[0])
	assert.Equal(t, "Load year, menu, and room scripts", stage.Prerequisites[7])
}

func TestBuildBootTimelineWithoutMinedDefaultSet(t *testing.T) {
	reg := registry.New()
	graph := &script.ResourceGraph{}
	summary := RunBootPipeline(reg, BootRequest{}, graph)

	built := BuildBootTimeline(&summary, &BootRuntimeModel{}, testSimulator(t))
	assert.Nil(t, built.DefaultSet)
}

func TestHookKindLabels(t *testing.T) {
	assert.Equal(t, "enter", HookEnter.Label())
	assert.Equal(t, "camera_change", HookCameraChange.Label())
	assert.Equal(t, "other", HookOther.Label())
}
