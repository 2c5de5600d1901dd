package script

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeScript(t *testing.T, root, name, body string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadGraphMinesScriptTree(t *testing.T) {
	root := t.TempDir()

	writeScript(t, root, BootScriptName, `
dofile("year_1.lua")
dofile("year_1.lua")
dofile("menu_main.lua")
dofile("system.lua")
if developer then
	load_room_code("mo.decompiled.lua")
end
`)

	writeScript(t, root, "mo.decompiled.lua", `
mo = Set:create("mo.set", "Manny's Office", { overhead = 1, closeup = 2, zoom = 1.5, label = "x" })

mo.enter = function(arg1, ...)
	start_script(office_idle)
end

mo.camerachange = function(setup)
end

mo.enter = function()
end

manny = Actor:create("manny.3do", 1, 2, "Manny")
manny = Actor:create("manny.3do", 1, 2, "Duplicate")
`)

	writeScript(t, root, "rooms/gl.decompiled.lua", `
gl.enter = function()
end
`)

	writeScript(t, root, "broken.decompiled.lua", "this is not ( lua\n")
	writeScript(t, root, "plain.lua", `other = Set:create("other.set", "Other", {})`)

	graph, err := LoadGraph(root, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"year_1.lua"}, graph.YearScripts)
	assert.Equal(t, []string{"menu_main.lua"}, graph.MenuScripts)
	assert.Equal(t, []string{"mo.decompiled.lua"}, graph.RoomScripts)

	// gl never had a Set:create call and is dropped; plain.lua is not a
	// decompiled source and is never read.
	require.Len(t, graph.Sets, 1)
	set := graph.Sets[0]
	assert.Equal(t, "mo", set.VariableName)
	assert.Equal(t, "mo.set", set.SetFile)
	assert.Equal(t, "Manny's Office", set.DisplayName)
	assert.Equal(t, "mo.decompiled.lua", set.LuaFile)

	// Non-integer and non-numeric table values are not setup slots.
	assert.Equal(t, []SetupSlot{
		{Label: "overhead", Index: 1},
		{Label: "closeup", Index: 2},
	}, set.SetupSlots)

	// The later enter definition replaced the earlier one, and methods come
	// back sorted by name.
	require.Len(t, set.Methods, 2)
	assert.Equal(t, "camerachange", set.Methods[0].Name)
	assert.Equal(t, []string{"setup"}, set.Methods[0].Parameters)
	enter := set.Methods[1]
	assert.Equal(t, "enter", enter.Name)
	assert.Empty(t, enter.Parameters)
	assert.Empty(t, enter.Body)
	assert.Equal(t, "mo.decompiled.lua", enter.DefinedIn)

	// First Actor:create for a variable wins.
	require.Len(t, graph.Actors, 1)
	assert.Equal(t, ActorMetadata{
		LuaFile:      "mo.decompiled.lua",
		VariableName: "manny",
		Label:        "Manny",
	}, graph.Actors[0])
}

func TestLoadGraphRequiresBootScript(t *testing.T) {
	_, err := LoadGraph(t.TempDir(), discardLogger())
	require.Error(t, err)
}

func TestLoadGraphNormalizesLegacySources(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, BootScriptName, `dofile("year_1.lua")`)
	// Raw decompiler output: stray %, reserved-word identifier, and a
	// Windows-1252 byte in a comment.
	writeScript(t, root, "cy.decompiled.lua",
		"-- caf\xe9\ncy = Set:create(%\"cy.set\", \"Uptown\", {})\nin = 3\ncy.exit = function() end\n")

	graph, err := LoadGraph(root, discardLogger())
	require.NoError(t, err)
	require.Len(t, graph.Sets, 1)
	assert.Equal(t, "cy.set", graph.Sets[0].SetFile)
	require.Len(t, graph.Sets[0].Methods, 1)
	assert.Equal(t, "exit", graph.Sets[0].Methods[0].Name)
}
