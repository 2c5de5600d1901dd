// Package testutil provides shared fixtures for tests that need a
// decompiled script tree on disk.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteScript writes one script file under root, creating directories as
// needed.
func WriteScript(t *testing.T, root, name, body string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// BootScript is the canonical boot chunk used by ScriptTree.
const BootScript = `
dofile("year_1.lua")
dofile("menu_main.lua")
load_room_code("mo.decompiled.lua")
`

// OfficeScript is the canonical room source used by ScriptTree: one set
// with an enter hook, one setup hook, and one actor.
const OfficeScript = `
mo = Set:create("mo.set", "Manny's Office", { overhead = 1, desk = 2 })

mo.enter = function(self)
	manny:setpos(0.606, 2.041, 0)
	SetActorPos(manny, 0.606, 2.041, 0)
	manny:play_chore_looping("idle")
	inventory:give_new_object("card")
	MakeSectorActive("door", "TRUE")
	start_script(office_idle)
end

mo.set_up_desk = function(self)
	self.objects.deskbox:set_object_state("open")
end

manny = Actor:create("manny.3do", 1, 2, "Manny")
`

// ScriptTree writes the canonical fixture tree into a temp directory and
// returns its root. The tree mines to one set (mo), one actor (manny),
// and one year/menu/room script each. The year and menu scripts carry
// trivial bodies so the tree also executes under the script host.
func ScriptTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	WriteScript(t, root, "_sets.decompiled.lua", BootScript)
	WriteScript(t, root, "mo.decompiled.lua", OfficeScript)
	WriteScript(t, root, "year_1.lua", "year_one_loaded = 1\n")
	WriteScript(t, root, "menu_main.lua", "main_menu_loaded = 1\n")
	return root
}
