package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedTables(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, table.ObjectMethods)
	assert.NotEmpty(t, table.ActorExactMethods)
	assert.Contains(t, table.IgnoredMethods, "current_setup")
}

func TestStatefulMethodClassification(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name      string
		target    string
		method    string
		subsystem Subsystem
		stateful  bool
	}{
		{"object state", "mo.computer", "set_object_state", SubsystemObjects, true},
		{"inventory give", "Inventory", "give_new_object", SubsystemInventory, true},
		{"chore routes to interest actors", "mo.tube", "play_chore", SubsystemInterestActors, true},
		{"actor creation", "Actor", "create", SubsystemActors, true},
		{"actor exact", "manny", "say_line", SubsystemActors, true},
		{"pos method on plain target", "manny", "setpos", SubsystemObjects, true},
		{"actor substring", "glottis", "warm_up", SubsystemActors, true},
		{"object create", "Object", "create", SubsystemObjects, true},
		{"set_up defaults to objects", "mo", "set_up_desk", SubsystemObjects, true},
		{"set_up actor exception", "mo", "set_up_baster", SubsystemActors, true},
		{"ambient audio", "mo", "add_ambient_sfx", SubsystemAudio, true},
		{"achievement unlock", "achievement_table", "unlock", SubsystemProgression, true},
		{"loading menu close", "loading_menu", "close", SubsystemObjects, true},
		{"object target suffix", "mo.suitcase", "wiggle", SubsystemObjects, true},
		{"unknown method", "mo", "ponder", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			subsystem, ok := table.StatefulMethod(tc.target, tc.method)
			assert.Equal(t, tc.stateful, ok)
			if tc.stateful {
				assert.Equal(t, tc.subsystem, subsystem)
			}
		})
	}
}

func TestIgnoredMethods(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	assert.True(t, table.IgnoreMethodCall("mo", "current_setup"))
	assert.True(t, table.IgnoreMethodCall("door", "is_open"))
	assert.False(t, table.IgnoreMethodCall("mo", "set_up_desk"))
}

func TestOverlayExtendsLists(t *testing.T) {
	dir := t.TempDir()
	overlayPath := filepath.Join(dir, "overlay.cue")
	overlay := "tables: progression_methods: [\"grant_trophy\"]\n"
	require.NoError(t, os.WriteFile(overlayPath, []byte(overlay), 0o644))

	table, err := LoadOverlay(overlayPath)
	require.NoError(t, err)

	subsystem, ok := table.StatefulMethod("mo", "grant_trophy")
	assert.True(t, ok)
	assert.Equal(t, SubsystemProgression, subsystem)
}

func TestSubsystemRankOrdering(t *testing.T) {
	assert.Less(t, SubsystemObjects.Rank(), SubsystemInventory.Rank())
	assert.Less(t, SubsystemInventory.Rank(), SubsystemInterestActors.Rank())
	assert.Less(t, SubsystemInterestActors.Rank(), SubsystemActors.Rank())
	assert.Less(t, SubsystemActors.Rank(), SubsystemAudio.Rank())
	assert.Less(t, SubsystemAudio.Rank(), SubsystemProgression.Rank())
	assert.Equal(t, "interest actors", SubsystemInterestActors.Label())
}
