package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/testutil"
)

// bootSnapshotJSON is a runtime capture of the canonical script tree with
// the door sector in the given state.
func bootSnapshotJSON(doorActive bool) string {
	return fmt.Sprintf(`{
  "loaded_sets": ["mo.set"],
  "sets": [
    {
      "set_file": "mo.set",
      "variable_name": "mo",
      "has_geometry": true,
      "setups": [],
      "sectors": [
        {
          "id": 1,
          "name": "door",
          "kind": "walk",
          "default_active": false,
          "active": %t,
          "vertices": [[0, 0], [1, 0], [1, 1]],
          "centroid": [0.5, 0.5]
        }
      ],
      "active_sectors": {}
    }
  ],
  "actors": {
    "manny": {
      "name": "Manny",
      "handle": 1001,
      "position": [0.606, 2.041, 0.0],
      "is_selected": true,
      "is_visible": true,
      "sectors": {},
      "speaking": false
    }
  },
  "objects": [],
  "visible_objects": [],
  "hotlist_handles": [],
  "inventory": [],
  "inventory_rooms": [],
  "cut_scenes": [],
  "events": []
}`, doorActive)
}

func writeSnapshot(t *testing.T, doorActive bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(bootSnapshotJSON(doorActive)), 0o644))
	return path
}

func TestGeomDiffCommandAcceptsMatchingSnapshot(t *testing.T) {
	root := testutil.ScriptTree(t)

	out, err := executeCLI("geomdiff", root, "--snapshot", writeSnapshot(t, true))
	require.NoError(t, err)
	assert.Contains(t, out, "Sector activation matches static timeline expectations.")
}

func TestGeomDiffCommandFlagsSectorMismatch(t *testing.T) {
	root := testutil.ScriptTree(t)

	out, err := executeCLI("geomdiff", root, "--snapshot", writeSnapshot(t, false))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "door")
	assert.Contains(t, out, "Sector mismatches:")
}

func TestGeomDiffCommandRequiresSnapshotFlag(t *testing.T) {
	_, err := executeCLI("geomdiff", testutil.ScriptTree(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot")
}

func TestGeomDiffCommandFailsWithoutMinedDefaultSet(t *testing.T) {
	// A boot script whose room source is absent mines no default set.
	root := t.TempDir()
	testutil.WriteScript(t, root, "_sets.decompiled.lua", testutil.BootScript)

	_, err := executeCLI("geomdiff", root, "--snapshot", writeSnapshot(t, true))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no default set mined")
}

func TestGeomDiffCommandRejectsMissingSnapshotFile(t *testing.T) {
	root := testutil.ScriptTree(t)
	_, err := executeCLI("geomdiff", root, "--snapshot", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
