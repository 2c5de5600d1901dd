package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/store"
	"github.com/roach88/exhume/internal/testutil"
)

func TestRunCommandDrivesBootChunk(t *testing.T) {
	root := testutil.ScriptTree(t)

	out, err := executeCLI("run", root)
	require.NoError(t, err)

	assert.Contains(t, out, "Boot drove")
	assert.Contains(t, out, "script.load year_1.lua")
	assert.Contains(t, out, "script.load menu_main.lua")
	assert.Contains(t, out, "create set mo.set")
	assert.Contains(t, out, "create actor Manny")
	assert.Contains(t, out, "script.load _sets.decompiled.lua")
}

func TestRunCommandPersistsRun(t *testing.T) {
	root := testutil.ScriptTree(t)
	database := filepath.Join(t.TempDir(), "runs.db")

	out, err := executeCLI("run", root, "--db", database)
	require.NoError(t, err)
	assert.Contains(t, out, "Persisted run")

	st, err := store.Open(database)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	record, found, err := st.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root, record.DataRoot)
	assert.Equal(t, "mo.set", record.DefaultSet)

	events, err := st.LoadDeltaEvents(ctx, record.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
	require.NoError(t, store.VerifyEventOrder(events))

	hostEvents, err := st.LoadHostEvents(ctx, record.ID)
	require.NoError(t, err)
	assert.Contains(t, hostEvents, "create set mo.set")
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	root := testutil.ScriptTree(t)

	configPath := filepath.Join(t.TempDir(), "exhume.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("host:\n  yield_budget: 0\n"), 0o644))

	_, err := executeCLI("run", root, "--config", configPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandRejectsMissingRoot(t *testing.T) {
	_, err := executeCLI("run", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandFailsOnBrokenBootChunk(t *testing.T) {
	root := t.TempDir()
	testutil.WriteScript(t, root, "_sets.decompiled.lua", "this is not lua (")

	_, err := executeCLI("run", root)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandReportsHostError(t *testing.T) {
	root := t.TempDir()
	testutil.WriteScript(t, root, "_sets.decompiled.lua", "nonexistent_engine_call()\n")

	_, err := executeCLI("run", root)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
