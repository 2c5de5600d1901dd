package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/store"
	"github.com/roach88/exhume/internal/testutil"
)

// persistedRun drives the canonical tree with persistence on and returns
// the database path.
func persistedRun(t *testing.T) string {
	t.Helper()
	root := testutil.ScriptTree(t)
	database := filepath.Join(t.TempDir(), "runs.db")
	_, err := executeCLI("run", root, "--db", database)
	require.NoError(t, err)
	return database
}

func TestReplayCommandReplaysLatestRun(t *testing.T) {
	database := persistedRun(t)

	out, err := executeCLI("replay", "--db", database)
	require.NoError(t, err)

	assert.Contains(t, out, "Run ")
	assert.Contains(t, out, "default set: mo.set")
	assert.Contains(t, out, "in replay order")
	assert.Contains(t, out, "Host events")
}

func TestReplayCommandEmitsJSON(t *testing.T) {
	database := persistedRun(t)

	out, err := executeCLI("replay", "--db", database, "--format", "json")
	require.NoError(t, err)

	var replay store.RunReplay
	require.NoError(t, json.Unmarshal([]byte(out), &replay))
	assert.True(t, replay.Ordered)
	assert.Equal(t, "mo.set", replay.Record.DefaultSet)
	assert.NotEmpty(t, replay.Events)
}

func TestReplayCommandRejectsUnknownRun(t *testing.T) {
	database := persistedRun(t)

	_, err := executeCLI("replay", "--db", database, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}

func TestReplayCommandRejectsEmptyDatabase(t *testing.T) {
	database := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(database)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = executeCLI("replay", "--db", database)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no runs")
}
