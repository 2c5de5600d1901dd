package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/testutil"
)

func TestReportCommandRendersBootAnalysis(t *testing.T) {
	root := testutil.ScriptTree(t)

	out, err := executeCLI("report", root)
	require.NoError(t, err)

	assert.Contains(t, out, "Boot default set: mo.set")
	assert.Contains(t, out, "Resources -> years: 1 | menus: 1 | rooms: 1")
	assert.Contains(t, out, "Manny's Office")
	assert.Contains(t, out, "office_idle")
	assert.Contains(t, out, "give_new_object")
}

func TestReportCommandSimulatesScheduler(t *testing.T) {
	root := testutil.ScriptTree(t)

	out, err := executeCLI("report", root, "--simulate-scheduler")
	require.NoError(t, err)
	assert.Contains(t, out, "Simulated scheduler queue:")
}

func TestReportCommandReadsRegistry(t *testing.T) {
	root := testutil.ScriptTree(t)

	registryPath := filepath.Join(t.TempDir(), "registry.json")
	raw, err := json.Marshal(map[string]any{"good_times": "pl"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(registryPath, raw, 0o644))

	out, err := executeCLI("report", root, "--registry", registryPath)
	require.NoError(t, err)
	assert.Contains(t, out, "developer mode: true")
}

func TestReportCommandRejectsMissingRoot(t *testing.T) {
	_, err := executeCLI("report", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
