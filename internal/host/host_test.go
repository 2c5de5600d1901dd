package host

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	lua "github.com/yuin/gopher-lua"
)

func newTestContext(t *testing.T) *EngineContext {
	t.Helper()
	ctx, err := NewEngineContext(Options{
		DataRoot: t.TempDir(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(ctx.Close)
	return ctx
}

func globalFunction(t *testing.T, ctx *EngineContext, name string) *lua.LFunction {
	t.Helper()
	fn, ok := ctx.State().GetGlobal(name).(*lua.LFunction)
	require.True(t, ok, "global %s is not a function", name)
	return fn
}

func TestStartScriptRunsFirstSliceImmediately(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		ran = false
		function worker() ran = true end
	`))

	handle := ctx.StartScript("worker", globalFunction(t, ctx, "worker"))
	require.Equal(t, uint32(1), handle)
	require.Equal(t, lua.LTrue, ctx.State().GetGlobal("ran"))
	require.Empty(t, ctx.PendingScripts(), "a script that never yields completes on its first slice")
}

func TestDriveActiveScriptsTerminatesOnForeverYield(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		ticks = 0
		function spinner()
			while true do
				ticks = ticks + 1
				break_here()
			end
		end
	`))

	handle := ctx.StartScript("spinner", globalFunction(t, ctx, "spinner"))
	ctx.DriveActiveScripts(DefaultBootPasses, DefaultYieldBudget)

	pending := ctx.PendingScripts()
	require.Len(t, pending, 1)
	require.Equal(t, handle, pending[0].Handle)
	// One yield from the starting slice plus one per drive pass.
	require.Equal(t, 1+DefaultBootPasses, pending[0].Yields)
}

func TestDriveActiveScriptsSkipsSpentBudgets(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		function spinner()
			while true do break_here() end
		end
	`))

	ctx.StartScript("spinner", globalFunction(t, ctx, "spinner"))
	ctx.DriveActiveScripts(100, 3)

	pending := ctx.PendingScripts()
	require.Len(t, pending, 1)
	require.Equal(t, 3, pending[0].Yields, "drive stops once every script is over budget")
}

func TestSingleStartScriptIsIdempotentPerLabel(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		function spinner()
			while true do break_here() end
		end
	`))

	first := ctx.SingleStartScript("spinner", globalFunction(t, ctx, "spinner"))
	second := ctx.SingleStartScript("spinner", globalFunction(t, ctx, "spinner"))
	require.NotZero(t, first)
	require.Zero(t, second)
	require.Len(t, ctx.PendingScripts(), 1)
}

func TestWaitForScriptDrainsYields(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		steps = 0
		function staged()
			steps = 1
			break_here()
			steps = 2
			break_here()
			steps = 3
		end
	`))

	handle := ctx.StartScript("staged", globalFunction(t, ctx, "staged"))
	require.NoError(t, ctx.WaitForScript(handle))
	require.Equal(t, lua.LNumber(3), ctx.State().GetGlobal("steps"))
	require.Empty(t, ctx.PendingScripts())
}

func TestWaitForScriptHitsResumeCeiling(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		function forever()
			while true do break_here() end
		end
	`))

	handle := ctx.StartScript("forever", globalFunction(t, ctx, "forever"))
	err := ctx.WaitForScript(handle)
	require.ErrorIs(t, err, ErrResumeCeiling)
	require.Contains(t, err.Error(), "forever")
}

func TestWaitForScriptPropagatesScriptError(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		function fragile()
			break_here()
			error("boom")
		end
	`))

	handle := ctx.StartScript("fragile", globalFunction(t, ctx, "fragile"))
	err := ctx.WaitForScript(handle)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	var sawError bool
	for _, event := range ctx.Events() {
		if strings.HasPrefix(event, "script.error") {
			sawError = true
		}
	}
	require.True(t, sawError)
}

func TestDriveActiveScriptsRetiresErroringScripts(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		function fragile()
			break_here()
			error("boom")
		end
	`))

	ctx.StartScript("fragile", globalFunction(t, ctx, "fragile"))
	ctx.DriveActiveScripts(DefaultNudgePasses, DefaultYieldBudget)

	require.Empty(t, ctx.PendingScripts(), "errors retire the script without propagating")
}

func TestSchedulerBindingsAreVisibleFromLua(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`
		function spinner()
			while true do break_here() end
		end
		handle = single_start_script("spinner")
		duplicate = single_start_script("spinner")
		found = find_script("spinner")
	`))

	require.Equal(t, lua.LNumber(1), ctx.State().GetGlobal("handle"))
	require.Equal(t, lua.LNumber(0), ctx.State().GetGlobal("duplicate"))
	require.Equal(t, lua.LNumber(1), ctx.State().GetGlobal("found"))
	require.Len(t, ctx.PendingScripts(), 1)

	require.NoError(t, ctx.State().DoString(`stop_script(handle)`))
	require.Empty(t, ctx.PendingScripts())
}

func TestInstrumentedStubsRecordEvents(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.State().DoString(`MakeSectorActive("door", true)`))

	require.Contains(t, ctx.Events(), "call MakeSectorActive(door, true)")
}

func TestLoadScriptNormalizesLegacySource(t *testing.T) {
	root := t.TempDir()
	// The artifact marker before an identifier must be stripped before
	// parsing.
	require.NoError(t, os.WriteFile(filepath.Join(root, "boot.lua"), []byte("one = 1\nbootflag = %one\n"), 0o644))

	ctx, err := NewEngineContext(Options{
		DataRoot: root,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	defer ctx.Close()

	require.NoError(t, ctx.LoadScript("boot.lua"))
	require.Equal(t, lua.LNumber(1), ctx.State().GetGlobal("bootflag"))
	require.Contains(t, ctx.Events(), "script.load boot.lua")

	require.Error(t, ctx.LoadScript("missing.lua"))
}

func TestStartScriptWithNilCallable(t *testing.T) {
	ctx := newTestContext(t)
	require.Zero(t, ctx.StartScript("ghost", nil))
	require.Empty(t, ctx.PendingScripts())
}
