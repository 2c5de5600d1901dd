// Package host runs legacy boot scripts inside a sandboxed, single-threaded
// cooperative scheduler. Scripts are Lua coroutines driven in bounded
// round-robin passes; nothing preempts a script, and a script that never
// yields past its budget simply stops being resumed.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/roach88/exhume/internal/script"
)

// Driver defaults. Boot drives harder than interactive nudges.
const (
	DefaultBootPasses  = 8
	DefaultNudgePasses = 4
	DefaultYieldBudget = 32

	waitResumeCeiling = 10_000
)

// ErrResumeCeiling reports a blocking wait that resumed its target past
// the ceiling without completion.
var ErrResumeCeiling = errors.New("blocking wait exceeded resume ceiling")

// EngineContext is the per-run Lua sandbox with its script scheduler and
// event log.
type EngineContext struct {
	state   *lua.LState
	scripts *ScriptRuntime
	events  []string
	logger  *slog.Logger
	root    string
}

// Options configures a new engine context.
type Options struct {
	// DataRoot is the directory dofile and LoadScript resolve against.
	DataRoot string
	Logger   *slog.Logger
}

// NewEngineContext builds a sandboxed Lua state with the host bindings
// installed.
func NewEngineContext(opts Options) (*EngineContext, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := &EngineContext{
		state:   lua.NewState(lua.Options{SkipOpenLibs: false}),
		scripts: NewScriptRuntime(),
		logger:  logger,
		root:    opts.DataRoot,
	}
	if err := ctx.installBindings(); err != nil {
		ctx.state.Close()
		return nil, err
	}
	return ctx, nil
}

// Close releases the Lua state.
func (c *EngineContext) Close() {
	c.state.Close()
}

// State exposes the underlying Lua state for test setup.
func (c *EngineContext) State() *lua.LState { return c.state }

// Events returns the ordered event log.
func (c *EngineContext) Events() []string {
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

// PendingScripts returns the labels and yield counts of scripts still
// running.
func (c *EngineContext) PendingScripts() []ScriptStatus {
	var statuses []ScriptStatus
	for _, handle := range c.scripts.ActiveHandles() {
		statuses = append(statuses, ScriptStatus{
			Handle: handle,
			Label:  c.scripts.Label(handle),
			Yields: c.scripts.YieldCount(handle),
		})
	}
	return statuses
}

// ScriptStatus is a running script's scheduling snapshot.
type ScriptStatus struct {
	Handle uint32
	Label  string
	Yields int
}

func (c *EngineContext) logEvent(event string) {
	c.events = append(c.events, event)
	c.logger.Debug("host event", "event", event)
}

// LoadScript reads a script from the data root, normalizes its legacy
// byte-level quirks, and executes it on the root state.
func (c *EngineContext) LoadScript(name string) error {
	path := filepath.Join(c.root, filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script %s: %w", path, err)
	}
	decoded, err := script.DecodeLegacy(raw)
	if err != nil {
		return fmt.Errorf("decoding script %s: %w", name, err)
	}
	if err := c.state.DoString(script.Normalize(decoded)); err != nil {
		return fmt.Errorf("executing script %s: %w", name, err)
	}
	c.logEvent(fmt.Sprintf("script.load %s", name))
	return nil
}

// StartScript registers the function as a cooperative script, runs its
// first slice, and returns the handle. Handle 0 means nothing started.
func (c *EngineContext) StartScript(label string, fn *lua.LFunction, args ...lua.LValue) uint32 {
	if fn == nil {
		return 0
	}
	handle, started := c.scripts.StartScript(label, fn)
	c.logEvent(started)

	thread, _ := c.state.NewThread()
	c.scripts.AttachThread(handle, thread)
	c.resumeScript(handle, args...)
	return handle
}

// SingleStartScript behaves like StartScript but refuses to start a second
// script with the same label, returning 0 instead.
func (c *EngineContext) SingleStartScript(label string, fn *lua.LFunction, args ...lua.LValue) uint32 {
	if c.scripts.HasLabel(label) {
		return 0
	}
	return c.StartScript(label, fn, args...)
}

// DriveActiveScripts round-robins every active script for up to maxPasses
// passes. A script that has spent its yield budget is skipped; a pass with
// no progress ends the drive early. Script errors are logged and retire
// the script without propagating.
func (c *EngineContext) DriveActiveScripts(maxPasses, maxYieldsPerScript int) {
	for pass := 0; pass < maxPasses; pass++ {
		handles := c.scripts.ActiveHandles()
		if len(handles) == 0 {
			return
		}
		progressed := false
		for _, handle := range handles {
			if c.scripts.YieldCount(handle) >= maxYieldsPerScript {
				continue
			}
			c.resumeScript(handle)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

// WaitForScript resumes the handle until it completes. This is the only
// place a script error propagates to the caller. The resume ceiling bounds
// scripts that yield forever.
func (c *EngineContext) WaitForScript(handle uint32) error {
	steps := 0
	for c.scripts.IsRunning(handle) {
		if _, err := c.resumeScript(handle); err != nil {
			return err
		}
		steps++
		if steps >= waitResumeCeiling {
			return fmt.Errorf("wait_for_script exceeded %d resumes for %s: %w",
				waitResumeCeiling, c.scripts.Label(handle), ErrResumeCeiling)
		}
	}
	return nil
}

// resumeScript runs one slice of the handle's coroutine. The bool result
// reports completion; errors retire the script after logging.
func (c *EngineContext) resumeScript(handle uint32, args ...lua.LValue) (bool, error) {
	thread, fn, ok := c.scripts.Thread(handle)
	if !ok {
		return true, nil
	}

	status, err, _ := c.state.Resume(thread, fn, args...)
	switch status {
	case lua.ResumeYield:
		c.scripts.IncrementYield(handle)
		return false, nil
	case lua.ResumeOK:
		if completed := c.scripts.CompleteScript(handle); completed != "" {
			c.logEvent(completed)
		}
		return true, nil
	default:
		label := c.scripts.Label(handle)
		message := "unknown error"
		if err != nil {
			message = err.Error()
		}
		c.logEvent(fmt.Sprintf("script.error %s: %s", label, message))
		if completed := c.scripts.CompleteScript(handle); completed != "" {
			c.logEvent(completed)
		}
		if err == nil {
			err = fmt.Errorf("script %s failed", label)
		}
		return true, err
	}
}

// installBindings wires the scheduler globals and the instrumented engine
// stubs into the Lua state.
func (c *EngineContext) installBindings() error {
	c.state.SetGlobal("start_script", c.state.NewFunction(c.luaStartScript))
	c.state.SetGlobal("single_start_script", c.state.NewFunction(c.luaSingleStartScript))
	c.state.SetGlobal("wait_for_script", c.state.NewFunction(c.luaWaitForScript))
	c.state.SetGlobal("stop_script", c.state.NewFunction(c.luaStopScript))
	c.state.SetGlobal("find_script", c.state.NewFunction(c.luaFindScript))
	c.state.SetGlobal("dofile", c.state.NewFunction(c.luaDofile))
	c.state.SetGlobal("PrintDebug", c.state.NewFunction(c.luaPrintDebug))

	for _, name := range instrumentedGlobals {
		c.state.SetGlobal(name, c.state.NewFunction(c.stub(name)))
	}
	c.installCreators()

	// Yield helpers run on the coroutine itself, so plain Lua keeps the
	// scheduler out of the Go call stack.
	return c.state.DoString(`
		function break_here() coroutine.yield() end
		function sleep_for(ms) coroutine.yield(ms) end
	`)
}

// instrumentedGlobals are engine entry points the boot scripts call. Each
// records an event and returns nothing.
var instrumentedGlobals = []string{
	"MakeCurrentSet",
	"MakeCurrentSetup",
	"MakeSectorActive",
	"LockFont",
	"LoadCostume",
	"SetActorCostume",
	"PutActorInSet",
	"SetActorPos",
	"SetActorRot",
	"RunFullscreenMovie",
	"StartMovie",
	"ImStartSound",
	"ImStopAllSounds",
	"EnableControl",
	"DisableControl",
	"SetGamma",
}

func (c *EngineContext) stub(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		args := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			args = append(args, lua.LVAsString(L.ToStringMeta(L.Get(i))))
		}
		c.logEvent(fmt.Sprintf("call %s(%s)", name, strings.Join(args, ", ")))
		return 0
	}
}

func (c *EngineContext) luaStartScript(L *lua.LState) int {
	label, fn, args := c.callableFromArgs(L)
	handle := c.StartScript(label, fn, args...)
	L.Push(lua.LNumber(handle))
	return 1
}

func (c *EngineContext) luaSingleStartScript(L *lua.LState) int {
	label, fn, args := c.callableFromArgs(L)
	handle := c.SingleStartScript(label, fn, args...)
	L.Push(lua.LNumber(handle))
	return 1
}

func (c *EngineContext) luaWaitForScript(L *lua.LState) int {
	handle := uint32(L.CheckNumber(1))
	if err := c.WaitForScript(handle); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (c *EngineContext) luaStopScript(L *lua.LState) int {
	handle := uint32(L.CheckNumber(1))
	if completed := c.scripts.CompleteScript(handle); completed != "" {
		c.logEvent(completed)
	}
	return 0
}

func (c *EngineContext) luaFindScript(L *lua.LState) int {
	label := L.CheckString(1)
	if handle, ok := c.scripts.FindHandle(label); ok {
		L.Push(lua.LNumber(handle))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}

func (c *EngineContext) luaDofile(L *lua.LState) int {
	name := L.CheckString(1)
	if err := c.LoadScript(name); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (c *EngineContext) luaPrintDebug(L *lua.LState) int {
	c.logEvent(fmt.Sprintf("debug %s", L.OptString(1, "")))
	return 0
}

// callableFromArgs extracts the script function from the first argument.
// Strings resolve through the global table, dotted paths included.
func (c *EngineContext) callableFromArgs(L *lua.LState) (string, *lua.LFunction, []lua.LValue) {
	if L.GetTop() == 0 {
		return "", nil, nil
	}

	var label string
	var fn *lua.LFunction
	switch value := L.Get(1).(type) {
	case *lua.LFunction:
		label = "<function>"
		fn = value
	case lua.LString:
		label = string(value)
		if resolved, ok := c.resolveGlobalPath(string(value)); ok {
			fn = resolved
		}
	default:
		return "", nil, nil
	}

	var args []lua.LValue
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, L.Get(i))
	}
	return label, fn, args
}

func (c *EngineContext) resolveGlobalPath(path string) (*lua.LFunction, bool) {
	parts := strings.Split(path, ".")
	var current lua.LValue = c.state.G.Global
	for _, part := range parts {
		table, ok := current.(*lua.LTable)
		if !ok {
			return nil, false
		}
		current = c.state.GetField(table, part)
	}
	fn, ok := current.(*lua.LFunction)
	return fn, ok
}
