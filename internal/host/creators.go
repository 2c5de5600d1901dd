package host

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// installCreators registers the Set, Actor, and Object constructors plus the
// load_room_code loader. The decompiled sources call these at load time, so
// executing a boot chunk needs them even though the sandbox keeps no
// renderer behind them.
func (c *EngineContext) installCreators() {
	c.state.SetGlobal("load_room_code", c.state.NewFunction(c.luaLoadRoomCode))

	c.registerCreator("Set", c.luaCreateSet)
	c.registerCreator("Actor", c.luaCreateActor)
	c.registerCreator("Object", c.luaCreateObject)
}

func (c *EngineContext) registerCreator(name string, create lua.LGFunction) {
	tbl := c.state.NewTable()
	c.state.SetField(tbl, "create", c.state.NewFunction(create))
	c.state.SetGlobal(name, tbl)
}

// luaLoadRoomCode loads a room script through the same path as dofile. The
// engine distinguishes the two for hot-reload bookkeeping; the sandbox does
// not.
func (c *EngineContext) luaLoadRoomCode(L *lua.LState) int {
	name := L.CheckString(1)
	if err := c.LoadScript(name); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// luaCreateSet returns the table the decompiled source hangs its hook
// functions on. Setup labels are preserved under .setups.
func (c *EngineContext) luaCreateSet(L *lua.LState) int {
	setFile := L.OptString(2, "")
	displayName := L.OptString(3, "")

	set := L.NewTable()
	L.SetField(set, "setFile", lua.LString(setFile))
	L.SetField(set, "name", lua.LString(displayName))
	L.SetField(set, "objects", L.NewTable())
	if setups, ok := L.Get(4).(*lua.LTable); ok {
		L.SetField(set, "setups", setups)
	}

	c.logEvent(fmt.Sprintf("create set %s", setFile))
	L.Push(set)
	return 1
}

// luaCreateActor builds a bare actor table. The trailing string argument is
// the display label; the leading one is the costume model.
func (c *EngineContext) luaCreateActor(L *lua.LState) int {
	costume := L.OptString(2, "")
	label := costume
	if top := L.Get(L.GetTop()); top.Type() == lua.LTString {
		label = lua.LVAsString(top)
	}

	actor := L.NewTable()
	L.SetField(actor, "costume", lua.LString(costume))
	L.SetField(actor, "name", lua.LString(label))

	c.logEvent(fmt.Sprintf("create actor %s", label))
	L.Push(actor)
	return 1
}

// luaCreateObject builds an interest object and registers it on the parent
// set's .objects table when one is given.
func (c *EngineContext) luaCreateObject(L *lua.LState) int {
	name := L.OptString(3, "")

	object := L.NewTable()
	L.SetField(object, "string_name", lua.LString(name))
	if parent, ok := L.Get(2).(*lua.LTable); ok {
		if objects, ok := L.GetField(parent, "objects").(*lua.LTable); ok {
			L.SetField(objects, name, object)
		}
	}

	c.logEvent(fmt.Sprintf("create object %s", name))
	L.Push(object)
	return 1
}
