package host

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// ScriptRecord tracks one cooperative script owned by the host.
type ScriptRecord struct {
	label  string
	thread *lua.LState
	fn     *lua.LFunction
	yields int
}

// Label returns the script's display label.
func (r *ScriptRecord) Label() string { return r.label }

// Yields returns how many times the script has yielded so far.
func (r *ScriptRecord) Yields() int { return r.yields }

// ScriptRuntime owns the handle table for running scripts. Handles start
// at 1; handle 0 means "no script".
type ScriptRuntime struct {
	nextHandle uint32
	records    map[uint32]*ScriptRecord
}

// NewScriptRuntime returns an empty runtime.
func NewScriptRuntime() *ScriptRuntime {
	return &ScriptRuntime{
		nextHandle: 1,
		records:    map[uint32]*ScriptRecord{},
	}
}

// StartScript registers a script and returns its handle plus a log line.
func (s *ScriptRuntime) StartScript(label string, fn *lua.LFunction) (uint32, string) {
	handle := s.nextHandle
	s.nextHandle++
	s.records[handle] = &ScriptRecord{label: label, fn: fn}
	return handle, fmt.Sprintf("script.start %s (#%d)", label, handle)
}

// HasLabel reports whether any running script carries the label.
func (s *ScriptRuntime) HasLabel(label string) bool {
	for _, record := range s.records {
		if record.label == label {
			return true
		}
	}
	return false
}

// AttachThread binds the coroutine thread to an existing handle.
func (s *ScriptRuntime) AttachThread(handle uint32, thread *lua.LState) {
	if record, ok := s.records[handle]; ok {
		record.thread = thread
	}
}

// Thread returns the coroutine bound to the handle, if any.
func (s *ScriptRuntime) Thread(handle uint32) (*lua.LState, *lua.LFunction, bool) {
	record, ok := s.records[handle]
	if !ok || record.thread == nil {
		return nil, nil, false
	}
	return record.thread, record.fn, true
}

// IncrementYield bumps the handle's yield counter.
func (s *ScriptRuntime) IncrementYield(handle uint32) {
	if record, ok := s.records[handle]; ok {
		record.yields++
	}
}

// YieldCount returns the handle's yield counter.
func (s *ScriptRuntime) YieldCount(handle uint32) int {
	if record, ok := s.records[handle]; ok {
		return record.yields
	}
	return 0
}

// Label returns the handle's label, or "#n" when unknown.
func (s *ScriptRuntime) Label(handle uint32) string {
	if record, ok := s.records[handle]; ok {
		return record.label
	}
	return fmt.Sprintf("#%d", handle)
}

// ActiveHandles returns every running handle in ascending order.
func (s *ScriptRuntime) ActiveHandles() []uint32 {
	handles := make([]uint32, 0, len(s.records))
	for handle := range s.records {
		handles = append(handles, handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// IsRunning reports whether the handle still owns a script.
func (s *ScriptRuntime) IsRunning(handle uint32) bool {
	_, ok := s.records[handle]
	return ok
}

// CompleteScript removes the handle and returns a log line, or "" when
// the handle was already gone.
func (s *ScriptRuntime) CompleteScript(handle uint32) string {
	record, ok := s.records[handle]
	if !ok {
		return ""
	}
	delete(s.records, handle)
	return fmt.Sprintf("script.complete %s (#%d)", record.label, handle)
}

// FindHandle returns the first handle carrying the label.
func (s *ScriptRuntime) FindHandle(label string) (uint32, bool) {
	for _, handle := range s.ActiveHandles() {
		if s.records[handle].label == label {
			return handle, true
		}
	}
	return 0, false
}

// IsEmpty reports whether no scripts remain.
func (s *ScriptRuntime) IsEmpty() bool { return len(s.records) == 0 }

// Records returns the running scripts keyed by handle, in handle order.
func (s *ScriptRuntime) Records() []*ScriptRecord {
	records := make([]*ScriptRecord, 0, len(s.records))
	for _, handle := range s.ActiveHandles() {
		records = append(records, s.records[handle])
	}
	return records
}
