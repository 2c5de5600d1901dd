// Package registry is a simplified stand-in for the engine's registry: a
// flat JSON file of typed values that the boot scripts consult for developer
// flags and resume state. Writes are tracked and Save only touches disk when
// something actually changed.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Registry holds typed key/value pairs with an optional backing file.
type Registry struct {
	values      map[string]any
	dirty       bool
	backingPath string
}

// New returns an empty registry with no backing file.
func New() *Registry {
	return &Registry{values: make(map[string]any)}
}

// Open loads a registry from path. A missing file yields an empty registry
// backed by that path; an empty path yields an unbacked registry.
func Open(path string) (*Registry, error) {
	reg := New()
	reg.backingPath = path
	if path == "" {
		return reg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("reading registry file %s: %w", path, err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parsing registry json %s: %w", path, err)
	}
	for key, value := range decoded {
		parsed, err := parsePrimitive(value)
		if err != nil {
			return nil, fmt.Errorf("registry key %q in %s: %w", key, path, err)
		}
		reg.values[key] = parsed
	}
	return reg, nil
}

// parsePrimitive keeps integers and floats distinct so that round-trips do
// not silently retype save slots.
func parsePrimitive(raw json.RawMessage) (any, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, nil
	}
	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		return asFloat, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return asBool, nil
	}
	return nil, fmt.Errorf("unsupported value %s", string(raw))
}

func (r *Registry) ReadString(key string) (string, bool) {
	value, ok := r.values[key].(string)
	return value, ok
}

// ReadInt also accepts float values, truncating them the way the engine did.
func (r *Registry) ReadInt(key string) (int64, bool) {
	switch value := r.values[key].(type) {
	case int64:
		return value, true
	case float64:
		return int64(value), true
	}
	return 0, false
}

func (r *Registry) ReadBool(key string) (bool, bool) {
	value, ok := r.values[key].(bool)
	return value, ok
}

func (r *Registry) ReadFloat(key string) (float64, bool) {
	switch value := r.values[key].(type) {
	case float64:
		return value, true
	case int64:
		return float64(value), true
	}
	return 0, false
}

// Has reports whether the key exists, including keys holding null.
func (r *Registry) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

func (r *Registry) WriteString(key, value string)        { r.write(key, value) }
func (r *Registry) WriteInt(key string, value int64)     { r.write(key, value) }
func (r *Registry) WriteBool(key string, value bool)     { r.write(key, value) }
func (r *Registry) WriteFloat(key string, value float64) { r.write(key, value) }
func (r *Registry) WriteNull(key string)                 { r.write(key, nil) }

func (r *Registry) Remove(key string) {
	if _, ok := r.values[key]; ok {
		delete(r.values, key)
		r.dirty = true
	}
}

func (r *Registry) SetBackingPath(path string) {
	r.backingPath = path
}

// Save writes the registry to its backing file when dirty. With no backing
// path configured it is a successful no-op.
func (r *Registry) Save() error {
	if r.backingPath == "" {
		r.dirty = false
		return nil
	}
	if !r.dirty {
		return nil
	}
	if dir := filepath.Dir(r.backingPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating registry directory %s: %w", dir, err)
		}
	}
	serialized, err := json.MarshalIndent(r.values, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing registry for %s: %w", r.backingPath, err)
	}
	if err := os.WriteFile(r.backingPath, serialized, 0o644); err != nil {
		return fmt.Errorf("writing registry file %s: %w", r.backingPath, err)
	}
	r.dirty = false
	return nil
}

// SaveToPath writes a copy of the registry to path without changing the
// receiver's backing file or dirty state.
func (r *Registry) SaveToPath(path string) error {
	snapshot := &Registry{
		values:      r.values,
		dirty:       true,
		backingPath: path,
	}
	return snapshot.Save()
}

func (r *Registry) write(key string, value any) {
	existing, ok := r.values[key]
	if ok && existing == value {
		return
	}
	r.values[key] = value
	r.dirty = true
}
