package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// createTestStore creates an on-disk store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a run record with a fixed ID and timestamp so
// tests stay deterministic.
func createTestRun(id string) RunRecord {
	summary := timeline.BootSummary{
		DeveloperMode:  true,
		DefaultSet:     "mo.set",
		TimeToRunIntro: true,
		ResourceCounts: timeline.ResourceCounts{Years: 4, Menus: 2, Rooms: 12},
	}
	return RunRecord{
		ID:             id,
		CreatedAt:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		DataRoot:       "/data/scripts",
		DefaultSet:     summary.DefaultSet,
		DeveloperMode:  summary.DeveloperMode,
		IntroScheduled: summary.TimeToRunIntro,
		Summary:        summary,
	}
}

func testReference() state.HookReference {
	return state.HookReference{
		Name:          "enter",
		Kind:          timeline.HookEnter,
		DefinedIn:     "mo.decompiled.lua",
		DefinedAtLine: 12,
	}
}

// createTestEvents returns events already in replay order: one indexed
// actor mutation, one indexed inventory grant, one aggregate object tick.
func createTestEvents() []state.SubsystemDeltaEvent {
	zero := 0
	return []state.SubsystemDeltaEvent{
		{
			Subsystem:       classify.SubsystemInventory,
			Target:          "inventory",
			Method:          "give_new_object",
			Arguments:       []string{"card"},
			Count:           1,
			TriggerSequence: 1,
			TriggeredBy:     testReference(),
			CallIndex:       &zero,
		},
		{
			Subsystem:       classify.SubsystemActors,
			Target:          "manny",
			Method:          "setpos",
			Arguments:       []string{"1.0", "2.0", "3.0"},
			Count:           1,
			TriggerSequence: 1,
			TriggeredBy:     testReference(),
			CallIndex:       &zero,
		},
		{
			Subsystem:       classify.SubsystemObjects,
			Target:          "mo.door",
			Method:          "set_object_state",
			Arguments:       []string{},
			Count:           2,
			TriggerSequence: 2,
			TriggeredBy:     testReference(),
		},
	}
}
