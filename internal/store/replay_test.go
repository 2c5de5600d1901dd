package store

import (
	"context"
	"testing"

	"github.com/roach88/exhume/internal/state"
)

func TestReplayRun_ReconstructsStoredRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, createTestRun("run-1"), createTestEvents()); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}
	if err := s.WriteHostEvents(ctx, "run-1", []string{"script.start intro (#1)"}); err != nil {
		t.Fatalf("WriteHostEvents() failed: %v", err)
	}

	replay, err := s.ReplayRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReplayRun() failed: %v", err)
	}
	if replay.Record.ID != "run-1" {
		t.Errorf("Record.ID = %q, expected run-1", replay.Record.ID)
	}
	if len(replay.Events) != 3 {
		t.Errorf("event count = %d, expected 3", len(replay.Events))
	}
	if len(replay.HostEvents) != 1 {
		t.Errorf("host event count = %d, expected 1", len(replay.HostEvents))
	}
	if !replay.Ordered {
		t.Error("stored events should satisfy the replay order")
	}
}

func TestVerifyEventOrder_AcceptsSortedEvents(t *testing.T) {
	if err := VerifyEventOrder(createTestEvents()); err != nil {
		t.Errorf("VerifyEventOrder() = %v, expected nil", err)
	}
	if err := VerifyEventOrder(nil); err != nil {
		t.Errorf("VerifyEventOrder(nil) = %v, expected nil", err)
	}
}

func TestVerifyEventOrder_FlagsSubsystemInversion(t *testing.T) {
	events := createTestEvents()
	// Swap the inventory and actor events: Actors ranks after Inventory
	// within the same trigger sequence.
	events[0], events[1] = events[1], events[0]

	if err := VerifyEventOrder(events); err == nil {
		t.Error("expected an ordering error for swapped subsystems")
	}
}

func TestVerifyEventOrder_AggregateSortsBeforeIndexed(t *testing.T) {
	base := createTestEvents()
	aggregate := base[2]
	aggregate.TriggerSequence = 1
	aggregate.Subsystem = base[0].Subsystem
	aggregate.Target = base[0].Target
	aggregate.CallIndex = nil

	sorted := []state.SubsystemDeltaEvent{aggregate, base[0]}
	if err := VerifyEventOrder(sorted); err != nil {
		t.Errorf("aggregate-first order rejected: %v", err)
	}

	inverted := []state.SubsystemDeltaEvent{base[0], aggregate}
	if err := VerifyEventOrder(inverted); err == nil {
		t.Error("expected an ordering error when an indexed event precedes its aggregate")
	}
}
