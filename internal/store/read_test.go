package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LoadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestLoadDeltaEvents_PreservesReplayOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	events := createTestEvents()

	if err := s.SaveRun(ctx, createTestRun("run-1"), events); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	loaded, err := s.LoadDeltaEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadDeltaEvents() failed: %v", err)
	}
	if len(loaded) != len(events) {
		t.Fatalf("event count = %d, expected %d", len(loaded), len(events))
	}

	for i, expected := range events {
		got := loaded[i]
		if got.Subsystem != expected.Subsystem || got.Target != expected.Target || got.Method != expected.Method {
			t.Errorf("event %d = %s/%s.%s, expected %s/%s.%s",
				i, got.Subsystem, got.Target, got.Method,
				expected.Subsystem, expected.Target, expected.Method)
		}
		if got.Count != expected.Count || got.TriggerSequence != expected.TriggerSequence {
			t.Errorf("event %d counters did not round-trip", i)
		}
	}

	// The aggregate event keeps its nil call index and empty argument list.
	aggregate := loaded[2]
	if aggregate.CallIndex != nil {
		t.Errorf("aggregate CallIndex = %v, expected nil", *aggregate.CallIndex)
	}
	if aggregate.Arguments == nil || len(aggregate.Arguments) != 0 {
		t.Errorf("aggregate Arguments = %v, expected empty slice", aggregate.Arguments)
	}

	indexed := loaded[0]
	if indexed.CallIndex == nil || *indexed.CallIndex != 0 {
		t.Errorf("indexed CallIndex = %v, expected 0", indexed.CallIndex)
	}
	if indexed.TriggeredBy.DefinedIn != "mo.decompiled.lua" {
		t.Errorf("TriggeredBy.DefinedIn = %q did not round-trip", indexed.TriggeredBy.DefinedIn)
	}
}

func TestLoadDeltaEvents_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, createTestRun("run-1"), nil); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	loaded, err := s.LoadDeltaEvents(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadDeltaEvents() failed: %v", err)
	}
	if loaded == nil || len(loaded) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", loaded)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	older := createTestRun("run-old")
	newer := createTestRun("run-new")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	if err := s.SaveRun(ctx, older, nil); err != nil {
		t.Fatalf("SaveRun(older) failed: %v", err)
	}
	if err := s.SaveRun(ctx, newer, nil); err != nil {
		t.Fatalf("SaveRun(newer) failed: %v", err)
	}

	records, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("run count = %d, expected 2", len(records))
	}
	if records[0].ID != "run-new" || records[1].ID != "run-old" {
		t.Errorf("order = [%s, %s], expected newest first", records[0].ID, records[1].ID)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns(1) failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "run-new" {
		t.Errorf("limited list = %v, expected just run-new", limited)
	}
}

func TestLatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, found, err := s.LatestRun(ctx); err != nil || found {
		t.Fatalf("LatestRun() on empty store = (found=%v, err=%v), expected (false, nil)", found, err)
	}

	if err := s.SaveRun(ctx, createTestRun("run-1"), nil); err != nil {
		t.Fatalf("SaveRun() failed: %v", err)
	}

	record, found, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() failed: %v", err)
	}
	if !found || record.ID != "run-1" {
		t.Errorf("LatestRun() = (%s, %v), expected run-1", record.ID, found)
	}
}
