package store

import (
	"context"
	"fmt"

	"github.com/roach88/exhume/internal/state"
)

// RunReplay is the full stored picture of a run for re-rendering or
// diffing without touching the original script tree.
type RunReplay struct {
	Record     RunRecord                   `json:"record"`
	Events     []state.SubsystemDeltaEvent `json:"events"`
	HostEvents []string                    `json:"host_events"`
	Ordered    bool                        `json:"ordered"` // true when Events respect the replay total order
}

// ReplayRun reconstructs a run from storage and checks that its delta
// events still respect the replay order they were folded in.
func (s *Store) ReplayRun(ctx context.Context, runID string) (RunReplay, error) {
	record, err := s.LoadRun(ctx, runID)
	if err != nil {
		return RunReplay{}, fmt.Errorf("replay run: %w", err)
	}

	events, err := s.LoadDeltaEvents(ctx, runID)
	if err != nil {
		return RunReplay{}, fmt.Errorf("replay run: %w", err)
	}

	hostEvents, err := s.LoadHostEvents(ctx, runID)
	if err != nil {
		return RunReplay{}, fmt.Errorf("replay run: %w", err)
	}

	replay := RunReplay{
		Record:     record,
		Events:     events,
		HostEvents: hostEvents,
		Ordered:    VerifyEventOrder(events) == nil,
	}
	return replay, nil
}

// VerifyEventOrder checks that events are sorted by trigger sequence,
// subsystem rank, target, call index, then method. Aggregate events carry
// no call index and sort before indexed events for the same target.
// Returns an error naming the first out-of-order position.
func VerifyEventOrder(events []state.SubsystemDeltaEvent) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(events[i-1], events[i]) > 0 {
			return fmt.Errorf("event %d out of order: %s/%s.%s before %s/%s.%s",
				i,
				events[i-1].Subsystem, events[i-1].Target, events[i-1].Method,
				events[i].Subsystem, events[i].Target, events[i].Method)
		}
	}
	return nil
}

func compareEvents(a, b state.SubsystemDeltaEvent) int {
	if a.TriggerSequence != b.TriggerSequence {
		return a.TriggerSequence - b.TriggerSequence
	}
	if ra, rb := a.Subsystem.Rank(), b.Subsystem.Rank(); ra != rb {
		return ra - rb
	}
	if a.Target != b.Target {
		if a.Target < b.Target {
			return -1
		}
		return 1
	}
	if ia, ib := callIndexValue(a.CallIndex), callIndexValue(b.CallIndex); ia != ib {
		return ia - ib
	}
	if a.Method != b.Method {
		if a.Method < b.Method {
			return -1
		}
		return 1
	}
	return 0
}

func callIndexValue(index *int) int {
	if index == nil {
		return -1
	}
	return *index
}
