package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/timeline"
)

// RunRecord is one persisted analysis pass over a data root.
type RunRecord struct {
	ID             string               `json:"id"`
	CreatedAt      time.Time            `json:"created_at"`
	DataRoot       string               `json:"data_root"`
	DefaultSet     string               `json:"default_set"`
	DeveloperMode  bool                 `json:"developer_mode"`
	IntroScheduled bool                 `json:"intro_scheduled"`
	Summary        timeline.BootSummary `json:"summary"`
}

// NewRunRecord stamps a fresh run with a UUID and the current time.
func NewRunRecord(dataRoot string, summary timeline.BootSummary) RunRecord {
	return RunRecord{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		DataRoot:       dataRoot,
		DefaultSet:     summary.DefaultSet,
		DeveloperMode:  summary.DeveloperMode,
		IntroScheduled: summary.TimeToRunIntro,
		Summary:        summary,
	}
}

// SaveRun writes a run record and its ordered delta events in one
// transaction. ON CONFLICT(id) DO NOTHING makes re-saving the same run a
// no-op, so a crash between save and render can be retried safely.
func (s *Store) SaveRun(ctx context.Context, record RunRecord, events []state.SubsystemDeltaEvent) error {
	summaryJSON, err := marshalSummary(record.Summary)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, data_root, default_set, developer_mode, intro_scheduled, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		record.ID,
		record.CreatedAt.Format(time.RFC3339Nano),
		record.DataRoot,
		record.DefaultSet,
		record.DeveloperMode,
		record.IntroScheduled,
		summaryJSON,
	)
	if err != nil {
		return fmt.Errorf("save run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Run already persisted, events went with it.
		return tx.Commit()
	}

	for position, event := range events {
		argsJSON, err := marshalArguments(event.Arguments)
		if err != nil {
			return fmt.Errorf("save run: event %d: %w", position, err)
		}
		refJSON, err := marshalReference(event.TriggeredBy)
		if err != nil {
			return fmt.Errorf("save run: event %d: %w", position, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO delta_events
			(run_id, position, trigger_sequence, subsystem, target, method, arguments, count, call_index, triggered_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			record.ID,
			position,
			event.TriggerSequence,
			string(event.Subsystem),
			event.Target,
			event.Method,
			argsJSON,
			event.Count,
			event.CallIndex,
			refJSON,
		)
		if err != nil {
			return fmt.Errorf("save run: insert event %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}

	return nil
}

// WriteHostEvents appends the script host event log for a run.
// Uses ON CONFLICT DO NOTHING on (run_id, seq) so a retried write after a
// partial failure never duplicates lines.
func (s *Store) WriteHostEvents(ctx context.Context, runID string, events []string) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write host events: begin tx: %w", err)
	}
	defer tx.Rollback()

	for seq, event := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO host_events (run_id, seq, event)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING
		`, runID, seq, event)
		if err != nil {
			return fmt.Errorf("write host events: insert %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write host events: commit: %w", err)
	}

	return nil
}

// DeleteRun removes a run and, through foreign keys, its events.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
