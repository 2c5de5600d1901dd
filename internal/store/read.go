package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/exhume/internal/classify"
	"github.com/roach88/exhume/internal/state"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("run not found")

// LoadRun fetches a run record by ID.
func (s *Store) LoadRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, data_root, default_set, developer_mode, intro_scheduled, summary
		FROM runs WHERE id = ?
	`, runID)

	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("load run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	return record, nil
}

// LatestRun fetches the most recently created run, if any.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, data_root, default_set, developer_mode, intro_scheduled, summary
		FROM runs ORDER BY created_at DESC, id DESC LIMIT 1
	`)

	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("latest run: %w", err)
	}
	return record, true, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, created_at, data_root, default_set, developer_mode, intro_scheduled, summary
		FROM runs ORDER BY created_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// LoadDeltaEvents returns a run's delta events in their stored replay order.
func (s *Store) LoadDeltaEvents(ctx context.Context, runID string) ([]state.SubsystemDeltaEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trigger_sequence, subsystem, target, method, arguments, count, call_index, triggered_by
		FROM delta_events WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load delta events: %w", err)
	}
	defer rows.Close()

	events := []state.SubsystemDeltaEvent{}
	for rows.Next() {
		var (
			event     state.SubsystemDeltaEvent
			subsystem string
			argsJSON  string
			refJSON   string
			callIndex sql.NullInt64
		)
		if err := rows.Scan(
			&event.TriggerSequence,
			&subsystem,
			&event.Target,
			&event.Method,
			&argsJSON,
			&event.Count,
			&callIndex,
			&refJSON,
		); err != nil {
			return nil, fmt.Errorf("load delta events: scan: %w", err)
		}

		event.Subsystem = classify.Subsystem(subsystem)
		if event.Arguments, err = unmarshalArguments(argsJSON); err != nil {
			return nil, fmt.Errorf("load delta events: %w", err)
		}
		if event.TriggeredBy, err = unmarshalReference(refJSON); err != nil {
			return nil, fmt.Errorf("load delta events: %w", err)
		}
		if callIndex.Valid {
			index := int(callIndex.Int64)
			event.CallIndex = &index
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load delta events: %w", err)
	}
	return events, nil
}

// LoadHostEvents returns a run's script host log in append order.
func (s *Store) LoadHostEvents(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event FROM host_events WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("load host events: %w", err)
	}
	defer rows.Close()

	var events []string
	for rows.Next() {
		var event string
		if err := rows.Scan(&event); err != nil {
			return nil, fmt.Errorf("load host events: scan: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load host events: %w", err)
	}
	return events, nil
}

// scanner covers sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		record      RunRecord
		createdAt   string
		summaryJSON string
	)
	if err := row.Scan(
		&record.ID,
		&createdAt,
		&record.DataRoot,
		&record.DefaultSet,
		&record.DeveloperMode,
		&record.IntroScheduled,
		&summaryJSON,
	); err != nil {
		return RunRecord{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("parse created_at: %w", err)
	}
	record.CreatedAt = parsed

	if record.Summary, err = unmarshalSummary(summaryJSON); err != nil {
		return RunRecord{}, err
	}
	return record, nil
}
