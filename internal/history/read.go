package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"
)

// ScenarioRecord pairs a result with the run it belongs to.
type ScenarioRecord struct {
	RunID     string
	StartedAt time.Time
	Result
}

// RecentRuns returns up to limit runs, newest first. Version 7 run IDs
// break ties for runs that share a timestamp.
//
// Returns an empty slice (not nil) when the ledger has no runs.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, mode, workers, filter, passed, failed, total
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []Run{}
	}

	return runs, nil
}

// ScenarioHistory returns results whose scenario name matches re,
// newest run first and table order within a run, capped at limit.
// A nil re matches every scenario.
//
// The name match runs here rather than in SQL so that history filters
// behave exactly like the harness's own --tests expressions.
func (s *Store) ScenarioHistory(ctx context.Context, re *regexp.Regexp, limit int) ([]ScenarioRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at,
		       res.position, res.name, res.status, res.duration_ms, res.tool_exit, res.diff_bytes, res.detail
		FROM results res
		JOIN runs r ON r.id = res.run_id
		ORDER BY r.started_at DESC, r.id DESC, res.position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	records := []ScenarioRecord{}
	for rows.Next() {
		rec, err := scanScenarioRecord(rows)
		if err != nil {
			return nil, err
		}
		if re != nil && !re.MatchString(rec.Name) {
			continue
		}
		records = append(records, rec)
		if len(records) == limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}

	return records, nil
}

// scanRun scans a row into a Run struct.
func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var startedAt string
	var durationMS int64

	if err := rows.Scan(
		&run.ID, &startedAt, &durationMS, &run.Mode, &run.Workers,
		&run.Filter, &run.Passed, &run.Failed, &run.Total,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = ts
	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, nil
}

// scanScenarioRecord scans a joined results row into a ScenarioRecord.
func scanScenarioRecord(rows *sql.Rows) (ScenarioRecord, error) {
	var rec ScenarioRecord
	var startedAt string
	var durationMS int64

	if err := rows.Scan(
		&rec.RunID, &startedAt,
		&rec.Position, &rec.Name, &rec.Status, &durationMS, &rec.ToolExit, &rec.DiffBytes, &rec.Detail,
	); err != nil {
		return ScenarioRecord{}, fmt.Errorf("scan result: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return ScenarioRecord{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	rec.StartedAt = ts
	rec.Duration = time.Duration(durationMS) * time.Millisecond

	return rec, nil
}
