package history

import (
	"context"
	"fmt"
	"time"
)

// RecordRun inserts a run and all of its results in one transaction.
// Either the whole run lands in the ledger or none of it does.
//
// NOTE: callers treat ledger failures as non-fatal. A broken --db path
// must not turn a passing harness run into a failing one.
func (s *Store) RecordRun(ctx context.Context, run Run, results []Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, started_at, duration_ms, mode, workers, filter, passed, failed, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Duration.Milliseconds(),
		run.Mode,
		run.Workers,
		run.Filter,
		run.Passed,
		run.Failed,
		run.Total,
	)
	if err != nil {
		return fmt.Errorf("record run: insert run: %w", err)
	}

	for _, res := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results
			(run_id, position, name, status, duration_ms, tool_exit, diff_bytes, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			res.Position,
			res.Name,
			res.Status,
			res.Duration.Milliseconds(),
			res.ToolExit,
			res.DiffBytes,
			res.Detail,
		)
		if err != nil {
			return fmt.Errorf("record run: insert result %q: %w", res.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}
