package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResetStuckProcessing fails tasks left queued or processing by a previous
// daemon run. Their progress records receive the failure sentinel so pollers
// stop waiting. Returns the affected task ids.
func (s *Store) ResetStuckProcessing(ctx context.Context) ([]string, error) {
	ctx = orBackground(ctx)
	var ids []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE status IN (?, ?)`, StatusQueued, StatusProcessing)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return err
		}

		now := formatTime(time.Now())
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tasks SET status = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE id = ?`,
				StatusFailed, "interrupted", InterruptedReason, now, id,
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO progress (task_id, value, status, updated_at) VALUES (?, ?, ?, ?)
                 ON CONFLICT(task_id) DO UPDATE SET value = excluded.value, status = excluded.status, updated_at = excluded.updated_at`,
				id, -1.0, StatusFailed, now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reset stuck tasks: %w", err)
	}
	return ids, nil
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(orBackground(ctx), `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// FinishedBefore returns terminal tasks last updated before cutoff.
func (s *Store) FinishedBefore(ctx context.Context, cutoff time.Time) ([]*Task, error) {
	rows, err := s.db.QueryContext(
		orBackground(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE status IN (?, ?) AND updated_at < ? ORDER BY updated_at`,
		StatusCompleted,
		StatusFailed,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("query expired tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
