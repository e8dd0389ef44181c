package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unmark/internal/progress"
)

// Write overwrites the progress record for taskID.
func (s *Store) Write(ctx context.Context, taskID string, value float64, status progress.Status) error {
	if _, err := s.exec(
		ctx,
		`INSERT INTO progress (task_id, value, status, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(task_id) DO UPDATE SET
             value = excluded.value, status = excluded.status, updated_at = excluded.updated_at`,
		taskID,
		value,
		status,
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// Read returns the last progress record for taskID or a not-found record.
func (s *Store) Read(ctx context.Context, taskID string) (progress.Record, error) {
	var (
		value      float64
		status     string
		updatedRaw string
	)
	err := s.db.QueryRowContext(
		orBackground(ctx),
		`SELECT value, status, updated_at FROM progress WHERE task_id = ?`,
		taskID,
	).Scan(&value, &status, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.NotFound(taskID), nil
	}
	if err != nil {
		return progress.Record{}, fmt.Errorf("read progress: %w", err)
	}
	record := progress.Record{TaskID: taskID, Progress: value, Status: progress.Status(status)}
	if ts, err := parseTimeString(updatedRaw); err == nil {
		record.Timestamp = ts
	}
	return record, nil
}

var _ progress.Store = (*Store)(nil)
