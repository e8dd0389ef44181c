package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Create inserts a new task. CreatedAt and UpdatedAt are stamped when zero.
func (s *Store) Create(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if task.ID == "" {
		return errors.New("task id is required")
	}
	if _, ok := ParseKind(string(task.Kind)); !ok {
		return fmt.Errorf("task kind %q is not supported", task.Kind)
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = StatusQueued
	}

	if _, err := s.exec(
		ctx,
		`INSERT INTO tasks (
            id, kind, status, input_path, output_path, watermark_type,
            error_kind, error_message, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Kind,
		task.Status,
		nullableString(task.InputPath),
		nullableString(task.OutputPath),
		nullableString(task.WatermarkType),
		nullableString(task.ErrorKind),
		nullableString(task.ErrorMessage),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID fetches a task by identifier. A missing task returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(orBackground(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// SetStatus moves a task to status without touching its error fields.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.exec(
		ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireRow(res, id)
}

// MarkFailed records a terminal failure with its classification.
func (s *Store) MarkFailed(ctx context.Context, id, errorKind, message string) error {
	res, err := s.exec(
		ctx,
		`UPDATE tasks SET status = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(errorKind),
		nullableString(message),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return requireRow(res, id)
}

// List returns tasks newest first, optionally filtered by status. A limit of
// zero or less returns every match.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(orBackground(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
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

// Remove deletes a task and its progress record.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	ctx = orBackground(ctx)
	var removed int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE task_id = ?`, id); err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("remove task: %w", err)
	}
	return removed > 0, nil
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return nil
}

// ErrTaskNotFound is returned by updates that match no task row.
var ErrTaskNotFound = errors.New("task not found")
