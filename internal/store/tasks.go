package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soulsync-app/soulsync/internal/types"
)

// TaskUpdate is a partial change set for a task. Nil fields are untouched.
type TaskUpdate struct {
	Content       *string
	Status        *types.TaskStatus
	Owner         *string
	Reminder      *time.Time
	ClearReminder bool
}

// InsertTask persists a new task document, assigning an id and creation
// time when missing. The caller decides whether an ExternalTaskID is set;
// a task created while disconnected never gains one retroactively.
func (s *Store) InsertTask(ctx context.Context, t *types.Task) error {
	if t.Status == "" {
		t.Status = types.StatusTodo
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Order == 0 {
		t.Order = t.CreatedAt.UnixMilli()
	}

	query := `
	INSERT INTO tasks (id, external_task_id, content, status, owner, sort_order, reminder, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.conn.ExecContext(ctx, query,
		t.ID,
		nullString(t.ExternalTaskID),
		t.Content,
		string(t.Status),
		t.Owner,
		t.Order,
		timeToNullString(t.Reminder),
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	s.publish(ctx, CollectionTasks)
	return nil
}

// GetTask retrieves a single task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, external_task_id, content, status, owner, sort_order, reminder, created_at
	FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns all tasks ordered for display: sort_order ascending
// with id as the deterministic tie-break (order values can collide after
// many pairwise swaps).
func (s *Store) ListTasks(ctx context.Context) ([]types.Task, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, external_task_id, content, status, owner, sort_order, reminder, created_at
	FROM tasks ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []types.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask applies a partial update and returns the updated document.
func (s *Store) UpdateTask(ctx context.Context, id string, u TaskUpdate) (*types.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Content != nil {
		t.Content = *u.Content
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Owner != nil {
		t.Owner = *u.Owner
	}
	if u.ClearReminder {
		t.Reminder = nil
	} else if u.Reminder != nil {
		t.Reminder = u.Reminder
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task update: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
	UPDATE tasks SET content = ?, status = ?, owner = ?, reminder = ? WHERE id = ?`,
		t.Content, string(t.Status), t.Owner, timeToNullString(t.Reminder), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}

	s.publish(ctx, CollectionTasks)
	return t, nil
}

// DeleteTask removes a task. Deleting a missing task is not an error.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	s.publish(ctx, CollectionTasks)
	return nil
}

// SwapTaskOrder exchanges the order keys of two tasks. The swap is O(1)
// regardless of list length; the rest of the list is never renumbered.
func (s *Store) SwapTaskOrder(ctx context.Context, aID, bID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback()

	var aOrder, bOrder int64
	if err := tx.QueryRowContext(ctx, `SELECT sort_order FROM tasks WHERE id = ?`, aID).Scan(&aOrder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read task %s: %w", aID, err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT sort_order FROM tasks WHERE id = ?`, bID).Scan(&bOrder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read task %s: %w", bID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET sort_order = ? WHERE id = ?`, bOrder, aID); err != nil {
		return fmt.Errorf("failed to reorder task %s: %w", aID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET sort_order = ? WHERE id = ?`, aOrder, bID); err != nil {
		return fmt.Errorf("failed to reorder task %s: %w", bID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	s.publish(ctx, CollectionTasks)
	return nil
}

func scanTask(row interface{ Scan(...interface{}) error }) (*types.Task, error) {
	var t types.Task
	var externalID, reminder sql.NullString
	var status, createdAt string

	err := row.Scan(&t.ID, &externalID, &t.Content, &status, &t.Owner, &t.Order, &reminder, &createdAt)
	if err != nil {
		return nil, err
	}

	t.ExternalTaskID = externalID.String
	t.Status = types.TaskStatus(status)
	t.Reminder = nullStringToTime(reminder)
	if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
