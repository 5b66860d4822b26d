package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soulsync-app/soulsync/internal/types"
)

// SaveReflection inserts or updates a reflection. A missing id means a new
// document; an existing id overwrites in place (merge happens caller-side).
func (s *Store) SaveReflection(ctx context.Context, r *types.Reflection) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid reflection: %w", err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = time.Now()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal reflection: %w", err)
	}

	query := `
	INSERT INTO reflections (id, user_id, date, created_at, data)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		date = excluded.date,
		data = excluded.data
	`
	_, err = s.conn.ExecContext(ctx, query,
		r.ID, r.UserID, r.Date, r.CreatedAt.Format(time.RFC3339), string(data))
	if err != nil {
		return fmt.Errorf("failed to save reflection: %w", err)
	}

	s.publish(ctx, CollectionReflections)
	return nil
}

// GetReflection retrieves a reflection by document id.
func (s *Store) GetReflection(ctx context.Context, id string) (*types.Reflection, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM reflections WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reflection %s: %w", id, err)
	}
	var r types.Reflection
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reflection %s: %w", id, err)
	}
	return &r, nil
}

// ListReflections returns both partners' reflections, newest day first,
// falling back to creation time when two entries share a date.
func (s *Store) ListReflections(ctx context.Context) ([]types.Reflection, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT data FROM reflections ORDER BY date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reflections: %w", err)
	}
	defer rows.Close()
	return unmarshalRows[types.Reflection](rows, "reflection")
}

// SaveDinnerPlan upserts the plan for its calendar day. There is exactly
// one plan per day per household; saving overwrites, nothing is versioned.
func (s *Store) SaveDinnerPlan(ctx context.Context, p *types.DinnerPlan) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid dinner plan: %w", err)
	}
	p.UpdatedAt = time.Now()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal dinner plan: %w", err)
	}

	query := `
	INSERT INTO dinner_plans (id, updated_at, data)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		updated_at = excluded.updated_at,
		data = excluded.data
	`
	_, err = s.conn.ExecContext(ctx, query, p.ID, p.UpdatedAt.Format(time.RFC3339), string(data))
	if err != nil {
		return fmt.Errorf("failed to save dinner plan: %w", err)
	}

	s.publish(ctx, CollectionDinnerPlans)
	return nil
}

// GetDinnerPlan retrieves the plan for a calendar day.
func (s *Store) GetDinnerPlan(ctx context.Context, day string) (*types.DinnerPlan, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM dinner_plans WHERE id = ?`, day).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dinner plan %s: %w", day, err)
	}
	var p types.DinnerPlan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dinner plan %s: %w", day, err)
	}
	return &p, nil
}

// ListDinnerPlans returns all plans ordered by day ascending.
func (s *Store) ListDinnerPlans(ctx context.Context) ([]types.DinnerPlan, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT data FROM dinner_plans ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dinner plans: %w", err)
	}
	defer rows.Close()
	return unmarshalRows[types.DinnerPlan](rows, "dinner plan")
}

// SaveDinnerPreferences upserts one partner's preferences, keyed by user id.
func (s *Store) SaveDinnerPreferences(ctx context.Context, userID string, p *types.DinnerPreferences) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	p.ID = userID

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	query := `
	INSERT INTO dinner_preferences (id, data) VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`
	if _, err := s.conn.ExecContext(ctx, query, userID, string(data)); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	s.publish(ctx, CollectionPreferences)
	return nil
}

// GetDinnerPreferences retrieves one partner's preferences.
func (s *Store) GetDinnerPreferences(ctx context.Context, userID string) (*types.DinnerPreferences, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM dinner_preferences WHERE id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences for %s: %w", userID, err)
	}
	var p types.DinnerPreferences
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return &p, nil
}

// ListDinnerPreferences returns all stored preference documents.
func (s *Store) ListDinnerPreferences(ctx context.Context) ([]types.DinnerPreferences, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT data FROM dinner_preferences ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()
	return unmarshalRows[types.DinnerPreferences](rows, "preferences")
}

// AddFeedback records a feature suggestion with status "new".
func (s *Store) AddFeedback(ctx context.Context, f *types.FeatureFeedback) error {
	if f.Text == "" {
		return fmt.Errorf("feedback text is required")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = "new"
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO feedback (id, created_at, data) VALUES (?, ?, ?)`,
		f.ID, f.CreatedAt.Format(time.RFC3339), string(data))
	if err != nil {
		return fmt.Errorf("failed to add feedback: %w", err)
	}

	s.publish(ctx, CollectionFeedback)
	return nil
}

// ListFeedback returns feedback newest first.
func (s *Store) ListFeedback(ctx context.Context) ([]types.FeatureFeedback, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT data FROM feedback ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	return unmarshalRows[types.FeatureFeedback](rows, "feedback")
}

// SaveChatHistory replaces the single assistant conversation document.
func (s *Store) SaveChatHistory(ctx context.Context, messages []types.ChatMessage) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}

	query := `
	INSERT INTO chat_history (id, data) VALUES (1, ?)
	ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`
	if _, err := s.conn.ExecContext(ctx, query, string(data)); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}

	s.publish(ctx, CollectionChat)
	return nil
}

// ChatHistory returns the assistant conversation, empty when none exists.
func (s *Store) ChatHistory(ctx context.Context) ([]types.ChatMessage, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, `SELECT data FROM chat_history WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []types.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	var messages []types.ChatMessage
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat history: %w", err)
	}
	return messages, nil
}

func unmarshalRows[T any](rows *sql.Rows, kind string) ([]T, error) {
	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", kind, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", kind, err)
	}
	return out, nil
}
