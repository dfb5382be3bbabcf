package database

import (
	"context"
	"fmt"
	"time"

	"yoyaku/internal/models"
)

// CreateFeedback appends a feedback entry. Feedback is never updated or
// deleted.
func (db *DB) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().In(db.loc)
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO feedback (text, created_at) VALUES (?, ?)`,
		f.Text, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	f.ID = id
	return nil
}

// ListFeedback returns all feedback entries, newest first.
func (db *DB) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, text, created_at FROM feedback ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var items []models.Feedback
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.Text, &f.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}
