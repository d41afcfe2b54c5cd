// ABOUTME: Message feedback persistence for SQLiteStore
// ABOUTME: One rating row per (message, user), upserted on repeat submissions

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertFeedback creates or replaces a user's rating of a message
func (s *SQLiteStore) UpsertFeedback(ctx context.Context, fb *Feedback) error {
	query := `
		INSERT INTO message_feedback (message_id, user_id, rating, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, user_id) DO UPDATE SET
			rating = excluded.rating,
			comment = excluded.comment,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		fb.MessageID,
		fb.UserID,
		fb.Rating,
		fb.Comment,
		fmtTime(fb.CreatedAt),
		fmtTime(fb.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting feedback: %w", err)
	}

	s.logger.Debug("upserted feedback", "message_id", fb.MessageID, "rating", fb.Rating)
	return nil
}

// GetFeedback retrieves a user's rating of a message.
// Returns ErrNotFound when the user hasn't rated the message.
func (s *SQLiteStore) GetFeedback(ctx context.Context, messageID, userID string) (*Feedback, error) {
	query := `
		SELECT message_id, user_id, rating, comment, created_at, updated_at
		FROM message_feedback
		WHERE message_id = ? AND user_id = ?
	`

	var fb Feedback
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, messageID, userID).Scan(
		&fb.MessageID,
		&fb.UserID,
		&fb.Rating,
		&fb.Comment,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}

	fb.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	fb.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &fb, nil
}

// DeleteFeedback removes a user's rating of a message.
// Returns ErrNotFound when no rating exists.
func (s *SQLiteStore) DeleteFeedback(ctx context.Context, messageID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM message_feedback WHERE message_id = ? AND user_id = ?`,
		messageID, userID)
	if err != nil {
		return fmt.Errorf("deleting feedback: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFeedbackSummary aggregates the ratings a user has submitted
func (s *SQLiteStore) GetFeedbackSummary(ctx context.Context, userID string) (*FeedbackSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN rating = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN rating = -1 THEN 1 ELSE 0 END), 0)
		FROM message_feedback
		WHERE user_id = ?
	`

	var summary FeedbackSummary
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&summary.Total,
		&summary.Positive,
		&summary.Negative,
	)
	if err != nil {
		return nil, fmt.Errorf("querying feedback summary: %w", err)
	}
	return &summary, nil
}
