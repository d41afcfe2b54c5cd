// ABOUTME: Token usage log persistence for SQLiteStore
// ABOUTME: One row per completed conversation turn, aggregated per user

package store

import (
	"context"
	"fmt"
	"time"
)

// SaveUsage records token consumption for one completed turn
func (s *SQLiteStore) SaveUsage(ctx context.Context, usage *UsageLog) error {
	query := `
		INSERT INTO usage_logs (id, user_id, session_id, bot_id, model_name,
		                        prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		usage.ID,
		usage.UserID,
		usage.SessionID,
		nullString(usage.BotID),
		usage.ModelName,
		usage.PromptTokens,
		usage.CompletionTokens,
		usage.TotalTokens,
		fmtTime(usage.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting usage log: %w", err)
	}
	return nil
}

// GetUsageSummary aggregates a user's usage logs, optionally from a cutoff time
func (s *SQLiteStore) GetUsageSummary(ctx context.Context, userID string, since *time.Time) (*UsageSummary, error) {
	query := `
		SELECT COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COUNT(*)
		FROM usage_logs
		WHERE user_id = ?
	`
	args := []any{userID}

	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, fmtTime(*since))
	}

	var summary UsageSummary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&summary.PromptTokens,
		&summary.CompletionTokens,
		&summary.TotalTokens,
		&summary.RequestCount,
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage summary: %w", err)
	}
	return &summary, nil
}
