// ABOUTME: LIKE-based search over a user's messages and session titles
// ABOUTME: Scoped strictly to sessions owned by the querying user

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// likePattern escapes LIKE wildcards in the user's query and wraps it
// for substring matching.
func likePattern(q string) string {
	q = strings.ReplaceAll(q, `\`, `\\`)
	q = strings.ReplaceAll(q, `%`, `\%`)
	q = strings.ReplaceAll(q, `_`, `\_`)
	return "%" + q + "%"
}

// SearchMessages finds messages matching the query within the user's own
// sessions. Returns hits plus the total match count for pagination.
func (s *SQLiteStore) SearchMessages(ctx context.Context, q SearchQuery) ([]*MessageHit, int, error) {
	where := `
		FROM chat_messages m
		JOIN chat_sessions cs ON cs.id = m.session_id
		WHERE cs.user_id = ? AND m.content LIKE ? ESCAPE '\'
	`
	args := []any{q.UserID, likePattern(q.Query)}

	if q.SessionID != "" {
		where += ` AND m.session_id = ?`
		args = append(args, q.SessionID)
	}
	if q.BotID != "" {
		where += ` AND cs.bot_id = ?`
		args = append(args, q.BotID)
	}
	if q.From != nil {
		where += ` AND m.created_at >= ?`
		args = append(args, fmtTime(*q.From))
	}
	if q.To != nil {
		where += ` AND m.created_at <= ?`
		args = append(args, fmtTime(*q.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting message matches: %w", err)
	}

	query := `
		SELECT m.seq, m.id, m.session_id, m.role, m.content, m.token_count, m.created_at, cs.title
	` + where + `
		ORDER BY m.created_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, q.Limit, q.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying message matches: %w", err)
	}
	defer rows.Close()

	var hits []*MessageHit
	for rows.Next() {
		var msg Message
		var tokenCount sql.NullInt64
		var createdAtStr, title string

		err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.SessionID,
			&msg.Role,
			&msg.Content,
			&tokenCount,
			&createdAtStr,
			&title,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning message match: %w", err)
		}

		if tokenCount.Valid {
			tc := int(tokenCount.Int64)
			msg.TokenCount = &tc
		}
		msg.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, 0, fmt.Errorf("parsing created_at: %w", err)
		}

		hits = append(hits, &MessageHit{Message: &msg, SessionTitle: title})
	}
	return hits, total, rows.Err()
}

// SearchSessions finds the user's sessions whose title matches the query.
func (s *SQLiteStore) SearchSessions(ctx context.Context, q SearchQuery) ([]*Session, int, error) {
	where := `
		FROM chat_sessions s
		WHERE s.user_id = ? AND s.title LIKE ? ESCAPE '\'
	`
	args := []any{q.UserID, likePattern(q.Query)}

	if q.BotID != "" {
		where += ` AND s.bot_id = ?`
		args = append(args, q.BotID)
	}
	if q.From != nil {
		where += ` AND s.created_at >= ?`
		args = append(args, fmtTime(*q.From))
	}
	if q.To != nil {
		where += ` AND s.created_at <= ?`
		args = append(args, fmtTime(*q.To))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting session matches: %w", err)
	}

	query := `
		SELECT s.id, s.user_id, s.bot_id, s.title, s.created_at, s.updated_at
	` + where + `
		ORDER BY s.updated_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, q.Limit, q.Skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying session matches: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning session match: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, total, rows.Err()
}
