// ABOUTME: Chat session and message persistence methods for SQLiteStore
// ABOUTME: AppendMessage assigns sequence numbers and bumps the session atomically

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSession inserts a new chat session
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO chat_sessions (id, user_id, bot_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		nullString(session.BotID),
		session.Title,
		fmtTime(session.CreatedAt),
		fmtTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "user_id", session.UserID)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, user_id, bot_id, title, created_at, updated_at
		FROM chat_sessions
		WHERE id = ?
	`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return session, nil
}

// SetSessionTitle updates a session's title.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) SetSessionTitle(ctx context.Context, id, title string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("updating session title: %w", err)
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

// ListSessions returns a user's sessions most-recently-active first,
// each with its message count.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string, skip, limit int) ([]*Session, error) {
	query := `
		SELECT s.id, s.user_id, s.bot_id, s.title, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM chat_messages m WHERE m.session_id = s.id)
		FROM chat_sessions s
		WHERE s.user_id = ?
		ORDER BY s.updated_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var session Session
		var botID sql.NullString
		var createdAtStr, updatedAtStr string

		err := rows.Scan(
			&session.ID,
			&session.UserID,
			&botID,
			&session.Title,
			&createdAtStr,
			&updatedAtStr,
			&session.MessageCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}

		session.BotID = botID.String
		session.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		session.UpdatedAt, err = parseTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session, its messages, and feedback on those
// messages in one transaction.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM message_feedback
		WHERE message_id IN (SELECT id FROM chat_messages WHERE session_id = ?)
	`, id); err != nil {
		return fmt.Errorf("deleting message feedback: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("deleted session", "id", id)
	return nil
}

func scanSession(row scanner) (*Session, error) {
	var session Session
	var botID sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&botID,
		&session.Title,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	session.BotID = botID.String
	session.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	session.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &session, nil
}

// AppendMessage inserts a message and bumps the session's updated_at in one
// transaction. The store assigns Seq; it is written back to msg on success.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var tokenCount any
	if msg.TokenCount != nil {
		tokenCount = *msg.TokenCount
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.SessionID,
		msg.Role,
		msg.Content,
		tokenCount,
		fmtTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading assigned sequence: %w", err)
	}

	bump, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		fmtTime(msg.CreatedAt), msg.SessionID)
	if err != nil {
		return fmt.Errorf("bumping session: %w", err)
	}

	rows, err := bump.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	msg.Seq = seq
	return nil
}

// SetMessageTokenCount records the token count for an already-saved message
func (s *SQLiteStore) SetMessageTokenCount(ctx context.Context, id string, tokens int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_messages SET token_count = ? WHERE id = ?`, tokens, id)
	if err != nil {
		return fmt.Errorf("updating token count: %w", err)
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

// GetMessage retrieves a message by ID.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT seq, id, session_id, role, content, token_count, created_at
		FROM chat_messages
		WHERE id = ?
	`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a session's messages in sequence order with optional
// role filtering and pagination.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, q MessageQuery) ([]*Message, error) {
	query := `
		SELECT seq, id, session_id, role, content, token_count, created_at
		FROM chat_messages
		WHERE session_id = ?
	`
	args := []any{sessionID}

	if q.Role != "" {
		query += ` AND role = ?`
		args = append(args, q.Role)
	}

	query += ` ORDER BY seq`

	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Skip)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CountMessages returns the number of messages in a session
func (s *SQLiteStore) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

func scanMessage(row scanner) (*Message, error) {
	var msg Message
	var tokenCount sql.NullInt64
	var createdAtStr string

	err := row.Scan(
		&msg.Seq,
		&msg.ID,
		&msg.SessionID,
		&msg.Role,
		&msg.Content,
		&tokenCount,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	if tokenCount.Valid {
		tc := int(tokenCount.Int64)
		msg.TokenCount = &tc
	}

	msg.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &msg, nil
}
