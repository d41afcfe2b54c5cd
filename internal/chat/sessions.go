// ABOUTME: Session read and delete operations scoped to the owning user
// ABOUTME: Foreign sessions surface as not found, never forbidden

package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/botforge/botforge/internal/store"
)

// Sessions provides read and delete access to a user's own sessions
type Sessions struct {
	store  store.Store
	logger *slog.Logger
}

// NewSessions creates the session access layer
func NewSessions(s store.Store) *Sessions {
	return &Sessions{
		store:  s,
		logger: slog.Default().With("component", "sessions"),
	}
}

// List returns the user's sessions, most recently active first
func (s *Sessions) List(ctx context.Context, userID string, skip, limit int) ([]*store.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListSessions(ctx, userID, skip, limit)
}

// Messages returns a session's transcript in order. The session must
// belong to the caller; anyone else's session doesn't exist as far as
// they can tell.
func (s *Sessions) Messages(ctx context.Context, userID, sessionID string, q store.MessageQuery) ([]*store.Message, int, error) {
	if err := s.requireOwn(ctx, userID, sessionID); err != nil {
		return nil, 0, err
	}

	msgs, err := s.store.ListMessages(ctx, sessionID, q)
	if err != nil {
		return nil, 0, fmt.Errorf("listing messages: %w", err)
	}

	total, err := s.store.CountMessages(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting messages: %w", err)
	}

	return msgs, total, nil
}

// Delete removes a session and its transcript
func (s *Sessions) Delete(ctx context.Context, userID, sessionID string) error {
	if err := s.requireOwn(ctx, userID, sessionID); err != nil {
		return err
	}

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	s.logger.Info("session deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

func (s *Sessions) requireOwn(ctx context.Context, userID, sessionID string) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return store.ErrNotFound
	}
	return nil
}
