// ABOUTME: Tests for session read and delete operations
// ABOUTME: Verifies ownership scoping and pagination

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/store"
)

func setupSessions(t *testing.T) (*Sessions, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewSessions(s), s
}

func seedSession(t *testing.T, s *store.SQLiteStore, userID string) *store.Session {
	t.Helper()

	now := time.Now().UTC()
	session := &store.Session{
		ID: uuid.New().String(), UserID: userID,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateSession(context.Background(), session))
	return session
}

func TestMessagesRequireOwnership(t *testing.T) {
	svc, s := setupSessions(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	session := seedSession(t, s, alice.ID)

	require.NoError(t, s.AppendMessage(ctx, &store.Message{
		ID: uuid.New().String(), SessionID: session.ID,
		Role: store.RoleUser, Content: "hi", CreatedAt: time.Now().UTC(),
	}))

	msgs, total, err := svc.Messages(ctx, alice.ID, session.ID, store.MessageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, msgs, 1)

	// Bob can't even tell the session exists
	_, _, err = svc.Messages(ctx, bob.ID, session.ID, store.MessageQuery{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteRequiresOwnership(t *testing.T) {
	svc, s := setupSessions(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	session := seedSession(t, s, alice.ID)

	err := svc.Delete(ctx, bob.ID, session.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, alice.ID, session.ID))

	_, err = s.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListDefaultsLimit(t *testing.T) {
	svc, s := setupSessions(t)
	ctx := context.Background()

	user := seedUser(t, s, "user@example.com")
	seedSession(t, s, user.ID)
	seedSession(t, s, user.ID)

	sessions, err := svc.List(ctx, user.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}
