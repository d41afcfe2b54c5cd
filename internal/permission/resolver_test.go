// ABOUTME: Tests for the permission resolver
// ABOUTME: Covers owner, explicit grant, public, share token, and existence hiding

package permission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/store"
)

func setupResolver(t *testing.T) (*Resolver, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return NewResolver(s), s
}

func seedUser(t *testing.T, s *store.SQLiteStore, email string) *store.User {
	t.Helper()

	now := time.Now().UTC()
	user := &store.User{
		ID: uuid.New().String(), Email: email, PasswordHash: "x",
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func seedBot(t *testing.T, s *store.SQLiteStore, ownerID string, public bool) *store.Bot {
	t.Helper()

	now := time.Now().UTC()
	bot := &store.Bot{
		ID: uuid.New().String(), Name: "Bot", SystemPrompt: "prompt",
		ModelName: "gemini-2.0-flash", OwnerID: ownerID, IsPublic: public,
		CreatedAt: now, UpdatedAt: now,
	}
	if public {
		bot.ShareToken = uuid.New().String()
	}
	require.NoError(t, s.CreateBot(context.Background(), bot))
	return bot
}

func grant(t *testing.T, s *store.SQLiteStore, botID, userID string, level store.PermissionLevel) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, s.UpsertBotPermission(context.Background(), &store.BotPermission{
		BotID: botID, UserID: userID, Level: level,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelNone < LevelView)
	assert.True(t, LevelView < LevelChat)
	assert.True(t, LevelChat < LevelEdit)
}

func TestResolveOwnerGetsEdit(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	bot := seedBot(t, s, owner.ID, false)

	level, err := r.Resolve(context.Background(), owner.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
}

func TestResolveExplicitGrant(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, false)

	grant(t, s, bot.ID, other.ID, store.PermissionChat)

	level, err := r.Resolve(context.Background(), other.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelChat, level)
}

func TestResolvePublicGivesView(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, true)

	level, err := r.Resolve(context.Background(), other.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelView, level)
}

func TestResolvePublicDoesNotDowngradeGrant(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, true)

	grant(t, s, bot.ID, other.ID, store.PermissionEdit)

	level, err := r.Resolve(context.Background(), other.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
}

func TestResolveDefaultNone(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, false)

	level, err := r.Resolve(context.Background(), other.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)
}

func TestResolveMissingBot(t *testing.T) {
	r, s := setupResolver(t)

	user := seedUser(t, s, "user@example.com")

	_, err := r.Resolve(context.Background(), user.ID, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveSeesRevocationImmediately(t *testing.T) {
	r, s := setupResolver(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, false)

	grant(t, s, bot.ID, other.ID, store.PermissionChat)

	level, err := r.Resolve(ctx, other.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelChat, level)

	require.NoError(t, s.DeleteBotPermission(ctx, bot.ID, other.ID))

	level, err = r.Resolve(ctx, other.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)
}

func TestResolveShareToken(t *testing.T) {
	r, s := setupResolver(t)
	ctx := context.Background()

	owner := seedUser(t, s, "owner@example.com")
	bot := seedBot(t, s, owner.ID, true)

	got, err := r.ResolveShareToken(ctx, bot.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, bot.ID, got.ID)

	_, err = r.ResolveShareToken(ctx, "bogus")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = r.ResolveShareToken(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequireHidesExistenceBelowView(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, false)

	// No visibility at all: probe gets not-found, not forbidden
	_, err := r.Require(context.Background(), other.ID, bot.ID, LevelView)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequireForbiddenWhenVisible(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")
	bot := seedBot(t, s, owner.ID, false)

	grant(t, s, bot.ID, other.ID, store.PermissionView)

	_, err := r.Require(context.Background(), other.ID, bot.ID, LevelChat)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRequireSatisfied(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	bot := seedBot(t, s, owner.ID, false)

	level, err := r.Require(context.Background(), owner.ID, bot.ID, LevelEdit)
	require.NoError(t, err)
	assert.Equal(t, LevelEdit, level)
}

func TestResolveAnonymousUser(t *testing.T) {
	r, s := setupResolver(t)

	owner := seedUser(t, s, "owner@example.com")
	private := seedBot(t, s, owner.ID, false)
	public := seedBot(t, s, owner.ID, true)

	level, err := r.Resolve(context.Background(), "", private.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)

	level, err = r.Resolve(context.Background(), "", public.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelView, level)
}
