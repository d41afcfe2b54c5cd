// ABOUTME: Bot access resolution - owner, explicit grants, public flag, share tokens
// ABOUTME: Single source of truth for the NONE < VIEW < CHAT < EDIT ordering

package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botforge/botforge/internal/store"
)

// ErrForbidden is returned when the caller's level is below what an
// operation requires.
var ErrForbidden = errors.New("forbidden")

// Level is an ordered access level on a bot
type Level int

const (
	LevelNone Level = iota
	LevelView
	LevelChat
	LevelEdit
)

// String returns the wire representation of a level
func (l Level) String() string {
	switch l {
	case LevelView:
		return "view"
	case LevelChat:
		return "chat"
	case LevelEdit:
		return "edit"
	default:
		return "none"
	}
}

// ParseLevel converts a stored grant level into an ordered Level
func ParseLevel(s store.PermissionLevel) (Level, error) {
	switch s {
	case store.PermissionView:
		return LevelView, nil
	case store.PermissionChat:
		return LevelChat, nil
	case store.PermissionEdit:
		return LevelEdit, nil
	default:
		return LevelNone, fmt.Errorf("unknown permission level %q", s)
	}
}

// Resolver computes a user's effective level on a bot.
// It never caches: every call reads the current rows, so revocations
// take effect immediately.
type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

// NewResolver creates a permission resolver backed by the given store
func NewResolver(s store.Store) *Resolver {
	return &Resolver{
		store:  s,
		logger: slog.Default().With("component", "permission"),
	}
}

// Resolve computes the effective level for userID on botID.
// Precedence: owner > explicit grant > public flag > none.
// A missing bot returns store.ErrNotFound regardless of the caller.
func (r *Resolver) Resolve(ctx context.Context, userID, botID string) (Level, error) {
	bot, err := r.store.GetBot(ctx, botID)
	if err != nil {
		return LevelNone, err
	}
	return r.resolveBot(ctx, userID, bot)
}

// ResolveBot computes the effective level when the caller already holds
// the bot row, avoiding a second lookup.
func (r *Resolver) ResolveBot(ctx context.Context, userID string, bot *store.Bot) (Level, error) {
	return r.resolveBot(ctx, userID, bot)
}

func (r *Resolver) resolveBot(ctx context.Context, userID string, bot *store.Bot) (Level, error) {
	if userID != "" && bot.OwnerID == userID {
		return LevelEdit, nil
	}

	level := LevelNone

	if userID != "" {
		perm, err := r.store.GetBotPermission(ctx, bot.ID, userID)
		if err == nil {
			level, err = ParseLevel(perm.Level)
			if err != nil {
				return LevelNone, err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return LevelNone, err
		}
	}

	// A public bot guarantees at least VIEW, but never downgrades a grant
	if bot.IsPublic && level < LevelView {
		level = LevelView
	}

	return level, nil
}

// ResolveShareToken looks up the bot behind a share link. The token grants
// VIEW to anyone holding it; an unknown token is reported as not found,
// never forbidden.
func (r *Resolver) ResolveShareToken(ctx context.Context, token string) (*store.Bot, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return r.store.GetBotByShareToken(ctx, token)
}

// Require resolves the caller's level and returns ErrForbidden when it
// falls below need. A missing bot still surfaces as store.ErrNotFound so
// callers without VIEW can't probe for existence.
func (r *Resolver) Require(ctx context.Context, userID, botID string, need Level) (Level, error) {
	level, err := r.Resolve(ctx, userID, botID)
	if err != nil {
		return LevelNone, err
	}
	if level < need {
		r.logger.Debug("access denied",
			"user_id", userID, "bot_id", botID,
			"have", level.String(), "need", need.String())
		if level < LevelView {
			// No visibility at all: don't reveal the bot exists
			return LevelNone, store.ErrNotFound
		}
		return level, ErrForbidden
	}
	return level, nil
}
