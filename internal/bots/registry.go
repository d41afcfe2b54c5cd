// ABOUTME: Bot registry service - lifecycle, sharing, and visibility operations
// ABOUTME: All access decisions delegate to the permission resolver

package bots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/botforge/botforge/internal/permission"
	"github.com/botforge/botforge/internal/store"
)

// ErrInvalidInput is returned for requests that fail validation
var ErrInvalidInput = errors.New("invalid input")

// CreateParams holds the fields for a new bot
type CreateParams struct {
	Name         string
	Description  string
	SystemPrompt string
	ModelName    string
}

// UpdateParams holds the mutable fields for an existing bot.
// Nil pointers leave the current value unchanged.
type UpdateParams struct {
	Name         *string
	Description  *string
	SystemPrompt *string
	ModelName    *string
}

// BotWithLevel pairs a bot with the caller's resolved access level
type BotWithLevel struct {
	Bot   *store.Bot
	Level permission.Level
}

// Registry implements bot lifecycle and sharing operations
type Registry struct {
	store    store.Store
	resolver *permission.Resolver
	logger   *slog.Logger
}

// NewRegistry creates a bot registry
func NewRegistry(s store.Store, r *permission.Resolver) *Registry {
	return &Registry{
		store:    s,
		resolver: r,
		logger:   slog.Default().With("component", "bots"),
	}
}

// Create makes a new bot owned by the caller
func (reg *Registry) Create(ctx context.Context, ownerID string, p CreateParams) (*store.Bot, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if p.ModelName == "" {
		return nil, fmt.Errorf("%w: model_name is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	bot := &store.Bot{
		ID:           uuid.New().String(),
		Name:         p.Name,
		Description:  p.Description,
		SystemPrompt: p.SystemPrompt,
		ModelName:    p.ModelName,
		OwnerID:      ownerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := reg.store.CreateBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("creating bot: %w", err)
	}

	reg.logger.Info("bot created", "bot_id", bot.ID, "owner_id", ownerID)
	return bot, nil
}

// Get returns a bot along with the caller's resolved level.
// Requires at least VIEW; callers with no visibility get not-found.
func (reg *Registry) Get(ctx context.Context, userID, botID string) (*BotWithLevel, error) {
	bot, err := reg.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	level, err := reg.resolver.ResolveBot(ctx, userID, bot)
	if err != nil {
		return nil, err
	}
	if level < permission.LevelView {
		return nil, store.ErrNotFound
	}

	return &BotWithLevel{Bot: bot, Level: level}, nil
}

// GetByShareToken returns the bot behind a share link with VIEW level.
// Works for anonymous callers; authenticated callers may resolve higher.
func (reg *Registry) GetByShareToken(ctx context.Context, userID, token string) (*BotWithLevel, error) {
	bot, err := reg.resolver.ResolveShareToken(ctx, token)
	if err != nil {
		return nil, err
	}

	level := permission.LevelView
	if userID != "" {
		resolved, err := reg.resolver.ResolveBot(ctx, userID, bot)
		if err != nil {
			return nil, err
		}
		if resolved > level {
			level = resolved
		}
	}

	return &BotWithLevel{Bot: bot, Level: level}, nil
}

// ListOptions controls which bots List includes beyond the caller's own
type ListOptions struct {
	IncludeShared bool
	IncludePublic bool
}

// List returns the caller's accessible bots: always their own, plus
// shared and public bots when requested. Duplicates are collapsed.
func (reg *Registry) List(ctx context.Context, userID string, opts ListOptions) ([]*store.Bot, error) {
	owned, err := reg.store.ListBotsByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing owned bots: %w", err)
	}

	seen := make(map[string]bool, len(owned))
	result := make([]*store.Bot, 0, len(owned))
	for _, b := range owned {
		seen[b.ID] = true
		result = append(result, b)
	}

	if opts.IncludeShared {
		shared, err := reg.store.ListBotsSharedWith(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("listing shared bots: %w", err)
		}
		for _, b := range shared {
			if !seen[b.ID] {
				seen[b.ID] = true
				result = append(result, b)
			}
		}
	}

	if opts.IncludePublic {
		public, err := reg.store.ListPublicBots(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing public bots: %w", err)
		}
		for _, b := range public {
			if !seen[b.ID] {
				seen[b.ID] = true
				result = append(result, b)
			}
		}
	}

	return result, nil
}

// Update modifies a bot's configuration. Requires EDIT.
func (reg *Registry) Update(ctx context.Context, userID, botID string, p UpdateParams) (*store.Bot, error) {
	if _, err := reg.resolver.Require(ctx, userID, botID, permission.LevelEdit); err != nil {
		return nil, err
	}

	bot, err := reg.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		if *p.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		bot.Name = *p.Name
	}
	if p.Description != nil {
		bot.Description = *p.Description
	}
	if p.SystemPrompt != nil {
		bot.SystemPrompt = *p.SystemPrompt
	}
	if p.ModelName != nil {
		if *p.ModelName == "" {
			return nil, fmt.Errorf("%w: model_name cannot be empty", ErrInvalidInput)
		}
		bot.ModelName = *p.ModelName
	}
	bot.UpdatedAt = time.Now().UTC()

	if err := reg.store.UpdateBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("updating bot: %w", err)
	}

	reg.logger.Info("bot updated", "bot_id", botID, "user_id", userID)
	return bot, nil
}

// Delete removes a bot. Strictly owner-only: even EDIT grantees cannot
// delete. Permission grants go with it; existing sessions are left alone.
func (reg *Registry) Delete(ctx context.Context, userID, botID string) error {
	if err := reg.requireOwner(ctx, userID, botID); err != nil {
		return err
	}

	if err := reg.store.DeleteBot(ctx, botID); err != nil {
		return fmt.Errorf("deleting bot: %w", err)
	}

	reg.logger.Info("bot deleted", "bot_id", botID, "owner_id", userID)
	return nil
}

// Grant gives another user an explicit level on a bot, identified by email.
// Owner-only. Re-granting replaces the previous level.
func (reg *Registry) Grant(ctx context.Context, ownerID, botID, email string, level store.PermissionLevel) (*store.BotPermission, error) {
	if err := reg.requireOwner(ctx, ownerID, botID); err != nil {
		return nil, err
	}

	if !validLevel(level) {
		return nil, fmt.Errorf("%w: level must be one of view, chat, edit", ErrInvalidInput)
	}

	target, err := reg.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no user with email %s", ErrInvalidInput, email)
		}
		return nil, err
	}

	if target.ID == ownerID {
		return nil, fmt.Errorf("%w: cannot grant to the bot owner", ErrInvalidInput)
	}

	now := time.Now().UTC()
	perm := &store.BotPermission{
		BotID:     botID,
		UserID:    target.ID,
		Level:     level,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := reg.store.UpsertBotPermission(ctx, perm); err != nil {
		return nil, fmt.Errorf("granting permission: %w", err)
	}

	reg.logger.Info("permission granted",
		"bot_id", botID, "user_id", target.ID, "level", level)
	return perm, nil
}

// Revoke removes a user's explicit grant. Owner-only and idempotent.
func (reg *Registry) Revoke(ctx context.Context, ownerID, botID, userID string) error {
	if err := reg.requireOwner(ctx, ownerID, botID); err != nil {
		return err
	}

	if err := reg.store.DeleteBotPermission(ctx, botID, userID); err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}

	reg.logger.Info("permission revoked", "bot_id", botID, "user_id", userID)
	return nil
}

// SetPublic toggles the public flag. Enabling for the first time lazily
// generates a share token; disabling never clears it, so re-enabling
// keeps old links working.
func (reg *Registry) SetPublic(ctx context.Context, ownerID, botID string, public bool) (*store.Bot, error) {
	if err := reg.requireOwner(ctx, ownerID, botID); err != nil {
		return nil, err
	}

	bot, err := reg.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	bot.IsPublic = public
	if public && bot.ShareToken == "" {
		bot.ShareToken = uuid.New().String()
	}
	bot.UpdatedAt = time.Now().UTC()

	if err := reg.store.UpdateBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("toggling public: %w", err)
	}

	reg.logger.Info("bot visibility changed", "bot_id", botID, "is_public", public)
	return bot, nil
}

// RegenerateShareToken replaces the share token, invalidating every
// previously distributed link. Owner-only.
func (reg *Registry) RegenerateShareToken(ctx context.Context, ownerID, botID string) (*store.Bot, error) {
	if err := reg.requireOwner(ctx, ownerID, botID); err != nil {
		return nil, err
	}

	bot, err := reg.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	bot.ShareToken = uuid.New().String()
	bot.UpdatedAt = time.Now().UTC()

	if err := reg.store.UpdateBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("regenerating share token: %w", err)
	}

	reg.logger.Info("share token regenerated", "bot_id", botID)
	return bot, nil
}

// ListGrants returns the explicit grants on a bot. Owner-only.
func (reg *Registry) ListGrants(ctx context.Context, ownerID, botID string) ([]*store.BotPermission, error) {
	if err := reg.requireOwner(ctx, ownerID, botID); err != nil {
		return nil, err
	}
	return reg.store.ListBotPermissions(ctx, botID)
}

// requireOwner checks strict ownership. Non-owners with visibility get
// forbidden; everyone else gets not-found.
func (reg *Registry) requireOwner(ctx context.Context, userID, botID string) error {
	bot, err := reg.store.GetBot(ctx, botID)
	if err != nil {
		return err
	}
	if bot.OwnerID == userID {
		return nil
	}

	level, err := reg.resolver.ResolveBot(ctx, userID, bot)
	if err != nil {
		return err
	}
	if level < permission.LevelView {
		return store.ErrNotFound
	}
	return permission.ErrForbidden
}

func validLevel(level store.PermissionLevel) bool {
	for _, l := range store.ValidPermissionLevels {
		if level == l {
			return true
		}
	}
	return false
}
