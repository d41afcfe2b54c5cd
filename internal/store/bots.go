// ABOUTME: Bot and bot-permission persistence methods for SQLiteStore
// ABOUTME: Covers CRUD, share-token lookup, and explicit grant rows

package store

import (
	"context"
	"database/sql"
	"fmt"
)

const botColumns = `id, name, description, system_prompt, model_name, owner_id, is_public, share_token, created_at, updated_at`

// CreateBot inserts a new bot configuration
func (s *SQLiteStore) CreateBot(ctx context.Context, bot *Bot) error {
	query := `
		INSERT INTO custom_bots (` + botColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		bot.ID,
		bot.Name,
		bot.Description,
		bot.SystemPrompt,
		bot.ModelName,
		bot.OwnerID,
		bot.IsPublic,
		nullString(bot.ShareToken),
		fmtTime(bot.CreatedAt),
		fmtTime(bot.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting bot: %w", err)
	}

	s.logger.Debug("created bot", "id", bot.ID, "owner", bot.OwnerID)
	return nil
}

// GetBot retrieves a bot by ID.
// Returns ErrNotFound if the bot doesn't exist.
func (s *SQLiteStore) GetBot(ctx context.Context, id string) (*Bot, error) {
	return s.getBotWhere(ctx, "id = ?", id)
}

// GetBotByShareToken retrieves a bot by its share token.
// Returns ErrNotFound for unknown tokens.
func (s *SQLiteStore) GetBotByShareToken(ctx context.Context, token string) (*Bot, error) {
	return s.getBotWhere(ctx, "share_token = ?", token)
}

func (s *SQLiteStore) getBotWhere(ctx context.Context, where string, arg any) (*Bot, error) {
	query := `SELECT ` + botColumns + ` FROM custom_bots WHERE ` + where

	row := s.db.QueryRowContext(ctx, query, arg)
	bot, err := scanBot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying bot: %w", err)
	}
	return bot, nil
}

// UpdateBot overwrites a bot's mutable fields.
// Returns ErrNotFound if the bot doesn't exist.
func (s *SQLiteStore) UpdateBot(ctx context.Context, bot *Bot) error {
	query := `
		UPDATE custom_bots
		SET name = ?, description = ?, system_prompt = ?, model_name = ?,
		    is_public = ?, share_token = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		bot.Name,
		bot.Description,
		bot.SystemPrompt,
		bot.ModelName,
		bot.IsPublic,
		nullString(bot.ShareToken),
		fmtTime(bot.UpdatedAt),
		bot.ID,
	)
	if err != nil {
		return fmt.Errorf("updating bot: %w", err)
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

// DeleteBot removes a bot and its permission grants in one transaction.
// Existing chat sessions keep their bot_id reference and go stale.
func (s *SQLiteStore) DeleteBot(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bot_permissions WHERE bot_id = ?`, id); err != nil {
		return fmt.Errorf("deleting bot permissions: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM custom_bots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting bot: %w", err)
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

	s.logger.Debug("deleted bot", "id", id)
	return nil
}

// ListBotsByOwner returns all bots owned by the given user, newest first
func (s *SQLiteStore) ListBotsByOwner(ctx context.Context, ownerID string) ([]*Bot, error) {
	query := `
		SELECT ` + botColumns + `
		FROM custom_bots
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`
	return s.listBots(ctx, query, ownerID)
}

// ListBotsSharedWith returns bots the user holds an explicit grant on
func (s *SQLiteStore) ListBotsSharedWith(ctx context.Context, userID string) ([]*Bot, error) {
	query := `
		SELECT b.id, b.name, b.description, b.system_prompt, b.model_name,
		       b.owner_id, b.is_public, b.share_token, b.created_at, b.updated_at
		FROM custom_bots b
		JOIN bot_permissions p ON p.bot_id = b.id
		WHERE p.user_id = ?
		ORDER BY b.created_at DESC
	`
	return s.listBots(ctx, query, userID)
}

// ListPublicBots returns all bots flagged public, newest first
func (s *SQLiteStore) ListPublicBots(ctx context.Context) ([]*Bot, error) {
	query := `
		SELECT ` + botColumns + `
		FROM custom_bots
		WHERE is_public = 1
		ORDER BY created_at DESC
	`
	return s.listBots(ctx, query)
}

func (s *SQLiteStore) listBots(ctx context.Context, query string, args ...any) ([]*Bot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bots: %w", err)
	}
	defer rows.Close()

	var bots []*Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bot: %w", err)
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanBot(row scanner) (*Bot, error) {
	var bot Bot
	var shareToken sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&bot.ID,
		&bot.Name,
		&bot.Description,
		&bot.SystemPrompt,
		&bot.ModelName,
		&bot.OwnerID,
		&bot.IsPublic,
		&shareToken,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	bot.ShareToken = shareToken.String

	bot.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	bot.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &bot, nil
}

// UpsertBotPermission creates or replaces an explicit grant on a bot
func (s *SQLiteStore) UpsertBotPermission(ctx context.Context, perm *BotPermission) error {
	query := `
		INSERT INTO bot_permissions (bot_id, user_id, level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(bot_id, user_id) DO UPDATE SET
			level = excluded.level,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		perm.BotID,
		perm.UserID,
		string(perm.Level),
		fmtTime(perm.CreatedAt),
		fmtTime(perm.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting bot permission: %w", err)
	}

	s.logger.Debug("upserted bot permission", "bot_id", perm.BotID, "user_id", perm.UserID, "level", perm.Level)
	return nil
}

// GetBotPermission retrieves the explicit grant for a (bot, user) pair.
// Returns ErrNotFound when no grant exists.
func (s *SQLiteStore) GetBotPermission(ctx context.Context, botID, userID string) (*BotPermission, error) {
	query := `
		SELECT bot_id, user_id, level, created_at, updated_at
		FROM bot_permissions
		WHERE bot_id = ? AND user_id = ?
	`

	var perm BotPermission
	var level string
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, botID, userID).Scan(
		&perm.BotID,
		&perm.UserID,
		&level,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying bot permission: %w", err)
	}

	perm.Level = PermissionLevel(level)

	perm.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	perm.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &perm, nil
}

// DeleteBotPermission removes an explicit grant.
// Deleting a grant that doesn't exist is not an error.
func (s *SQLiteStore) DeleteBotPermission(ctx context.Context, botID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bot_permissions WHERE bot_id = ? AND user_id = ?`,
		botID, userID)
	if err != nil {
		return fmt.Errorf("deleting bot permission: %w", err)
	}
	return nil
}

// ListBotPermissions returns all explicit grants on a bot
func (s *SQLiteStore) ListBotPermissions(ctx context.Context, botID string) ([]*BotPermission, error) {
	query := `
		SELECT bot_id, user_id, level, created_at, updated_at
		FROM bot_permissions
		WHERE bot_id = ?
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("querying bot permissions: %w", err)
	}
	defer rows.Close()

	var perms []*BotPermission
	for rows.Next() {
		var perm BotPermission
		var level string
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&perm.BotID, &perm.UserID, &level, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning bot permission: %w", err)
		}

		perm.Level = PermissionLevel(level)
		perm.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		perm.UpdatedAt, err = parseTime(updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}

		perms = append(perms, &perm)
	}
	return perms, rows.Err()
}
