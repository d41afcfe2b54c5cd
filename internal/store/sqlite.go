// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/bot/session persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// serializes concurrent appends instead of surfacing SQLITE_BUSY,
	// and keeps the per-connection pragmas below in effect everywhere
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1,
			is_admin      INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS custom_bots (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL,
			model_name    TEXT NOT NULL,
			owner_id      TEXT NOT NULL REFERENCES users(id),
			is_public     INTEGER NOT NULL DEFAULT 0,
			share_token   TEXT UNIQUE,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bots_owner ON custom_bots(owner_id);
		CREATE INDEX IF NOT EXISTS idx_bots_public ON custom_bots(is_public);
		CREATE INDEX IF NOT EXISTS idx_bots_share_token ON custom_bots(share_token);

		CREATE TABLE IF NOT EXISTS bot_permissions (
			bot_id     TEXT NOT NULL REFERENCES custom_bots(id),
			user_id    TEXT NOT NULL REFERENCES users(id),
			level      TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (bot_id, user_id),
			CHECK (level IN ('view', 'chat', 'edit'))
		);

		CREATE INDEX IF NOT EXISTS idx_bot_permissions_user ON bot_permissions(user_id);

		-- bot_id deliberately carries no foreign key: deleting a bot leaves
		-- existing sessions intact and later turns fail with a not-found bot
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			bot_id     TEXT,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id, updated_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_bot ON chat_sessions(bot_id);

		CREATE TABLE IF NOT EXISTS chat_messages (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT UNIQUE NOT NULL,
			session_id  TEXT NOT NULL REFERENCES chat_sessions(id),
			role        TEXT NOT NULL,
			content     TEXT NOT NULL,
			token_count INTEGER,
			created_at  TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant', 'system'))
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, seq);

		CREATE TABLE IF NOT EXISTS message_feedback (
			message_id TEXT NOT NULL REFERENCES chat_messages(id),
			user_id    TEXT NOT NULL REFERENCES users(id),
			rating     INTEGER NOT NULL,
			comment    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (message_id, user_id),
			CHECK (rating IN (1, -1))
		);

		CREATE TABLE IF NOT EXISTS usage_logs (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL REFERENCES users(id),
			session_id        TEXT NOT NULL,
			bot_id            TEXT,
			model_name        TEXT NOT NULL,
			prompt_tokens     INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			total_tokens      INTEGER NOT NULL,
			created_at        TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_logs(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_logs(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "custom_bots",
			column: "description",
			apply:  `ALTER TABLE custom_bots ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
		},
		{
			table:  "chat_messages",
			column: "token_count",
			apply:  `ALTER TABLE chat_messages ADD COLUMN token_count INTEGER`,
		},
	}

	for _, m := range migrations {
		var exists int
		check := fmt.Sprintf(`SELECT 1 FROM pragma_table_info('%s') WHERE name = ?`, m.table)
		err := s.db.QueryRow(check, m.column).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// fmtTime formats a timestamp the way every table stores it
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a stored RFC3339 timestamp
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// CreateUser inserts a new user.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, display_name, is_active, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.IsActive,
		user.IsAdmin,
		fmtTime(user.CreatedAt),
		fmtTime(user.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "email", user.Email)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email.
// Returns ErrNotFound if no user has the given email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUserWhere(ctx, "email = ?", email)
}

func (s *SQLiteStore) getUserWhere(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, email, password_hash, display_name, is_active, is_admin, created_at, updated_at
		FROM users
		WHERE ` + where

	var user User
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.IsActive,
		&user.IsAdmin,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	user.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &user, nil
}

// CountUsers returns the total number of registered users
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// SetUserActive enables or disables an account.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) SetUserActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating user status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Info("user status changed", "id", id, "active", active)
	return nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
