// ABOUTME: Store interface and data types for botforge persistence
// ABOUTME: Defines User, Bot, Session, Message structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registering a user with an email that is taken
var ErrDuplicateEmail = errors.New("email already registered")

// PermissionLevel represents an explicit grant level on a bot
type PermissionLevel string

const (
	PermissionView PermissionLevel = "view"
	PermissionChat PermissionLevel = "chat"
	PermissionEdit PermissionLevel = "edit"
)

// ValidPermissionLevels lists all valid grant levels
var ValidPermissionLevels = []PermissionLevel{
	PermissionView,
	PermissionChat,
	PermissionEdit,
}

// Message role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// User represents a registered account
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Bot represents a shareable bot configuration owned by a single user
type Bot struct {
	ID           string
	Name         string
	Description  string
	SystemPrompt string
	ModelName    string
	OwnerID      string
	IsPublic     bool
	ShareToken   string // empty until public sharing is first enabled
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BotPermission is an explicit grant of a level on a bot to a non-owner.
// Absence of a row means "no explicit grant", not "no access".
type BotPermission struct {
	BotID     string
	UserID    string
	Level     PermissionLevel
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session represents a chat session created by exactly one user.
// BotID is a live reference: the bot may be edited or deleted mid-session.
type Session struct {
	ID           string
	UserID       string
	BotID        string // empty for bot-less sessions
	Title        string
	MessageCount int // populated by ListSessions only
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one entry in a session's append-only transcript.
// Seq is assigned by the store and strictly increases within a session.
type Message struct {
	ID         string
	Seq        int64
	SessionID  string
	Role       string
	Content    string
	TokenCount *int
	CreatedAt  time.Time
}

// Feedback is a user's rating of a message, at most one row per (message, user)
type Feedback struct {
	MessageID string
	UserID    string
	Rating    int // +1 or -1
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeedbackSummary aggregates feedback across a user's sessions
type FeedbackSummary struct {
	Total    int64
	Positive int64
	Negative int64
}

// UsageLog records token consumption for one completed conversation turn
type UsageLog struct {
	ID               string
	UserID           string
	SessionID        string
	BotID            string // empty for bot-less sessions
	ModelName        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CreatedAt        time.Time
}

// UsageSummary aggregates usage logs for a user
type UsageSummary struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	RequestCount     int64
}

// MessageQuery controls pagination and filtering for ListMessages
type MessageQuery struct {
	Skip  int
	Limit int
	Role  string // optional filter: user|assistant|system
}

// SearchQuery controls a scan over a user's messages and session titles
type SearchQuery struct {
	UserID    string
	Query     string
	SessionID string // optional filter
	BotID     string // optional filter
	From      *time.Time
	To        *time.Time
	Skip      int
	Limit     int
}

// MessageHit is one message search result with its session title attached
type MessageHit struct {
	Message      *Message
	SessionTitle string
}

// Store defines the interface for botforge persistence
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CountUsers(ctx context.Context) (int, error)
	SetUserActive(ctx context.Context, id string, active bool) error

	// Bots
	CreateBot(ctx context.Context, bot *Bot) error
	GetBot(ctx context.Context, id string) (*Bot, error)
	GetBotByShareToken(ctx context.Context, token string) (*Bot, error)
	UpdateBot(ctx context.Context, bot *Bot) error
	DeleteBot(ctx context.Context, id string) error
	ListBotsByOwner(ctx context.Context, ownerID string) ([]*Bot, error)
	ListBotsSharedWith(ctx context.Context, userID string) ([]*Bot, error)
	ListPublicBots(ctx context.Context) ([]*Bot, error)

	// Bot permissions
	UpsertBotPermission(ctx context.Context, perm *BotPermission) error
	GetBotPermission(ctx context.Context, botID, userID string) (*BotPermission, error)
	DeleteBotPermission(ctx context.Context, botID, userID string) error
	ListBotPermissions(ctx context.Context, botID string) ([]*BotPermission, error)

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	SetSessionTitle(ctx context.Context, id, title string) error
	ListSessions(ctx context.Context, userID string, skip, limit int) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error

	// Messages
	AppendMessage(ctx context.Context, msg *Message) error
	SetMessageTokenCount(ctx context.Context, id string, tokens int) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	ListMessages(ctx context.Context, sessionID string, q MessageQuery) ([]*Message, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)

	// Feedback
	UpsertFeedback(ctx context.Context, fb *Feedback) error
	GetFeedback(ctx context.Context, messageID, userID string) (*Feedback, error)
	DeleteFeedback(ctx context.Context, messageID, userID string) error
	GetFeedbackSummary(ctx context.Context, userID string) (*FeedbackSummary, error)

	// Usage accounting
	SaveUsage(ctx context.Context, usage *UsageLog) error
	GetUsageSummary(ctx context.Context, userID string, since *time.Time) (*UsageSummary, error)

	// Search
	SearchMessages(ctx context.Context, q SearchQuery) ([]*MessageHit, int, error)
	SearchSessions(ctx context.Context, q SearchQuery) ([]*Session, int, error)

	// Close releases any resources held by the store
	Close() error
}
