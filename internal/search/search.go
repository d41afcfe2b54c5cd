// ABOUTME: Search service over a user's own conversation history
// ABOUTME: Produces snippet windows around the first match in each hit

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/botforge/botforge/internal/store"
)

// ErrInvalidInput is returned for requests that fail validation
var ErrInvalidInput = errors.New("invalid input")

// Scope selects what a search looks at
type Scope string

const (
	ScopeMessages Scope = "messages"
	ScopeSessions Scope = "sessions"
	ScopeAll      Scope = "all"
)

const (
	snippetContext = 50
	defaultLimit   = 20
	maxLimit       = 100
)

// Params describes one search request
type Params struct {
	Query     string
	Scope     Scope
	SessionID string
	BotID     string
	From      *time.Time
	To        *time.Time
	Skip      int
	Limit     int
}

// MessageResult is one matching message with a snippet around the match
type MessageResult struct {
	MessageID    string    `json:"message_id"`
	SessionID    string    `json:"session_id"`
	SessionTitle string    `json:"session_title"`
	Role         string    `json:"role"`
	Snippet      string    `json:"snippet"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionResult is one matching session
type SessionResult struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	BotID     string    `json:"bot_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Results holds both halves of a search with totals for pagination
type Results struct {
	Query         string          `json:"query"`
	Messages      []MessageResult `json:"messages"`
	TotalMessages int             `json:"total_messages"`
	Sessions      []SessionResult `json:"sessions"`
	TotalSessions int             `json:"total_sessions"`
}

// Service runs searches scoped to the querying user's own sessions
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a search service
func New(s store.Store) *Service {
	return &Service{
		store:  s,
		logger: slog.Default().With("component", "search"),
	}
}

// Search scans the user's messages and session titles for the query.
// Other users' sessions are never visible, whatever the filters say.
func (s *Service) Search(ctx context.Context, userID string, p Params) (*Results, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	scope := p.Scope
	if scope == "" {
		scope = ScopeAll
	}
	switch scope {
	case ScopeMessages, ScopeSessions, ScopeAll:
	default:
		return nil, fmt.Errorf("%w: scope must be messages, sessions, or all", ErrInvalidInput)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	q := store.SearchQuery{
		UserID:    userID,
		Query:     p.Query,
		SessionID: p.SessionID,
		BotID:     p.BotID,
		From:      p.From,
		To:        p.To,
		Skip:      p.Skip,
		Limit:     limit,
	}

	results := &Results{Query: p.Query}

	if scope == ScopeMessages || scope == ScopeAll {
		hits, total, err := s.store.SearchMessages(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("searching messages: %w", err)
		}
		results.TotalMessages = total
		results.Messages = make([]MessageResult, 0, len(hits))
		for _, h := range hits {
			results.Messages = append(results.Messages, MessageResult{
				MessageID:    h.Message.ID,
				SessionID:    h.Message.SessionID,
				SessionTitle: h.SessionTitle,
				Role:         h.Message.Role,
				Snippet:      MatchSnippet(h.Message.Content, p.Query),
				CreatedAt:    h.Message.CreatedAt,
			})
		}
	}

	if scope == ScopeSessions || scope == ScopeAll {
		sessions, total, err := s.store.SearchSessions(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("searching sessions: %w", err)
		}
		results.TotalSessions = total
		results.Sessions = make([]SessionResult, 0, len(sessions))
		for _, sess := range sessions {
			results.Sessions = append(results.Sessions, SessionResult{
				SessionID: sess.ID,
				Title:     sess.Title,
				BotID:     sess.BotID,
				UpdatedAt: sess.UpdatedAt,
			})
		}
	}

	s.logger.Debug("search executed",
		"user_id", userID,
		"scope", scope,
		"message_hits", results.TotalMessages,
		"session_hits", results.TotalSessions)

	return results, nil
}

// MatchSnippet extracts a fixed window of context around the first
// case-insensitive occurrence of the query, clipping with ellipses.
// Without a match it falls back to the head of the content.
func MatchSnippet(content, query string) string {
	runes := []rune(content)

	idx := runeIndexFold(content, query)
	if idx < 0 {
		if len(runes) <= 2*snippetContext {
			return content
		}
		return string(runes[:2*snippetContext]) + "..."
	}

	qlen := len([]rune(query))
	start := idx - snippetContext
	if start < 0 {
		start = 0
	}
	end := idx + qlen + snippetContext
	if end > len(runes) {
		end = len(runes)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet = snippet + "..."
	}
	return snippet
}

// runeIndexFold finds the rune index of the first case-insensitive match
func runeIndexFold(content, query string) int {
	byteIdx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(content[:byteIdx]))
}
