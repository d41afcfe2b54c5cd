// ABOUTME: End-to-end HTTP tests for the gateway
// ABOUTME: Real SQLite store and a scripted fake streamer behind httptest

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/bots"
	"github.com/botforge/botforge/internal/chat"
	"github.com/botforge/botforge/internal/llm"
	"github.com/botforge/botforge/internal/permission"
	"github.com/botforge/botforge/internal/search"
	"github.com/botforge/botforge/internal/store"
)

type fakeStreamer struct {
	events []*llm.Event
}

func (f *fakeStreamer) Stream(_ context.Context, _ *llm.Request) (<-chan *llm.Event, error) {
	ch := make(chan *llm.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func setupGateway(t *testing.T) (http.Handler, *fakeStreamer) {
	t.Helper()

	h, f, _ := setupGatewayWithStore(t)
	return h, f
}

func setupGatewayWithStore(t *testing.T) (http.Handler, *fakeStreamer, *store.SQLiteStore) {
	t.Helper()

	s, err := store.NewSQLiteStore(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fakeStreamer{events: []*llm.Event{
		{Type: llm.EventText, Text: "streamed "},
		{Type: llm.EventText, Text: "answer"},
		{Type: llm.EventDone, Usage: &llm.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}},
	}}

	resolver := permission.NewResolver(s)
	g := New(Options{
		Store:    s,
		Registry: bots.NewRegistry(s, resolver),
		Driver:   chat.NewDriver(s, resolver, f, "gemini-2.0-flash"),
		Sessions: chat.NewSessions(s),
		Search:   search.New(s),
		Verifier: auth.NewJWTVerifier([]byte("test-secret")),
		TokenTTL: time.Hour,
	})

	return g.Routes(), f, s
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst))
}

// registerAndLogin creates an account and returns its bearer token
func registerAndLogin(t *testing.T, h http.Handler, email string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "password123", "display_name": "Test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func createBot(t *testing.T, h http.Handler, token, name string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/bots", token, map[string]string{
		"name": name, "system_prompt": "Be helpful.", "model_name": "gemini-2.0-flash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var bot struct {
		ID string `json:"id"`
	}
	decode(t, rec, &bot)
	return bot.ID
}

func TestHealth(t *testing.T) {
	h, _ := setupGateway(t)

	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h, _ := setupGateway(t)

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bad", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ok@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _ := setupGateway(t)

	registerAndLogin(t, h, "dup@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWrongPassword(t *testing.T) {
	h, _ := setupGateway(t)

	registerAndLogin(t, h, "user@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "wrongwrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown email looks exactly the same
	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ghost@example.com", "password": "wrongwrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "me@example.com")

	rec := doJSON(t, h, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Email string `json:"email"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "me@example.com", resp.Email)

	rec = doJSON(t, h, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBotLifecycle(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "owner@example.com")

	botID := createBot(t, h, token, "Helper")

	rec := doJSON(t, h, http.MethodGet, "/api/bots/"+botID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bot struct {
		Name  string `json:"name"`
		Level string `json:"level"`
	}
	decode(t, rec, &bot)
	assert.Equal(t, "Helper", bot.Name)
	assert.Equal(t, "edit", bot.Level)

	rec = doJSON(t, h, http.MethodPut, "/api/bots/"+botID, token, map[string]string{
		"name": "Renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/bots/"+botID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/bots/"+botID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBotHiddenFromStrangers(t *testing.T) {
	h, _ := setupGateway(t)

	owner := registerAndLogin(t, h, "owner@example.com")
	stranger := registerAndLogin(t, h, "stranger@example.com")

	botID := createBot(t, h, owner, "Private")

	// Existence doesn't leak: 404, not 403
	rec := doJSON(t, h, http.MethodGet, "/api/bots/"+botID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/bots/"+botID, stranger, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGrantAndRevokeFlow(t *testing.T) {
	h, _ := setupGateway(t)

	owner := registerAndLogin(t, h, "owner@example.com")
	guest := registerAndLogin(t, h, "guest@example.com")

	botID := createBot(t, h, owner, "Shared")

	rec := doJSON(t, h, http.MethodPost, "/api/bots/"+botID+"/share", owner, map[string]string{
		"user_email": "guest@example.com", "level": "view",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var grant struct {
		UserID string `json:"user_id"`
	}
	decode(t, rec, &grant)

	// Guest can now see it, but not edit it
	rec = doJSON(t, h, http.MethodGet, "/api/bots/"+botID, guest, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var bot struct {
		Level      string `json:"level"`
		ShareToken string `json:"share_token"`
	}
	decode(t, rec, &bot)
	assert.Equal(t, "view", bot.Level)
	assert.Empty(t, bot.ShareToken, "share token is owner-only")

	rec = doJSON(t, h, http.MethodPut, "/api/bots/"+botID, guest, map[string]string{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Only the owner can grant
	rec = doJSON(t, h, http.MethodPost, "/api/bots/"+botID+"/share", guest, map[string]string{
		"user_email": "owner@example.com", "level": "edit",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/bots/"+botID+"/share/"+grant.UserID, owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/bots/"+botID, guest, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareTokenEndpoint(t *testing.T) {
	h, _ := setupGateway(t)
	owner := registerAndLogin(t, h, "owner@example.com")

	botID := createBot(t, h, owner, "Public")

	rec := doJSON(t, h, http.MethodPatch, "/api/bots/"+botID+"/public", owner, map[string]bool{
		"is_public": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var bot struct {
		ShareToken string `json:"share_token"`
	}
	decode(t, rec, &bot)
	require.NotEmpty(t, bot.ShareToken)

	// Anonymous access through the share link
	rec = doJSON(t, h, http.MethodGet, "/api/bots/share/"+bot.ShareToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var shared struct {
		Name       string `json:"name"`
		Level      string `json:"level"`
		ShareToken string `json:"share_token"`
	}
	decode(t, rec, &shared)
	assert.Equal(t, "Public", shared.Name)
	assert.Equal(t, "view", shared.Level)
	assert.Empty(t, shared.ShareToken)

	rec = doJSON(t, h, http.MethodGet, "/api/bots/share/bogus-token", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatStreamsSSE(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "chatter@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/chat", token, map[string]string{
		"message": "hello bot",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: started")
	assert.Contains(t, body, "event: text")
	assert.Contains(t, body, "streamed ")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, `"total_tokens":7`)

	// The turn was persisted: one session with both messages
	rec = doJSON(t, h, http.MethodGet, "/api/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions struct {
		Sessions []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			MessageCount int    `json:"message_count"`
		} `json:"sessions"`
	}
	decode(t, rec, &sessions)
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, 2, sessions.Sessions[0].MessageCount)
	assert.Equal(t, "hello bot", sessions.Sessions[0].Title)
}

func TestChatValidation(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "chatter@example.com")

	rec := doJSON(t, h, http.MethodPost, "/api/chat", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// chatOnce runs one full chat turn and returns the session ID
func chatOnce(t *testing.T, h http.Handler, token, message string) string {
	t.Helper()

	rec := doJSON(t, h, http.MethodPost, "/api/chat", token, map[string]string{"message": message})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var data struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &data); err == nil && data.SessionID != "" {
			return data.SessionID
		}
	}
	t.Fatal("no session_id in SSE stream")
	return ""
}

func TestSessionMessagesAndDelete(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "user@example.com")
	other := registerAndLogin(t, h, "other@example.com")

	sessionID := chatOnce(t, h, token, "what is the answer")

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+sessionID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Total int `json:"total"`
	}
	decode(t, rec, &msgs)
	assert.Equal(t, 2, msgs.Total)
	assert.Equal(t, "user", msgs.Messages[0].Role)
	assert.Equal(t, "assistant", msgs.Messages[1].Role)

	// Foreign sessions are invisible
	rec = doJSON(t, h, http.MethodGet, "/api/sessions/"+sessionID+"/messages", other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+sessionID, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/sessions/"+sessionID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "searcher@example.com")

	chatOnce(t, h, token, "tell me about elephants please")

	rec := doJSON(t, h, http.MethodGet, "/api/search?q=elephants", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results struct {
		TotalMessages int `json:"total_messages"`
		Messages      []struct {
			Snippet string `json:"snippet"`
		} `json:"messages"`
	}
	decode(t, rec, &results)
	assert.Equal(t, 1, results.TotalMessages)
	require.Len(t, results.Messages, 1)
	assert.Contains(t, results.Messages[0].Snippet, "elephants")

	rec = doJSON(t, h, http.MethodGet, "/api/search", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackFlow(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "user@example.com")
	other := registerAndLogin(t, h, "other@example.com")

	sessionID := chatOnce(t, h, token, "rate this")

	rec := doJSON(t, h, http.MethodGet, "/api/sessions/"+sessionID+"/messages?role=assistant", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var msgs struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	decode(t, rec, &msgs)
	require.Len(t, msgs.Messages, 1)
	messageID := msgs.Messages[0].ID

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/messages/%s/feedback", messageID), token, map[string]interface{}{
		"rating": 1, "comment": "good answer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Rating someone else's message is a 404
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/messages/%s/feedback", messageID), other, map[string]interface{}{
		"rating": -1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Bad rating value
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/messages/%s/feedback", messageID), token, map[string]interface{}{
		"rating": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/feedback/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		Total           int64   `json:"total"`
		Positive        int64   `json:"positive"`
		PositivePercent float64 `json:"positive_percent"`
	}
	decode(t, rec, &summary)
	assert.Equal(t, int64(1), summary.Total)
	assert.Equal(t, float64(100), summary.PositivePercent)

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/messages/%s/feedback", messageID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUsageSummaryEndpoint(t *testing.T) {
	h, _ := setupGateway(t)
	token := registerAndLogin(t, h, "user@example.com")

	chatOnce(t, h, token, "count my tokens")

	rec := doJSON(t, h, http.MethodGet, "/api/usage/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalTokens  int64 `json:"total_tokens"`
		RequestCount int64 `json:"request_count"`
	}
	decode(t, rec, &summary)
	assert.Equal(t, int64(7), summary.TotalTokens)
	assert.Equal(t, int64(1), summary.RequestCount)
}

// seedAdmin creates an admin account directly; registration never grants
// the flag, so tests plant one the way bootstrap does.
func seedAdmin(t *testing.T, h http.Handler, s *store.SQLiteStore, email string) string {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.CreateUser(context.Background(), &store.User{
		ID:           "admin-" + email,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Admin",
		IsActive:     true,
		IsAdmin:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	rec := doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, rec, &resp)
	return resp.Token
}

func TestAdminTogglesUserStatus(t *testing.T) {
	h, _, s := setupGatewayWithStore(t)

	adminToken := seedAdmin(t, h, s, "admin@example.com")
	userToken := registerAndLogin(t, h, "target@example.com")

	rec := doJSON(t, h, http.MethodGet, "/api/me", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var target struct {
		ID string `json:"id"`
	}
	decode(t, rec, &target)

	// Non-admins cannot touch account status
	rec = doJSON(t, h, http.MethodPatch, "/api/users/"+target.ID+"/status", userToken,
		map[string]bool{"is_active": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin deactivates the account
	rec = doJSON(t, h, http.MethodPatch, "/api/users/"+target.ID+"/status", adminToken,
		map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		IsActive bool `json:"is_active"`
	}
	decode(t, rec, &updated)
	assert.False(t, updated.IsActive)

	// Deactivation bites immediately: existing token is rejected
	rec = doJSON(t, h, http.MethodGet, "/api/me", userToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// And a fresh login is refused
	rec = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "target@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reactivation restores access
	rec = doJSON(t, h, http.MethodPatch, "/api/users/"+target.ID+"/status", adminToken,
		map[string]bool{"is_active": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/me", userToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminStatusValidation(t *testing.T) {
	h, _, s := setupGatewayWithStore(t)

	adminToken := seedAdmin(t, h, s, "admin@example.com")

	rec := doJSON(t, h, http.MethodGet, "/api/me", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var admin struct {
		ID string `json:"id"`
	}
	decode(t, rec, &admin)

	// Missing is_active
	rec = doJSON(t, h, http.MethodPatch, "/api/users/"+admin.ID+"/status", adminToken,
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Admins cannot lock themselves out
	rec = doJSON(t, h, http.MethodPatch, "/api/users/"+admin.ID+"/status", adminToken,
		map[string]bool{"is_active": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown user
	rec = doJSON(t, h, http.MethodPatch, "/api/users/no-such-user/status", adminToken,
		map[string]bool{"is_active": false})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
