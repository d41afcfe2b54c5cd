// ABOUTME: Session listing, transcripts, search, feedback, and usage handlers
// ABOUTME: All endpoints operate strictly on the caller's own data

package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/search"
	"github.com/botforge/botforge/internal/store"
)

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

type sessionResponse struct {
	ID           string    `json:"id"`
	BotID        string    `json:"bot_id,omitempty"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)

	sessions, err := g.sessions.List(r.Context(), authCtx.UserID, skip, limit)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{
			ID:           s.ID,
			BotID:        s.BotID,
			Title:        s.Title,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]interface{}{"sessions": resp})
}

type messageResponse struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount *int      `json:"token_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	q := store.MessageQuery{
		Skip:  queryInt(r, "skip", 0),
		Limit: queryInt(r, "limit", 100),
		Role:  r.URL.Query().Get("role"),
	}

	msgs, total, err := g.sessions.Messages(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), q)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{
			ID:         m.ID,
			Seq:        m.Seq,
			Role:       m.Role,
			Content:    m.Content,
			TokenCount: m.TokenCount,
			CreatedAt:  m.CreatedAt,
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]interface{}{
		"messages": resp,
		"total":    total,
	})
}

func (g *Gateway) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	if err := g.sessions.Delete(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		g.sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	q := r.URL.Query()

	params := search.Params{
		Query:     q.Get("q"),
		Scope:     search.Scope(q.Get("scope")),
		SessionID: q.Get("session_id"),
		BotID:     q.Get("bot_id"),
		Skip:      queryInt(r, "skip", 0),
		Limit:     queryInt(r, "limit", 0),
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "from must be RFC3339")
			return
		}
		params.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			g.sendJSONError(w, http.StatusBadRequest, "to must be RFC3339")
			return
		}
		params.To = &t
	}

	results, err := g.search.Search(r.Context(), authCtx.UserID, params)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, results)
}

func (g *Gateway) handleUpsertFeedback(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	messageID := chi.URLParam(r, "id")

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Rating != 1 && req.Rating != -1 {
		g.sendJSONError(w, http.StatusBadRequest, "rating must be 1 or -1")
		return
	}

	if err := g.requireOwnMessage(r, authCtx.UserID, messageID); err != nil {
		g.sendServiceError(w, err)
		return
	}

	now := time.Now().UTC()
	fb := &store.Feedback{
		MessageID: messageID,
		UserID:    authCtx.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.store.UpsertFeedback(r.Context(), fb); err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, map[string]interface{}{
		"message_id": fb.MessageID,
		"rating":     fb.Rating,
		"comment":    fb.Comment,
	})
}

func (g *Gateway) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	messageID := chi.URLParam(r, "id")

	if err := g.requireOwnMessage(r, authCtx.UserID, messageID); err != nil {
		g.sendServiceError(w, err)
		return
	}

	if err := g.store.DeleteFeedback(r.Context(), messageID, authCtx.UserID); err != nil {
		g.sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	summary, err := g.store.GetFeedbackSummary(r.Context(), authCtx.UserID)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	positivePct := 0.0
	if summary.Total > 0 {
		positivePct = float64(summary.Positive) / float64(summary.Total) * 100
	}

	g.sendJSON(w, http.StatusOK, map[string]interface{}{
		"total":            summary.Total,
		"positive":         summary.Positive,
		"negative":         summary.Negative,
		"positive_percent": positivePct,
	})
}

func (g *Gateway) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var since *time.Time
	if days := queryInt(r, "days", 0); days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		since = &cutoff
	}

	summary, err := g.store.GetUsageSummary(r.Context(), authCtx.UserID, since)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, map[string]interface{}{
		"prompt_tokens":     summary.PromptTokens,
		"completion_tokens": summary.CompletionTokens,
		"total_tokens":      summary.TotalTokens,
		"request_count":     summary.RequestCount,
	})
}

// requireOwnMessage checks that a message sits in one of the caller's
// sessions; anything else is reported as not found.
func (g *Gateway) requireOwnMessage(r *http.Request, userID, messageID string) error {
	msg, err := g.store.GetMessage(r.Context(), messageID)
	if err != nil {
		return err
	}
	session, err := g.store.GetSession(r.Context(), msg.SessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return store.ErrNotFound
	}
	return nil
}
