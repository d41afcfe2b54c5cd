// ABOUTME: Bot CRUD, sharing, and visibility handlers
// ABOUTME: Thin HTTP shims over the bot registry

package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/bots"
	"github.com/botforge/botforge/internal/store"
)

type botResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SystemPrompt string    `json:"system_prompt"`
	ModelName    string    `json:"model_name"`
	OwnerID      string    `json:"owner_id"`
	IsPublic     bool      `json:"is_public"`
	ShareToken   string    `json:"share_token,omitempty"`
	Level        string    `json:"level,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toBotResponse(b *store.Bot) botResponse {
	return botResponse{
		ID:           b.ID,
		Name:         b.Name,
		Description:  b.Description,
		SystemPrompt: b.SystemPrompt,
		ModelName:    b.ModelName,
		OwnerID:      b.OwnerID,
		IsPublic:     b.IsPublic,
		ShareToken:   b.ShareToken,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

// shareTokenView strips owner-only fields for callers reaching a bot
// through a share link
func shareTokenView(b *store.Bot) botResponse {
	resp := toBotResponse(b)
	resp.ShareToken = ""
	return resp
}

func (g *Gateway) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req struct {
		Name         string `json:"name"`
		Description  string `json:"description"`
		SystemPrompt string `json:"system_prompt"`
		ModelName    string `json:"model_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	bot, err := g.registry.Create(r.Context(), authCtx.UserID, bots.CreateParams{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		ModelName:    req.ModelName,
	})
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusCreated, toBotResponse(bot))
}

func (g *Gateway) handleGetBot(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	got, err := g.registry.Get(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := toBotResponse(got.Bot)
	resp.Level = got.Level.String()
	if got.Bot.OwnerID != authCtx.UserID {
		resp.ShareToken = ""
	}
	g.sendJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleListBots(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	opts := bots.ListOptions{
		IncludeShared: r.URL.Query().Get("include_shared") == "true",
		IncludePublic: r.URL.Query().Get("include_public") == "true",
	}

	list, err := g.registry.List(r.Context(), authCtx.UserID, opts)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := make([]botResponse, 0, len(list))
	for _, b := range list {
		item := toBotResponse(b)
		if b.OwnerID != authCtx.UserID {
			item.ShareToken = ""
		}
		resp = append(resp, item)
	}
	g.sendJSON(w, http.StatusOK, map[string]interface{}{"bots": resp})
}

func (g *Gateway) handleUpdateBot(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req struct {
		Name         *string `json:"name"`
		Description  *string `json:"description"`
		SystemPrompt *string `json:"system_prompt"`
		ModelName    *string `json:"model_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	bot, err := g.registry.Update(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), bots.UpdateParams{
		Name:         req.Name,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		ModelName:    req.ModelName,
	})
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, toBotResponse(bot))
}

func (g *Gateway) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	if err := g.registry.Delete(r.Context(), authCtx.UserID, chi.URLParam(r, "id")); err != nil {
		g.sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type grantResponse struct {
	BotID  string `json:"bot_id"`
	UserID string `json:"user_id"`
	Level  string `json:"level"`
}

func (g *Gateway) handleGrant(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req struct {
		UserEmail string `json:"user_email"`
		Level     string `json:"level"`
	}
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	perm, err := g.registry.Grant(r.Context(), authCtx.UserID, chi.URLParam(r, "id"),
		req.UserEmail, store.PermissionLevel(req.Level))
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusCreated, grantResponse{
		BotID:  perm.BotID,
		UserID: perm.UserID,
		Level:  string(perm.Level),
	})
}

func (g *Gateway) handleRevoke(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	err := g.registry.Revoke(r.Context(), authCtx.UserID,
		chi.URLParam(r, "id"), chi.URLParam(r, "userID"))
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleListGrants(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	perms, err := g.registry.ListGrants(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := make([]grantResponse, 0, len(perms))
	for _, p := range perms {
		resp = append(resp, grantResponse{
			BotID:  p.BotID,
			UserID: p.UserID,
			Level:  string(p.Level),
		})
	}
	g.sendJSON(w, http.StatusOK, map[string]interface{}{"grants": resp})
}

func (g *Gateway) handleSetPublic(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	var req struct {
		IsPublic *bool `json:"is_public"`
	}
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsPublic == nil {
		g.sendJSONError(w, http.StatusBadRequest, "is_public is required")
		return
	}

	bot, err := g.registry.SetPublic(r.Context(), authCtx.UserID, chi.URLParam(r, "id"), *req.IsPublic)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, toBotResponse(bot))
}

func (g *Gateway) handleRegenerateShareToken(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	bot, err := g.registry.RegenerateShareToken(r.Context(), authCtx.UserID, chi.URLParam(r, "id"))
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, toBotResponse(bot))
}

func (g *Gateway) handleBotByShareToken(w http.ResponseWriter, r *http.Request) {
	// Anonymous callers are fine here
	userID := ""
	if authCtx := auth.FromContext(r.Context()); authCtx != nil {
		userID = authCtx.UserID
	}

	got, err := g.registry.GetByShareToken(r.Context(), userID, chi.URLParam(r, "token"))
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	resp := shareTokenView(got.Bot)
	resp.Level = got.Level.String()
	g.sendJSON(w, http.StatusOK, resp)
}
