// ABOUTME: Registration, login, and identity handlers
// ABOUTME: Issues HS256 bearer tokens on successful login

package gateway

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/store"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt,
	}
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		g.sendJSONError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		g.sendJSONError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		g.logger.Error("failed to hash password", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now().UTC()
	user := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := g.store.CreateUser(r.Context(), user); err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.logger.Info("user registered", "user_id", user.ID)
	g.sendJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      userResponse `json:"user"`
}

func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := g.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		// Same response for unknown email and wrong password
		g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		g.logger.Error("password check failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !user.IsActive {
		g.sendJSONError(w, http.StatusForbidden, "account is disabled")
		return
	}

	token, err := g.verifier.Generate(user.ID, user.Email, g.tokenTTL)
	if err != nil {
		g.logger.Error("failed to generate token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.sendJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "Bearer",
		User:      toUserResponse(user),
	})
}

func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())

	user, err := g.store.GetUser(r.Context(), authCtx.UserID)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.sendJSON(w, http.StatusOK, toUserResponse(user))
}

// handleSetUserStatus activates or deactivates an account. Admin only;
// deactivation locks the user out on their next request.
func (g *Gateway) handleSetUserStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	if !authCtx.IsAdmin {
		g.sendJSONError(w, http.StatusForbidden, "admin access required")
		return
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		g.sendJSONError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	userID := chi.URLParam(r, "id")
	if userID == authCtx.UserID {
		g.sendJSONError(w, http.StatusBadRequest, "cannot change your own status")
		return
	}

	if err := g.store.SetUserActive(r.Context(), userID, *req.IsActive); err != nil {
		g.sendServiceError(w, err)
		return
	}

	user, err := g.store.GetUser(r.Context(), userID)
	if err != nil {
		g.sendServiceError(w, err)
		return
	}

	g.logger.Info("user status changed",
		"user_id", userID,
		"is_active", *req.IsActive,
		"admin_id", authCtx.UserID)
	g.sendJSON(w, http.StatusOK, toUserResponse(user))
}
