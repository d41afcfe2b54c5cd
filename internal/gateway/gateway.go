// ABOUTME: HTTP gateway wiring the service layers behind a chi router
// ABOUTME: Maps service errors onto HTTP statuses at the edge

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botforge/botforge/internal/auth"
	"github.com/botforge/botforge/internal/bots"
	"github.com/botforge/botforge/internal/chat"
	"github.com/botforge/botforge/internal/permission"
	"github.com/botforge/botforge/internal/search"
	"github.com/botforge/botforge/internal/store"
)

// Gateway exposes the botforge API over HTTP
type Gateway struct {
	store    store.Store
	registry *bots.Registry
	driver   *chat.Driver
	sessions *chat.Sessions
	search   *search.Service
	verifier *auth.JWTVerifier
	tokenTTL time.Duration
	logger   *slog.Logger
}

// Options bundles the dependencies for a Gateway
type Options struct {
	Store    store.Store
	Registry *bots.Registry
	Driver   *chat.Driver
	Sessions *chat.Sessions
	Search   *search.Service
	Verifier *auth.JWTVerifier
	TokenTTL time.Duration
}

// New creates a Gateway
func New(opts Options) *Gateway {
	return &Gateway{
		store:    opts.Store,
		registry: opts.Registry,
		driver:   opts.Driver,
		sessions: opts.Sessions,
		search:   opts.Search,
		verifier: opts.Verifier,
		tokenTTL: opts.TokenTTL,
		logger:   slog.Default().With("component", "gateway"),
	}
}

// Routes builds the full API router
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", g.handleRegister)
		r.Post("/auth/login", g.handleLogin)

		// Share links work for anonymous callers too
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuthMiddleware(g.store, g.verifier))
			r.Get("/bots/share/{token}", g.handleBotByShareToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.HTTPAuthMiddleware(g.store, g.verifier))

			r.Get("/me", g.handleMe)

			r.Patch("/users/{id}/status", g.handleSetUserStatus)

			r.Get("/bots", g.handleListBots)
			r.Post("/bots", g.handleCreateBot)
			r.Get("/bots/{id}", g.handleGetBot)
			r.Put("/bots/{id}", g.handleUpdateBot)
			r.Delete("/bots/{id}", g.handleDeleteBot)
			r.Get("/bots/{id}/share", g.handleListGrants)
			r.Post("/bots/{id}/share", g.handleGrant)
			r.Delete("/bots/{id}/share/{userID}", g.handleRevoke)
			r.Patch("/bots/{id}/public", g.handleSetPublic)
			r.Post("/bots/{id}/share-token", g.handleRegenerateShareToken)

			r.Post("/chat", g.handleChat)

			r.Get("/sessions", g.handleListSessions)
			r.Get("/sessions/{id}/messages", g.handleListMessages)
			r.Delete("/sessions/{id}", g.handleDeleteSession)

			r.Get("/search", g.handleSearch)

			r.Post("/messages/{id}/feedback", g.handleUpsertFeedback)
			r.Delete("/messages/{id}/feedback", g.handleDeleteFeedback)
			r.Get("/feedback/summary", g.handleFeedbackSummary)

			r.Get("/usage/summary", g.handleUsageSummary)
		})
	})

	return r
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendJSON writes a JSON response
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendServiceError maps service-layer errors onto HTTP statuses.
// Not-found deliberately covers access-hiding cases, so existence
// never leaks to callers without VIEW.
func (g *Gateway) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, permission.ErrForbidden):
		g.sendJSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrDuplicateEmail):
		g.sendJSONError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, bots.ErrInvalidInput),
		errors.Is(err, chat.ErrInvalidInput),
		errors.Is(err, search.ErrInvalidInput):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		g.logger.Error("request failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// decodeJSON parses a request body, rejecting malformed JSON
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
