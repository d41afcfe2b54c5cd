// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the user to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/botforge/botforge/internal/store"
)

// UserStore is the subset of the store the middleware needs
type UserStore interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// resolveUser verifies a token and loads the active user behind it.
// Returns nil when the token or user doesn't check out.
func resolveUser(r *http.Request, users UserStore, verifier TokenVerifier, token string) *AuthContext {
	claims, err := verifier.Verify(token)
	if err != nil {
		return nil
	}

	user, err := users.GetUser(r.Context(), claims.UserID)
	if err != nil || !user.IsActive {
		return nil
	}

	return &AuthContext{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	}
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT
// tokens, rejecting requests without a valid active user.
func HTTPAuthMiddleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			authCtx := resolveUser(r, users, verifier, token)
			if authCtx == nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// OptionalAuthMiddleware creates an HTTP middleware that attempts JWT auth but
// allows unauthenticated requests. Useful for endpoints that work differently
// for authenticated vs anonymous users, like share links.
func OptionalAuthMiddleware(users UserStore, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				next.ServeHTTP(w, r) // Continue as anonymous
				return
			}

			authCtx := resolveUser(r, users, verifier, token)
			if authCtx == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
