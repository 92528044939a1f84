// Package api provides HTTP handlers for the relay API.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/uex-relay/internal/bot"
	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/surface"
)

// Relay is the chat dispatcher seen by the HTTP layer.
type Relay interface {
	OpenThread(ctx context.Context, userID string) (surface.OpenResult, error)
	ThreadDeleted(ctx context.Context, threadID string) error
	MemberLeft(ctx context.Context, threadID, userID string) error
	Stats(ctx context.Context) (bot.Stats, error)
}

// Handler provides common handler utilities.
type Handler struct {
	relay      Relay
	adminToken string
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(relay Relay, adminToken string) *Handler {
	return &Handler{relay: relay, adminToken: adminToken}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// DomainError writes err using its domain code and status.
func DomainError(w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	JSON(w, status, map[string]string{"error": domain.Code(err)})
}

// requireAdmin rejects requests without the admin bearer token. An empty
// token disables the protected routes entirely.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			Error(w, http.StatusNotFound, "not found")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
