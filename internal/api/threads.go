package api

import (
	"net/http"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the thread, surface callback and stats routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/threads", h.OpenThread)
		r.With(h.requireAdmin).Get("/stats", h.Stats)
	})
	r.Route("/surface/threads/{thread_id}", func(r chi.Router) {
		r.Post("/deleted", h.ThreadDeleted)
		r.Post("/members/{user_id}/left", h.MemberLeft)
	})
}

// OpenThread opens the caller's private thread, or returns the live one.
func (h *Handler) OpenThread(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	res, err := h.relay.OpenThread(r.Context(), userID)
	if err != nil {
		DomainError(w, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	JSON(w, status, map[string]interface{}{
		"thread_id": res.ThreadID,
		"created":   res.Created,
		"notice":    res.Notice,
	})
}

// ThreadDeleted is called by the surface when a thread is removed.
func (h *Handler) ThreadDeleted(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	if threadID == "" {
		DomainError(w, domain.ErrInvalidPayload)
		return
	}
	if err := h.relay.ThreadDeleted(r.Context(), threadID); err != nil {
		DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MemberLeft is called by the surface when a member leaves a thread.
func (h *Handler) MemberLeft(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	userID := chi.URLParam(r, "user_id")
	if !identity.ValidUserID(userID) {
		DomainError(w, domain.ErrInvalidIdentity)
		return
	}
	if err := h.relay.MemberLeft(r.Context(), threadID, userID); err != nil {
		DomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns the operator counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.relay.Stats(r.Context())
	if err != nil {
		DomainError(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}
