package webhook

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/uex-relay/internal/domain"
	"github.com/ashureev/uex-relay/internal/identity"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Handler exposes the router over HTTP.
type Handler struct {
	router *Router
}

// NewHandler creates a webhook HTTP handler.
func NewHandler(router *Router) *Handler {
	return &Handler{router: router}
}

// RegisterRoutes registers the webhook ingress route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/{event_type}/{user_id}", h.HandleEvent)
}

// HandleEvent decodes and routes one webhook event. The response is the
// mapped status code with a short text code as body.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")
	userID := chi.URLParam(r, "user_id")

	err := h.handle(r, eventType, userID)
	logAttrs := []any{"event_type", eventType, "user_id", userID, "code", domain.Code(err)}
	switch status := domain.HTTPStatus(err); {
	case err == nil:
		slog.Info("Webhook handled", logAttrs...)
	case status >= http.StatusInternalServerError:
		slog.Error("Webhook failed", append(logAttrs, "error", err)...)
	default:
		slog.Warn("Webhook rejected", append(logAttrs, "error", err)...)
	}
	writeResult(w, err)
}

func (h *Handler) handle(r *http.Request, eventType, userID string) error {
	if !identity.ValidUserID(userID) {
		return fmt.Errorf("%w: bad route user id", domain.ErrInvalidIdentity)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrInvalidPayload, err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("%w: body too large", domain.ErrInvalidPayload)
	}

	ev, err := Decode(eventType, body)
	if err != nil {
		return err
	}
	return h.router.Route(r.Context(), userID, ev)
}

func writeResult(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(domain.HTTPStatus(err))
	_, _ = io.WriteString(w, domain.Code(err))
}
