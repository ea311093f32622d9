// Package api provides HTTP handlers for the askzen web API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/askzen/internal/bot"
	"github.com/ashureev/askzen/internal/domain"
	"github.com/ashureev/askzen/internal/session"
	"github.com/ashureev/askzen/internal/store"
)

// Dispatcher turns one inbound event into a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) bot.Reply
}

// WriterStatser reports transcript writer counters.
type WriterStatser interface {
	Stats() store.WriterStats
}

// Handler provides the event, stats and transcript endpoints.
type Handler struct {
	dispatcher Dispatcher
	sessions   *session.Store
	repo       store.Repository // nil when transcripts are disabled
	writer     WriterStatser    // nil when transcripts are disabled
}

// NewHandler creates a new Handler. repo and writer may be nil.
func NewHandler(dispatcher Dispatcher, sessions *session.Store, repo store.Repository, writer WriterStatser) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		sessions:   sessions,
		repo:       repo,
		writer:     writer,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/events", h.PostEvent)
		r.Get("/stats", h.GetStats)
		r.Get("/me/turns", h.ListMyTurns)
	})
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
