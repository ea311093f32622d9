package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/askzen/internal/domain"
	"github.com/ashureev/askzen/internal/identity"
	"github.com/ashureev/askzen/internal/store"
)

const (
	statsQueryTimeout = 5 * time.Second
	defaultTurnsLimit = 20
	maxTurnsLimit     = 100
)

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Sessions   int                `json:"sessions"`
	Transcript *store.Stats       `json:"transcript,omitempty"`
	Writer     *store.WriterStats `json:"writer,omitempty"`
}

// GetStats reports in-memory session count and transcript counters.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Sessions: h.sessions.Len()}

	if h.writer != nil {
		ws := h.writer.Stats()
		resp.Writer = &ws
	}

	if h.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statsQueryTimeout)
		defer cancel()

		stats, err := h.repo.Stats(ctx)
		if err != nil {
			slog.Error("Failed to load transcript stats", "error", err)
			Error(w, http.StatusInternalServerError, "failed to load transcript stats")
			return
		}
		resp.Transcript = stats
	}

	JSON(w, http.StatusOK, resp)
}

// TurnsResponse is the body of GET /api/me/turns.
type TurnsResponse struct {
	User  *domain.User   `json:"user"`
	Turns []*domain.Turn `json:"turns"`
}

// ListMyTurns returns the calling user's most recent transcript turns.
func (h *Handler) ListMyTurns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusNotFound, "transcripts are disabled")
		return
	}
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	limit := defaultTurnsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxTurnsLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsQueryTimeout)
	defer cancel()

	user, err := h.repo.GetUser(ctx, userID)
	if err != nil {
		slog.Error("Failed to load user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	turns, err := h.repo.ListTurns(ctx, userID, limit)
	if err != nil {
		slog.Error("Failed to list turns", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list turns")
		return
	}
	if turns == nil {
		turns = []*domain.Turn{}
	}

	JSON(w, http.StatusOK, TurnsResponse{User: user, Turns: turns})
}
