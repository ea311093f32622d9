package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ashureev/askzen/internal/domain"
	"github.com/ashureev/askzen/internal/identity"
)

const maxEventBodyBytes = 16 << 10

// EventRequest is the body of POST /api/events.
type EventRequest struct {
	Text         string `json:"text"`
	DisplayName  string `json:"display_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// EventResponse is the reply to one event.
type EventResponse struct {
	Reply    string          `json:"reply"`
	Language domain.Language `json:"language"`
	Outcome  domain.Outcome  `json:"outcome"`
}

// PostEvent dispatches one message or command for the calling user.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodyBytes)
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	ev := domain.NewEvent(userID, req.Text)
	ev.DisplayName = req.DisplayName
	if ev.DisplayName == "" {
		ev.DisplayName = identity.DisplayNameFromContext(r.Context())
	}
	ev.Username = req.Username
	ev.LanguageCode = req.LanguageCode

	reply := h.dispatcher.Dispatch(r.Context(), ev)
	JSON(w, http.StatusOK, EventResponse{
		Reply:    reply.Text,
		Language: reply.Language,
		Outcome:  reply.Outcome,
	})
}
