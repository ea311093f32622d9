package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/askzen/internal/bot"
	"github.com/ashureev/askzen/internal/domain"
	"github.com/ashureev/askzen/internal/identity"
)

const (
	writeTimeout    = 10 * time.Second
	maxMessageBytes = 16 << 10
)

// Frame types.
const (
	TypeMessage = "message"
	TypeReply   = "reply"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeError   = "error"
)

// Dispatcher turns one inbound event into a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) bot.Reply
}

// Frame is the JSON envelope exchanged in both directions.
type Frame struct {
	Type         string          `json:"type"`
	Text         string          `json:"text,omitempty"`
	Username     string          `json:"username,omitempty"`
	LanguageCode string          `json:"language_code,omitempty"`
	Language     domain.Language `json:"language,omitempty"`
	Outcome      domain.Outcome  `json:"outcome,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Handler upgrades /ws/chat requests and relays frames to the dispatcher.
type Handler struct {
	dispatcher    Dispatcher
	registry      *Registry
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHandler creates a new WebSocket chat handler.
func NewHandler(dispatcher Dispatcher, registry *Registry, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dispatcher:    dispatcher,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	displayName := identity.DisplayNameFromContext(r.Context())
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	conn.SetReadLimit(maxMessageBytes)

	connID := uuid.NewString()
	h.registry.Register(userID, connID, conn)
	defer h.registry.Unregister(userID, connID, conn)

	h.logger.Info("Chat connection opened", "user_id", userID, "conn_id", connID, "ip", r.RemoteAddr)
	h.readLoop(r.Context(), conn, userID, displayName)
	h.logger.Info("Chat connection closed", "user_id", userID, "conn_id", connID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, userID, displayName string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			if err := h.writeFrame(ctx, conn, Frame{Type: TypeError, Error: "invalid_frame"}); err != nil {
				return
			}
			continue
		}

		var out Frame
		switch in.Type {
		case TypePing:
			out = Frame{Type: TypePong}
		case TypeMessage:
			if strings.TrimSpace(in.Text) == "" {
				out = Frame{Type: TypeError, Error: "empty_text"}
				break
			}
			ev := domain.NewEvent(userID, in.Text)
			ev.DisplayName = displayName
			ev.Username = in.Username
			ev.LanguageCode = in.LanguageCode

			reply := h.dispatcher.Dispatch(ctx, ev)
			out = Frame{Type: TypeReply, Text: reply.Text, Language: reply.Language, Outcome: reply.Outcome}
		default:
			out = Frame{Type: TypeError, Error: "unknown_type"}
		}

		if err := h.writeFrame(ctx, conn, out); err != nil {
			h.logger.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *Handler) writeFrame(ctx context.Context, conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
