// Package identity resolves which end user an HTTP or WebSocket request belongs to.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	AnonCookieName     = "askzen_anon_id"
	UserHeaderName     = "X-Askzen-User-ID"
	NameHeaderName     = "X-Askzen-Display-Name"
	UserQueryParam     = "user_id"
	anonCookieMaxAge   = 30 * 24 * time.Hour
	maxDisplayNameRune = 64
)

type contextKey int

const (
	userIDKey contextKey = iota
	displayNameKey
)

var (
	anonIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// DisplayNameFromContext extracts the display name from the request context.
func DisplayNameFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(displayNameKey).(string); ok {
		return v
	}
	return ""
}

// WithUser returns a context carrying the given identity.
func WithUser(ctx context.Context, userID, displayName string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, displayNameKey, displayName)
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// ValidUserID reports whether id is acceptable as a client-supplied user ID.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func deriveDisplayName(userID string) string {
	if strings.HasPrefix(userID, "anon_") && len(userID) > 13 {
		return "anon-" + userID[len(userID)-8:]
	}
	return ""
}

func sanitizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if !utf8.ValidString(name) {
		return ""
	}
	if utf8.RuneCountInString(name) > maxDisplayNameRune {
		name = string([]rune(name)[:maxDisplayNameRune])
	}
	return name
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}
	setAnonCookie(w, id, isDev)
	return id, nil
}

// userIDFromRequest returns an explicit client-supplied ID, or "" when none is valid.
func userIDFromRequest(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(UserHeaderName))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get(UserQueryParam))
	}
	if ValidUserID(id) {
		return id
	}
	return ""
}

// Middleware injects the end-user identity. An explicit user ID header (or
// query parameter, for WebSocket upgrades) wins; otherwise the request gets a
// per-device anonymous ID kept in a cookie.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := userIDFromRequest(r)
			if userID == "" {
				var err error
				userID, err = getOrCreateAnonID(w, r, isDev)
				if err != nil {
					http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
					return
				}
			}

			name := sanitizeDisplayName(r.Header.Get(NameHeaderName))
			if name == "" {
				name = deriveDisplayName(userID)
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, name)))
		})
	}
}
