//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/askzen/internal/bot"
	"github.com/ashureev/askzen/internal/domain"
	"github.com/ashureev/askzen/internal/identity"
	"github.com/ashureev/askzen/internal/session"
	"github.com/ashureev/askzen/internal/store"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	events []domain.Event
	reply  bot.Reply
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev domain.Event) bot.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.reply
}

type fixedWriter store.WriterStats

func (f fixedWriter) Stats() store.WriterStats { return store.WriterStats(f) }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRepo(t *testing.T) *store.SQLiteStore {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "askzen.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestServer(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)
	return r
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "nope")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"error":"nope"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPostEvent(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{reply: bot.Reply{Text: "pong 🏓", Language: domain.LanguageEnglish, Outcome: domain.OutcomeOK}}
	srv := newTestServer(NewHandler(d, session.NewStore(), nil, nil))

	body := `{"text":"/ping","username":"ada","language_code":"en-US"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	req.Header.Set(identity.UserHeaderName, "web-42")
	req.Header.Set(identity.NameHeaderName, "Ada")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp EventResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp != (EventResponse{Reply: "pong 🏓", Language: domain.LanguageEnglish, Outcome: domain.OutcomeOK}) {
		t.Fatalf("response = %+v", resp)
	}

	if len(d.events) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(d.events))
	}
	ev := d.events[0]
	if ev.UserID != "web-42" || ev.Command != "ping" || ev.DisplayName != "Ada" || ev.Username != "ada" || ev.LanguageCode != "en-US" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestPostEvent_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"blank text", `{"text":"   "}`, http.StatusBadRequest},
		{"missing text", `{}`, http.StatusBadRequest},
		{"too large", `{"text":"` + strings.Repeat("a", maxEventBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &fakeDispatcher{}
			srv := newTestServer(NewHandler(d, session.NewStore(), nil, nil))

			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(tt.body)))

			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if len(d.events) != 0 {
				t.Fatal("rejected request must not be dispatched")
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newTestRepo(t)
	now := time.Unix(1_700_000_000, 0)
	if err := repo.UpsertUser(ctx, &domain.User{UserID: "1", LastSeenAt: now}); err != nil {
		t.Fatal(err)
	}
	for i, outcome := range []domain.Outcome{domain.OutcomeOK, domain.OutcomeOK, domain.OutcomeUsage} {
		turn := &domain.Turn{ID: string(rune('a' + i)), UserID: "1", Input: "/x", Outcome: outcome, Language: domain.LanguageTurkish, CreatedAt: now}
		if err := repo.InsertTurn(ctx, turn); err != nil {
			t.Fatal(err)
		}
	}

	sessions := session.NewStore()
	sessions.GetOrCreate("1")
	sessions.GetOrCreate("2")

	h := NewHandler(&fakeDispatcher{}, sessions, repo, fixedWriter{Capacity: 10, Written: 3})
	rr := httptest.NewRecorder()
	newTestServer(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp StatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", resp.Sessions)
	}
	if resp.Transcript == nil || resp.Transcript.Turns != 3 || resp.Transcript.Users != 1 || resp.Transcript.ByOutcome[domain.OutcomeOK] != 2 {
		t.Errorf("transcript = %+v", resp.Transcript)
	}
	if resp.Writer == nil || resp.Writer.Written != 3 || resp.Writer.Capacity != 10 {
		t.Errorf("writer = %+v", resp.Writer)
	}
}

func TestGetStats_TranscriptsDisabled(t *testing.T) {
	t.Parallel()
	rr := httptest.NewRecorder()
	newTestServer(NewHandler(&fakeDispatcher{}, session.NewStore(), nil, nil)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"sessions":0}` {
		t.Fatalf("body = %s", got)
	}
}

func TestListMyTurns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := newTestRepo(t)
	now := time.Unix(1_700_000_000, 0)
	if err := repo.UpsertUser(ctx, &domain.User{UserID: "me", DisplayName: "Me", LastSeenAt: now}); err != nil {
		t.Fatal(err)
	}
	for i, input := range []string{"first", "second", "third"} {
		turn := &domain.Turn{ID: input, UserID: "me", Input: input, Outcome: domain.OutcomeOK, Language: domain.LanguageEnglish, CreatedAt: now.Add(time.Duration(i) * time.Second)}
		if err := repo.InsertTurn(ctx, turn); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.InsertTurn(ctx, &domain.Turn{ID: "other", UserID: "someone-else", Input: "hidden", CreatedAt: now}); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(NewHandler(&fakeDispatcher{}, session.NewStore(), repo, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/me/turns?limit=2", nil)
	req.Header.Set(identity.UserHeaderName, "me")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp TurnsResponse
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User == nil || resp.User.DisplayName != "Me" {
		t.Errorf("user = %+v", resp.User)
	}
	if len(resp.Turns) != 2 || resp.Turns[0].Input != "third" || resp.Turns[1].Input != "second" {
		t.Errorf("turns = %+v", resp.Turns)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me/turns?limit=zero", nil)
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rr.Code)
	}
}

func TestListMyTurns_Disabled(t *testing.T) {
	t.Parallel()
	rr := httptest.NewRecorder()
	newTestServer(NewHandler(&fakeDispatcher{}, session.NewStore(), nil, nil)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/me/turns", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantState  string
		wantDB     string
	}{
		{"disabled", nil, http.StatusOK, "healthy", "disabled"},
		{"ok", pingFunc(func(context.Context) error { return nil }), http.StatusOK, "healthy", "ok"},
		{"down", pingFunc(func(context.Context) error { return errors.New("closed") }), http.StatusServiceUnavailable, "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := chi.NewRouter()
			NewHealthHandler(tt.db).RegisterHealth(r)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState || body.Checks["database"] != tt.wantDB || body.Checks["api"] != "ok" {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}
