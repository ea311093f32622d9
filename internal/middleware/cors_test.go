package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantOrigin  string
		wantCreds   string
		wantStatus  int
		wantReached bool
	}{
		{"explicit origin", []string{"http://localhost:5173"}, http.MethodPost, "http://localhost:5173", "http://localhost:5173", "true", http.StatusOK, true},
		{"wildcard", []string{"*"}, http.MethodGet, "https://example.com", "https://example.com", "", http.StatusOK, true},
		{"disallowed", []string{"http://localhost:5173"}, http.MethodGet, "https://evil.test", "", "", http.StatusOK, true},
		{"preflight", []string{"http://localhost:5173"}, http.MethodOptions, "http://localhost:5173", "http://localhost:5173", "true", http.StatusNoContent, false},
		{"no origin", []string{"*"}, http.MethodGet, "", "", "", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reached := false
			h := CORS(tt.allowed)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if reached != tt.wantReached {
				t.Errorf("next reached = %v, want %v", reached, tt.wantReached)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCreds)
			}
			if tt.wantOrigin != "" && !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "X-Askzen-User-ID") {
				t.Error("identity header not allowed")
			}
		})
	}
}
