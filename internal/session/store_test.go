package session

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/ashureev/askzen/internal/domain"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStore_GetOrCreateIsIdempotent(t *testing.T) {
	t.Parallel()
	s := NewStore()

	first := s.GetOrCreate("u1")
	second := s.GetOrCreate("u1")

	if s.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", s.Len())
	}
	if first.HasLanguage() || first.RequestCount != 0 || len(first.History) != 0 || len(first.Todos) != 0 {
		t.Fatalf("expected empty session, got %+v", first)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("sessions differ (-first +second):\n%s", diff)
	}
}

func TestStore_SevenAppendsKeepEntriesTwoToSeven(t *testing.T) {
	t.Parallel()
	s := NewStore()

	for i := 1; i <= 7; i++ {
		s.AppendHistory("u1", domain.RoleUser, fmt.Sprintf("turn %d", i))
	}

	var want []domain.HistoryEntry
	for i := 2; i <= 7; i++ {
		want = append(want, domain.HistoryEntry{Role: domain.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	if diff := cmp.Diff(want, s.History("u1")); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_HistoryNeverExceedsLimit(t *testing.T) {
	t.Parallel()
	s := NewStore()
	rng := rand.New(rand.NewPCG(1, 2))

	var appended []domain.HistoryEntry
	for i := 0; i < 200; i++ {
		role := domain.RoleUser
		if rng.IntN(2) == 0 {
			role = domain.RoleAssistant
		}
		e := domain.HistoryEntry{Role: role, Content: fmt.Sprintf("m%d", i)}
		appended = append(appended, e)
		s.AppendHistory("u1", e.Role, e.Content)

		got := s.History("u1")
		if len(got) > domain.HistoryLimit {
			t.Fatalf("history length %d exceeds limit", len(got))
		}
		start := max(0, len(appended)-domain.HistoryLimit)
		if diff := cmp.Diff(appended[start:], got); diff != "" {
			t.Fatalf("after %d appends (-want +got):\n%s", i+1, diff)
		}
	}
}

func TestStore_WithHistoryLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		limit int
		want  int
	}{
		{2, 2},
		{0, domain.HistoryLimit},
		{-1, domain.HistoryLimit},
	}
	for _, tt := range tests {
		s := NewStore(WithHistoryLimit(tt.limit))
		for i := 0; i < 10; i++ {
			s.AppendHistory("u1", domain.RoleUser, fmt.Sprintf("m%d", i))
		}
		got := s.History("u1")
		if len(got) != tt.want {
			t.Errorf("WithHistoryLimit(%d): len = %d, want %d", tt.limit, len(got), tt.want)
			continue
		}
		if got[len(got)-1].Content != "m9" {
			t.Errorf("WithHistoryLimit(%d): newest = %q, want m9", tt.limit, got[len(got)-1].Content)
		}
	}
}

func TestStore_HistoryIsCopied(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.AppendHistory("u1", domain.RoleUser, "hello")

	h := s.History("u1")
	h[0].Content = "mutated"

	if got := s.History("u1")[0].Content; got != "hello" {
		t.Fatalf("store history was mutated through a copy: %q", got)
	}
}

func TestStore_ClearHistory(t *testing.T) {
	t.Parallel()
	s := NewStore()
	for i := 0; i < 8; i++ {
		s.AppendHistory("u1", domain.RoleUser, "x")
	}
	s.ClearHistory("u1")
	if n := len(s.History("u1")); n != 0 {
		t.Fatalf("expected empty history, got %d", n)
	}
	s.AppendHistory("u1", domain.RoleAssistant, "again")
	if diff := cmp.Diff([]domain.HistoryEntry{{Role: domain.RoleAssistant, Content: "again"}}, s.History("u1")); diff != "" {
		t.Fatalf("history after reset (-want +got):\n%s", diff)
	}
}

func TestStore_LanguagePreference(t *testing.T) {
	t.Parallel()
	s := NewStore()

	if _, ok := s.Language("u1"); ok {
		t.Fatal("expected no preference on a fresh session")
	}
	s.SetLanguage("u1", domain.LanguageTurkish)
	lang, ok := s.Language("u1")
	if !ok || lang != domain.LanguageTurkish {
		t.Fatalf("expected tr preference, got %q (ok=%v)", lang, ok)
	}

	snap := s.GetOrCreate("u1")
	*snap.Language = domain.LanguageEnglish
	if lang, _ := s.Language("u1"); lang != domain.LanguageTurkish {
		t.Fatalf("preference changed through snapshot: %q", lang)
	}
}

func TestStore_DetectedLanguageIsNotAPreference(t *testing.T) {
	t.Parallel()
	s := NewStore()

	if _, ok := s.DetectedLanguage("u1"); ok {
		t.Fatal("expected no detected language on a fresh session")
	}
	s.SetDetectedLanguage("u1", domain.LanguageTurkish)
	if lang, ok := s.DetectedLanguage("u1"); !ok || lang != domain.LanguageTurkish {
		t.Fatalf("detected = %q (ok=%v), want tr", lang, ok)
	}
	if _, ok := s.Language("u1"); ok {
		t.Fatal("detected language must not become an explicit preference")
	}

	snap := s.GetOrCreate("u1")
	if snap.HasLanguage() || snap.Detected == nil || *snap.Detected != domain.LanguageTurkish {
		t.Fatalf("snapshot = %+v", snap)
	}
	*snap.Detected = domain.LanguageEnglish
	if lang, _ := s.DetectedLanguage("u1"); lang != domain.LanguageTurkish {
		t.Fatalf("detected language changed through snapshot: %q", lang)
	}
}

func TestStore_UsageAndTodos(t *testing.T) {
	t.Parallel()
	s := NewStore()

	for i := 1; i <= 3; i++ {
		if got := s.IncrementUsage("u1"); got != i {
			t.Fatalf("IncrementUsage = %d, want %d", got, i)
		}
	}
	if got := s.Usage("u2"); got != 0 {
		t.Fatalf("other user usage = %d, want 0", got)
	}

	s.AddTodo("u1", "milk")
	s.AddTodo("u1", "bread")
	if diff := cmp.Diff([]string{"milk", "bread"}, s.ListTodos("u1")); diff != "" {
		t.Fatalf("todos (-want +got):\n%s", diff)
	}
	s.ClearTodos("u1")
	if got := s.ListTodos("u1"); len(got) != 0 {
		t.Fatalf("expected empty todos, got %v", got)
	}
}

func TestStore_ConcurrentTurnsForOneUser(t *testing.T) {
	t.Parallel()
	s := NewStore()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			unlock := s.Lock("shared")
			defer unlock()
			s.IncrementUsage("shared")
			s.AppendHistory("shared", domain.RoleUser, fmt.Sprintf("q%d", i))
			s.AppendHistory("shared", domain.RoleAssistant, fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	if got := s.Usage("shared"); got != workers {
		t.Fatalf("usage = %d, want %d", got, workers)
	}
	h := s.History("shared")
	if len(h) != domain.HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(h), domain.HistoryLimit)
	}
	// Turns are serialized, so each question is immediately followed by its answer.
	for i := 0; i < len(h); i += 2 {
		if h[i].Role != domain.RoleUser || h[i+1].Role != domain.RoleAssistant {
			t.Fatalf("interleaved turns at %d: %+v", i, h)
		}
		if h[i].Content[1:] != h[i+1].Content[1:] {
			t.Fatalf("question %q paired with answer %q", h[i].Content, h[i+1].Content)
		}
	}
}

func TestStore_LockDoesNotBlockOtherUsers(t *testing.T) {
	t.Parallel()
	s := NewStore()

	unlock := s.Lock("busy")
	defer unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		release := s.Lock("idle")
		s.AppendHistory("idle", domain.RoleUser, "hi")
		release()
	}()
	<-done

	if n := len(s.History("idle")); n != 1 {
		t.Fatalf("expected 1 entry for idle user, got %d", n)
	}
}
