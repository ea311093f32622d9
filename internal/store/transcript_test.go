package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/askzen/internal/domain"
)

// memRepo is an in-memory Repository. When gate is set, InsertTurn blocks
// until it is closed.
type memRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	turns   []domain.Turn
	gate    chan struct{}
	entered chan struct{}
	failIDs map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*domain.User), failIDs: make(map[string]bool)}
}

func (m *memRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *memRepo) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[user.UserID] = &u
	return nil
}

func (m *memRepo) InsertTurn(_ context.Context, turn *domain.Turn) error {
	if m.entered != nil {
		select {
		case m.entered <- struct{}{}:
		default:
		}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[turn.ID] {
		return errors.New("disk full")
	}
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memRepo) ListTurns(context.Context, string, int) ([]*domain.Turn, error) { return nil, nil }

func (m *memRepo) Stats(context.Context) (*Stats, error) { return &Stats{}, nil }

func (m *memRepo) DeleteTurnsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.turns[:0]
	var deleted int64
	for _, t := range m.turns {
		if t.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	m.turns = kept
	return deleted, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }

func (m *memRepo) Close() error { return nil }

func (m *memRepo) turnIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.turns))
	for i, t := range m.turns {
		ids[i] = t.ID
	}
	return ids
}

func TestTranscriptWriter_FlushesOnClose(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	w := NewTranscriptWriter(repo, 10, nil)

	for i := range 5 {
		w.Record(domain.Turn{ID: fmt.Sprintf("t%d", i), UserID: "u1", DisplayName: "Ada", CreatedAt: time.Now()})
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if ids := repo.turnIDs(); len(ids) != 5 {
		t.Fatalf("written %v, want 5 turns", ids)
	}
	if u, _ := repo.GetUser(context.Background(), "u1"); u == nil || u.DisplayName != "Ada" {
		t.Fatalf("user not upserted: %+v", u)
	}
	if stats := w.Stats(); stats.Written != 5 || stats.Dropped != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	w.Record(domain.Turn{ID: "late"})
	if stats := w.Stats(); stats.Dropped != 1 {
		t.Fatalf("Record after Close should count as dropped: %+v", stats)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestTranscriptWriter_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.gate = make(chan struct{})
	repo.entered = make(chan struct{}, 1)
	w := NewTranscriptWriter(repo, 2, nil)

	// t0 is picked up by the processor and blocks on the gate.
	w.Record(domain.Turn{ID: "t0"})
	<-repo.entered

	for _, id := range []string{"t1", "t2", "t3"} {
		w.Record(domain.Turn{ID: id})
	}
	if stats := w.Stats(); stats.Dropped != 1 || stats.Queued != 2 {
		t.Fatalf("stats = %+v, want one drop and a full queue", stats)
	}

	close(repo.gate)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	ids := repo.turnIDs()
	want := []string{"t0", "t2", "t3"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("written %v, want %v", ids, want)
	}
}

func TestTranscriptWriter_CountsFailures(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.failIDs["bad"] = true
	w := NewTranscriptWriter(repo, 4, nil)

	w.Record(domain.Turn{ID: "bad"})
	w.Record(domain.Turn{ID: "good"})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if stats := w.Stats(); stats.Failed != 1 || stats.Written != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestSweepTurns(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	now := time.Now()
	repo.turns = []domain.Turn{
		{ID: "old", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", CreatedAt: now.Add(-time.Hour)},
	}

	if deleted := sweepTurns(context.Background(), repo, 24*time.Hour, now); deleted != 1 {
		t.Fatalf("sweepTurns deleted %d, want 1", deleted)
	}
	if ids := repo.turnIDs(); len(ids) != 1 || ids[0] != "new" {
		t.Fatalf("remaining = %v", ids)
	}
}

func TestRunRetention_StopsWithContext(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.turns = []domain.Turn{{ID: "old", CreatedAt: time.Now().Add(-time.Hour)}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunRetention(ctx, repo, time.Minute, time.Hour)
		close(done)
	}()

	deadline := time.After(time.Second)
	for len(repo.turnIDs()) != 0 {
		select {
		case <-deadline:
			t.Fatal("initial sweep did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRetention did not return after cancel")
	}
}

func TestRunRetention_DisabledReturnsImmediately(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.turns = []domain.Turn{{ID: "old", CreatedAt: time.Now().Add(-24 * time.Hour)}}

	done := make(chan struct{})
	go func() {
		RunRetention(context.Background(), repo, 0, time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRetention with zero retention did not return")
	}
	if ids := repo.turnIDs(); len(ids) != 1 {
		t.Fatalf("turns = %v, disabled retention must not delete", ids)
	}
}
