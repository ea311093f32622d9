// Package session owns the volatile per-user state of the gateway.
package session

import (
	"slices"
	"sync"

	"github.com/ashureev/askzen/internal/domain"
)

// entry is the store's private record for one user.
// turn serializes whole events for the user; mu guards the fields below it.
type entry struct {
	turn sync.Mutex

	mu       sync.Mutex
	language *domain.Language
	detected *domain.Language
	history  *historyRing
	requests int
	todos    []string
}

// Store is the session repository keyed by user identifier.
// Every method is safe for concurrent use and creates the session on first access.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*entry
	historyLimit int
}

// Option configures a Store.
type Option func(*Store)

// WithHistoryLimit overrides the history capacity. Non-positive values keep the default.
func WithHistoryLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// NewStore creates an empty session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:     make(map[string]*entry),
		historyLimit: domain.HistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) get(userID string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.sessions[userID]; ok {
		return e
	}
	e = &entry{history: newHistoryRing(s.historyLimit)}
	s.sessions[userID] = e
	return e
}

// Lock acquires the per-user turn lock and returns its release function.
// Callers hold it across a read-modify-write sequence so that concurrent
// events for the same user do not interleave.
func (s *Store) Lock(userID string) (unlock func()) {
	e := s.get(userID)
	e.turn.Lock()
	return e.turn.Unlock
}

// GetOrCreate returns a snapshot of the user's session.
func (s *Store) GetOrCreate(userID string) domain.UserSession {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := domain.UserSession{
		UserID:       userID,
		History:      e.history.Entries(),
		RequestCount: e.requests,
		Todos:        slices.Clone(e.todos),
	}
	if e.language != nil {
		lang := *e.language
		sess.Language = &lang
	}
	if e.detected != nil {
		lang := *e.detected
		sess.Detected = &lang
	}
	if sess.Todos == nil {
		sess.Todos = []string{}
	}
	return sess
}

// SetLanguage records an explicit language preference.
func (s *Store) SetLanguage(userID string, lang domain.Language) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.language = &lang
}

// Language returns the explicit preference, if any.
func (s *Store) Language(userID string) (domain.Language, bool) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.language == nil {
		return "", false
	}
	return *e.language, true
}

// SetDetectedLanguage remembers the language last detected from the user's
// free text. It is not a preference: Language keeps reporting only what the
// user chose explicitly.
func (s *Store) SetDetectedLanguage(userID string, lang domain.Language) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detected = &lang
}

// DetectedLanguage returns the language last detected from free text, if any.
func (s *Store) DetectedLanguage(userID string) (domain.Language, bool) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detected == nil {
		return "", false
	}
	return *e.detected, true
}

// AppendHistory records a turn, evicting the oldest entries beyond the limit.
func (s *Store) AppendHistory(userID string, role domain.Role, content string) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Push(domain.HistoryEntry{Role: role, Content: content})
}

// History returns the user's history oldest-first.
func (s *Store) History(userID string) []domain.HistoryEntry {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Entries()
}

// ClearHistory drops the user's conversation memory.
func (s *Store) ClearHistory(userID string) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Reset()
}

// IncrementUsage bumps the request counter and returns the new value.
func (s *Store) IncrementUsage(userID string) int {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	return e.requests
}

// Usage returns the request counter.
func (s *Store) Usage(userID string) int {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests
}

// AddTodo appends an item to the user's to-do list.
func (s *Store) AddTodo(userID, item string) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.todos = append(e.todos, item)
}

// ListTodos returns the to-do list in insertion order.
func (s *Store) ListTodos(userID string) []string {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.todos))
	copy(out, e.todos)
	return out
}

// ClearTodos empties the to-do list.
func (s *Store) ClearTodos(userID string) {
	e := s.get(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.todos = nil
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
