// Package store persists the diagnostic transcript of handled events.
// Nothing in it is read back into live session state.
package store

import (
	"context"
	"time"

	"github.com/ashureev/askzen/internal/domain"
)

// Repository defines the interface for persisting users and turns.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates a user or refreshes its names and last_seen_at.
	// first_seen_at is kept from the first insert.
	UpsertUser(ctx context.Context, user *domain.User) error

	// InsertTurn appends one turn to the transcript.
	InsertTurn(ctx context.Context, turn *domain.Turn) error

	// ListTurns returns a user's most recent turns, newest first.
	ListTurns(ctx context.Context, userID string, limit int) ([]*domain.Turn, error)

	// Stats summarizes the transcript.
	Stats(ctx context.Context) (*Stats, error)

	// DeleteTurnsBefore removes turns created before cutoff.
	DeleteTurnsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Stats is a transcript summary.
type Stats struct {
	Users     int64                    `json:"users"`
	Turns     int64                    `json:"turns"`
	ByOutcome map[domain.Outcome]int64 `json:"by_outcome"`
}
