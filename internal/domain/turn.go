package domain

import (
	"time"
)

// Outcome classifies how an event was handled.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeUsage        Outcome = "usage"
	OutcomeBackendError Outcome = "backend_error"
	OutcomeRateLimited  Outcome = "rate_limited"
	OutcomeUnknown      Outcome = "unknown_command"
)

// Turn is a diagnostic transcript record of one handled event.
// Turns are never read back into session state.
type Turn struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	DisplayName string        `json:"display_name,omitempty"`
	Username    string        `json:"username,omitempty"`
	Command     string        `json:"command,omitempty"`
	Input       string        `json:"input"`
	Reply       string        `json:"reply"`
	Outcome     Outcome       `json:"outcome"`
	Language    Language      `json:"language"`
	Duration    time.Duration `json:"duration_ns"`
	CreatedAt   time.Time     `json:"created_at"`
}
