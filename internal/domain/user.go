// Package domain contains core domain types for the askzen gateway.
package domain

import (
	"time"
)

// User is the transcript record of someone who has talked to the gateway.
type User struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Username    string    `json:"username,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
