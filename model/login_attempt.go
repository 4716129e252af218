package model

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is an append-only audit row. Email and SourceAddress are
// nullable in storage.
type LoginAttempt struct {
	ID            uuid.UUID `json:"id"`
	Email         *string   `json:"email,omitempty"`
	Success       bool      `json:"success"`
	SourceAddress *string   `json:"source_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
