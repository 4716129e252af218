// file: model/token.go

package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken holds the data for a refresh token in the store.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"-"` // The opaque value is never exposed in JSON responses.
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the record may still be redeemed at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
