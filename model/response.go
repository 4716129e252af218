// file: model/response.go

package model

import "github.com/google/uuid"

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type ValidationResponse struct {
	Valid  bool      `json:"valid"`
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

// LogoutResponse reports how many sessions a logout revoked.
type LogoutResponse struct {
	Revoked int64 `json:"revoked"`
}
