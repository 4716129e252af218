// file: model/request.go

package model

// LoginRequest defines the payload for user authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the opaque refresh token to exchange.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ValidateRequest carries an access token to check.
type ValidateRequest struct {
	Token string `json:"token" validate:"required"`
}

// RegisterRequest defines the payload for creating a local user.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user"`
}
