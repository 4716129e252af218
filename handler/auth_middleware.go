package handler

import (
	"context"
	"go-auth-api/common"
	"go-auth-api/model"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
)

// TokenReader resolves the identity behind a bearer access token.
type TokenReader interface {
	Validate(accessToken string) (*model.ValidationResponse, error)
	Identity(accessToken string) (*model.Identity, error)
}

type Authenticator struct {
	tokens TokenReader
}

func NewAuthenticator(tokens TokenReader) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Require admits requests carrying a valid, unexpired access token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, appErr := bearerToken(r)
		if appErr != nil {
			appErr.Send(w)
			return
		}

		claims, err := a.tokens.Validate(tokenString)
		if err != nil {
			toAppError(err).Send(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims.UserID, claims.Role)))
	})
}

// RequireSignature admits requests whose access token is correctly signed,
// even if it has already expired.
func (a *Authenticator) RequireSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, appErr := bearerToken(r)
		if appErr != nil {
			appErr.Send(w)
			return
		}

		identity, err := a.tokens.Identity(tokenString)
		if err != nil {
			toAppError(err).Send(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity.UserID, identity.Role)))
	})
}

func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(UserRoleKey).(string)

		if !ok || role != string(model.RoleAdmin) {
			err := common.NewAppError(http.StatusForbidden, "Access denied. Admin privileges required.", nil)
			err.Send(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, *common.AppError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil)
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" || headerParts[1] == "" {
		return "", common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil)
	}
	return headerParts[1], nil
}

func withIdentity(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

func userIDFrom(r *http.Request) (uuid.UUID, *common.AppError) {
	userID, ok := r.Context().Value(UserIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}
	return userID, nil
}
