package handler

import (
	"go-auth-api/common"
	"net/http"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// kindStatus maps core error kinds to HTTP statuses and public messages.
var kindStatus = map[common.Kind]struct {
	code    int
	message string
}{
	common.KindInvalidCredentials:      {http.StatusUnauthorized, "Invalid email or password"},
	common.KindCredentialNotFound:      {http.StatusUnauthorized, "User not found"},
	common.KindTokenNotFound:           {http.StatusUnauthorized, "Refresh token not found"},
	common.KindTokenRevoked:            {http.StatusUnauthorized, "Refresh token has been revoked"},
	common.KindTokenExpired:            {http.StatusUnauthorized, "Token has expired"},
	common.KindMalformedOrInvalidToken: {http.StatusUnauthorized, "Invalid token"},
	common.KindDirectoryUnavailable:    {http.StatusServiceUnavailable, "User directory is unavailable"},
	common.KindStoreUnavailable:        {http.StatusServiceUnavailable, "Token store is unavailable"},
}

// toAppError translates a service error into the HTTP error envelope.
func toAppError(err error) *common.AppError {
	if mapped, ok := kindStatus[common.KindOf(err)]; ok {
		return common.NewAppError(mapped.code, mapped.message, err)
	}
	return common.NewAppError(http.StatusInternalServerError, "Internal server error", err)
}
