package router

import (
	_ "go-auth-api/docs"
	"go-auth-api/handler"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// NewRouter registers every route. userHandler is nil unless the local user
// directory is configured.
func NewRouter(authHandler *handler.AuthHandler, userHandler *handler.UserHandler, healthHandler *handler.HealthHandler, auth *handler.Authenticator) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	mux.Handle("POST /auth/login", handler.ErrorHandlingMiddleware(authHandler.Login))
	mux.Handle("POST /auth/refresh", handler.ErrorHandlingMiddleware(authHandler.Refresh))
	mux.Handle("POST /auth/validate", handler.ErrorHandlingMiddleware(authHandler.Validate))
	mux.Handle("POST /auth/logout", auth.RequireSignature(handler.ErrorHandlingMiddleware(authHandler.Logout)))
	mux.Handle("GET /auth/sessions", auth.Require(handler.ErrorHandlingMiddleware(authHandler.ListSessions)))
	mux.Handle("DELETE /auth/sessions/{id}", auth.Require(handler.ErrorHandlingMiddleware(authHandler.EndSession)))
	mux.Handle("GET /auth/attempts", auth.Require(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(authHandler.LoginAttempts))))

	if userHandler != nil {
		mux.Handle("POST /users", handler.ErrorHandlingMiddleware(userHandler.Register))
		mux.Handle("PUT /users/{id}/role", auth.Require(handler.AdminMiddleware(handler.ErrorHandlingMiddleware(userHandler.UpdateRole))))
	}

	return handler.RequestLogger(mux)
}
