package handler

import (
	"context"
	"encoding/json"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthService is the subset of the service layer the auth endpoints use.
type AuthService interface {
	TokenReader
	Login(ctx context.Context, email, password, sourceAddress string) (*model.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error)
	LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error)
	Sessions(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error)
	EndSession(ctx context.Context, userID, sessionID uuid.UUID) error
	LoginAttempts(ctx context.Context, email string) ([]*model.LoginAttempt, error)
}

type AuthHandler struct {
	service AuthService
}

func NewAuthHandler(service AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Login godoc
// @Summary      Log in
// @Description  Exchange email and password for an access token and a refresh token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body      model.LoginRequest  true  "Credentials"
// @Success      200          {object}  model.TokenResponse
// @Failure      400          {object}  common.AppError
// @Failure      401          {object}  common.AppError
// @Failure      503          {object}  common.AppError
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	source := SourceAddress(r)
	logger.Log.WithFields(logrus.Fields{
		"email":          req.Email,
		"source_address": source,
	}).Info("Login request received")

	resp, err := h.service.Login(r.Context(), req.Email, req.Password, source)
	if err != nil {
		return toAppError(err)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// Refresh godoc
// @Summary      Refresh tokens
// @Description  Redeem a refresh token for a new access token. With rotation enabled the refresh token is replaced.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  body      model.RefreshRequest  true  "Refresh token"
// @Success      200    {object}  model.TokenResponse
// @Failure      400    {object}  common.AppError
// @Failure      401    {object}  common.AppError
// @Failure      503    {object}  common.AppError
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RefreshRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return toAppError(err)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// Validate godoc
// @Summary      Validate an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  body      model.ValidateRequest  true  "Access token"
// @Success      200    {object}  model.ValidationResponse
// @Failure      400    {object}  common.AppError
// @Failure      401    {object}  common.AppError
// @Router       /auth/validate [post]
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ValidateRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	resp, err := h.service.Validate(req.Token)
	if err != nil {
		return toAppError(err)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// Logout godoc
// @Summary      Log out everywhere
// @Description  Revoke every refresh token of the caller. An expired access token is accepted.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.LogoutResponse
// @Failure      401  {object}  common.AppError
// @Failure      503  {object}  common.AppError
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFrom(r)
	if appErr != nil {
		return appErr
	}

	n, err := h.service.LogoutAll(r.Context(), userID)
	if err != nil {
		return toAppError(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("User logged out everywhere")
	writeJSON(w, http.StatusOK, model.LogoutResponse{Revoked: n})
	return nil
}

// ListSessions godoc
// @Summary      List active sessions
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   model.RefreshToken
// @Failure      401  {object}  common.AppError
// @Router       /auth/sessions [get]
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFrom(r)
	if appErr != nil {
		return appErr
	}

	sessions, err := h.service.Sessions(r.Context(), userID)
	if err != nil {
		return toAppError(err)
	}
	writeJSON(w, http.StatusOK, sessions)
	return nil
}

// EndSession godoc
// @Summary      End one session
// @Tags         auth
// @Security     BearerAuth
// @Param        id   path  string  true  "Session ID"
// @Success      204
// @Failure      400  {object}  common.AppError
// @Failure      401  {object}  common.AppError
// @Router       /auth/sessions/{id} [delete]
func (h *AuthHandler) EndSession(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := userIDFrom(r)
	if appErr != nil {
		return appErr
	}
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid session ID", nil)
	}

	if err := h.service.EndSession(r.Context(), userID, sessionID); err != nil {
		return toAppError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// LoginAttempts godoc
// @Summary      Login history for an email
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        email  query     string  true  "Email"
// @Success      200    {array}   model.LoginAttempt
// @Failure      400    {object}  common.AppError
// @Failure      403    {object}  common.AppError
// @Router       /auth/attempts [get]
func (h *AuthHandler) LoginAttempts(w http.ResponseWriter, r *http.Request) *common.AppError {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		return common.NewAppError(http.StatusBadRequest, "email query parameter is required", nil)
	}

	attempts, err := h.service.LoginAttempts(r.Context(), email)
	if err != nil {
		return toAppError(err)
	}
	writeJSON(w, http.StatusOK, attempts)
	return nil
}

// SourceAddress is the first X-Forwarded-For entry, or the host part of
// the connection's remote address.
func SourceAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
