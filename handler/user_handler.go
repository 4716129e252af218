package handler

import (
	"context"
	"errors"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/service"
	"net/http"

	"github.com/google/uuid"
)

// UserProvisioner manages users in the local directory.
type UserProvisioner interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	UpdateUserRole(ctx context.Context, userID uuid.UUID, newRole model.Role) error
}

type UserHandler struct {
	service UserProvisioner
}

func NewUserHandler(service UserProvisioner) *UserHandler {
	return &UserHandler{service: service}
}

// Register godoc
// @Summary      Register a user
// @Description  Only available when the local user directory is configured
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        user  body      model.RegisterRequest  true  "New user"
// @Success      201   {object}  model.User
// @Failure      400   {object}  common.AppError
// @Failure      409   {object}  common.AppError
// @Router       /users [post]
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return common.NewAppError(http.StatusConflict, "Email is already registered", nil)
		}
		return toAppError(err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered via API")
	user.PasswordHash = ""
	writeJSON(w, http.StatusCreated, user)
	return nil
}

// UpdateRole godoc
// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Security     BearerAuth
// @Param        id    path  string                   true  "User ID"
// @Param        role  body  model.UpdateRoleRequest  true  "New role"
// @Success      204
// @Failure      400  {object}  common.AppError
// @Failure      403  {object}  common.AppError
// @Router       /users/{id}/role [put]
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return common.NewAppError(http.StatusBadRequest, "Invalid user ID", nil)
	}

	var req model.UpdateRoleRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.service.UpdateUserRole(r.Context(), userID, model.Role(req.Role)); err != nil {
		if errors.Is(err, service.ErrInvalidRole) {
			return common.NewAppError(http.StatusBadRequest, err.Error(), nil)
		}
		if errors.Is(err, common.ErrCredentialNotFound) {
			return common.NewAppError(http.StatusNotFound, "User not found", nil)
		}
		return toAppError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
