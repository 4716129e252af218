package service

import (
	"context"
	"errors"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidRole = errors.New("invalid role specified")
	ErrEmailTaken  = errors.New("email is already registered")
)

// UserService provisions users in the local directory. It is only wired
// when the directory driver is postgres.
type UserService struct {
	userRepo repository.IUserRepository
	hasher   Hasher
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.IUserRepository, hasher Hasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// Register creates a user with the default role.
func (s *UserService) Register(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         string(model.RoleUser),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, common.Wrap(common.KindDirectoryUnavailable, err)
	}

	logger.Log.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// UpdateUserRole validates the role and calls the repository to update it.
func (s *UserService) UpdateUserRole(ctx context.Context, userID uuid.UUID, newRole model.Role) error {
	if newRole != model.RoleAdmin && newRole != model.RoleUser {
		return ErrInvalidRole
	}
	err := s.userRepo.UpdateRole(ctx, userID, string(newRole))
	if err != nil && common.KindOf(err) == common.KindUnknown {
		return common.Wrap(common.KindDirectoryUnavailable, err)
	}
	return err
}
