package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IUserRepository is the writable side of the local user directory.
type IUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
}

// UserRepository is a user directory backed by a local users table. Lookups
// are bounded by timeout and report directory kinds, the same contract as
// the HTTP directory client.
type UserRepository struct {
	DB      *sql.DB
	timeout time.Duration
}

func NewUserRepository(db *sql.DB, timeout time.Duration) *UserRepository {
	return &UserRepository{DB: db, timeout: timeout}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT id, email, password_hash, role FROM users WHERE email = $1`
	return r.findOne(ctx, query, email)
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT id, email, password_hash, role FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user := &model.User{}
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrCredentialNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute user lookup query")
		return nil, common.Wrap(common.KindDirectoryUnavailable, err)
	}
	return user, nil
}

// Create inserts a user into the local directory.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	log := logger.Log.WithField("user_id", user.ID)
	log.Info("Executing query to create a new user")

	query := `INSERT INTO users (id, email, password_hash, role) VALUES ($1, $2, $3, $4)`
	_, err := r.DB.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		log.WithError(err).Error("Failed to execute create user query")
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateRole changes the role of a user. An unknown id yields
// common.ErrCredentialNotFound.
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	log := logger.Log.WithFields(logrus.Fields{"user_id": id, "role": role})
	log.Info("Executing query to update user role")

	result, err := r.DB.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute update user role query")
		return fmt.Errorf("db error: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return common.ErrCredentialNotFound
	}
	return nil
}
