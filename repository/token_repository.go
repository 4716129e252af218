// file: repository/token_repository.go

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// ITokenRepository defines the contract for refresh token storage.
type ITokenRepository interface {
	// Create inserts a new record. A token value that already exists yields
	// ErrDuplicateToken and never overwrites the existing record.
	Create(ctx context.Context, token *model.RefreshToken) error
	// FindByToken returns the record for an opaque value or ErrNotFound.
	FindByToken(ctx context.Context, value string) (*model.RefreshToken, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error)
	// ConsumeAndReplace removes the record for value only if it is still
	// usable at now, and inserts successor (when non-nil) for the same owner,
	// as one atomic step. It returns the consumed record, or ErrNotFound when
	// the record is missing, revoked, expired, or was consumed concurrently.
	ConsumeAndReplace(ctx context.Context, value string, now time.Time, successor *model.RefreshToken) (*model.RefreshToken, error)
	// RevokeAllByUserID marks every record of the user revoked and returns
	// how many records changed state.
	RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// DeleteExpired removes records that expired before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenRepository implements ITokenRepository on PostgreSQL.
type TokenRepository struct {
	DB *sql.DB
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{DB: db}
}

const tokenColumns = `id, user_id, token, expires_at, revoked, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row rowScanner) (*model.RefreshToken, error) {
	token := &model.RefreshToken{}
	err := row.Scan(&token.ID, &token.UserID, &token.Token, &token.ExpiresAt, &token.Revoked, &token.CreatedAt)
	if err != nil {
		return nil, err
	}
	return token, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// Create inserts a new refresh token record into the database.
func (r *TokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"token_id":   token.ID,
		"user_id":    token.UserID,
		"expires_at": token.ExpiresAt,
	})
	log.Info("Executing query to create a new refresh token")

	query := `INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt, token.Revoked, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			log.Warn("Refresh token value collision")
			return ErrDuplicateToken
		}
		log.WithError(err).Error("Failed to execute create refresh token query")
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByToken retrieves a refresh token by its opaque value.
func (r *TokenRepository) FindByToken(ctx context.Context, value string) (*model.RefreshToken, error) {
	logger.Log.Info("Executing query to get refresh token by value")

	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token = $1`
	token, err := scanToken(r.DB.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get refresh token by value query")
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// FindByUserID lists every record owned by the user, newest first.
func (r *TokenRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to get refresh tokens by user ID")

	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute query for refresh tokens by user ID")
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var tokens []*model.RefreshToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			log.WithError(err).Error("Failed to scan refresh token row")
			return nil, fmt.Errorf("db error: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

// ConsumeAndReplace deletes the usable record and inserts its successor in
// one transaction. The conditional DELETE takes the row lock, so a concurrent
// caller blocks and then matches zero rows.
func (r *TokenRepository) ConsumeAndReplace(ctx context.Context, value string, now time.Time, successor *model.RefreshToken) (*model.RefreshToken, error) {
	logger.Log.Info("Executing transaction to consume and replace refresh token")

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `DELETE FROM refresh_tokens WHERE token = $1 AND revoked = FALSE AND expires_at > $2 RETURNING ` + tokenColumns
	consumed, err := scanToken(tx.QueryRowContext(ctx, query, value, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute consume refresh token query")
		return nil, fmt.Errorf("db error: %w", err)
	}

	if successor != nil {
		successor.UserID = consumed.UserID
		insert := `INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
		_, err := tx.ExecContext(ctx, insert, successor.ID, successor.UserID, successor.Token, successor.ExpiresAt, successor.Revoked, successor.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, ErrDuplicateToken
			}
			logger.Log.WithError(err).Error("Failed to execute insert successor refresh token query")
			return nil, fmt.Errorf("db error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"token_id": consumed.ID,
		"user_id":  consumed.UserID,
	}).Info("Refresh token consumed")
	return consumed, nil
}

// RevokeAllByUserID revokes all refresh tokens for a specific user.
// This is used for logging out from all sessions.
func (r *TokenRepository) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	log := logger.Log.WithField("user_id", userID)
	log.Info("Executing query to revoke all refresh tokens for a user")

	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`
	result, err := r.DB.ExecContext(ctx, query, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute revoke refresh tokens query")
		return 0, fmt.Errorf("db error: %w", err)
	}
	return result.RowsAffected()
}

func (r *TokenRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	log := logger.Log.WithField("token_id", id)
	log.Info("Executing query to delete refresh token by ID")

	_, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	if err != nil {
		log.WithError(err).Error("Failed to execute delete refresh token query")
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	log := logger.Log.WithField("before", before)
	log.Info("Executing query to purge expired refresh tokens")

	result, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		log.WithError(err).Error("Failed to execute purge refresh tokens query")
		return 0, fmt.Errorf("db error: %w", err)
	}
	return result.RowsAffected()
}
