package repository

import (
	"context"
	"database/sql"
	"fmt"
	"go-auth-api/logger"
	"go-auth-api/model"

	"github.com/sirupsen/logrus"
)

// ILoginAttemptRepository is the append-only audit store for login attempts.
type ILoginAttemptRepository interface {
	Save(ctx context.Context, attempt *model.LoginAttempt) error
	FindByEmail(ctx context.Context, email string) ([]*model.LoginAttempt, error)
}

// LoginAttemptRepository implements ILoginAttemptRepository on PostgreSQL.
type LoginAttemptRepository struct {
	DB *sql.DB
}

func NewLoginAttemptRepository(db *sql.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{DB: db}
}

// Save appends one attempt row. Rows are never updated or deleted.
func (r *LoginAttemptRepository) Save(ctx context.Context, attempt *model.LoginAttempt) error {
	log := logger.Log.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"success":    attempt.Success,
	})
	log.Info("Executing query to record a login attempt")

	query := `INSERT INTO login_attempts (id, email, success, ip_address, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.DB.ExecContext(ctx, query, attempt.ID, attempt.Email, attempt.Success, attempt.SourceAddress, attempt.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create login attempt query")
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByEmail lists the recorded attempts for an email, newest first.
func (r *LoginAttemptRepository) FindByEmail(ctx context.Context, email string) ([]*model.LoginAttempt, error) {
	logger.Log.Info("Executing query to get login attempts by email")

	query := `SELECT id, email, success, ip_address, created_at FROM login_attempts WHERE email = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, email)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to execute query for login attempts by email")
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var attempts []*model.LoginAttempt
	for rows.Next() {
		var (
			a       model.LoginAttempt
			addr    sql.NullString
			emailDB sql.NullString
		)
		if err := rows.Scan(&a.ID, &emailDB, &a.Success, &addr, &a.CreatedAt); err != nil {
			logger.Log.WithError(err).Error("Failed to scan login attempt row")
			return nil, fmt.Errorf("db error: %w", err)
		}
		if emailDB.Valid {
			a.Email = &emailDB.String
		}
		if addr.Valid {
			a.SourceAddress = &addr.String
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return attempts, nil
}
