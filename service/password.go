// file: service/password.go

package service

import (
	"context"
	"errors"
	"go-auth-api/common"
	"go-auth-api/logger"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher compares and produces bcrypt hashes. Comparisons are bounded
// by timeout and report KindDirectoryUnavailable when it fires.
type BcryptHasher struct {
	cost    int
	timeout time.Duration
}

func NewBcryptHasher(cost int, timeout time.Duration) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost, timeout: timeout}
}

func (h *BcryptHasher) Matches(ctx context.Context, raw, hash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	// Buffered so the comparison can finish and exit after a timeout.
	done := make(chan error, 1)
	go func() {
		done <- bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
	}()

	select {
	case err := <-done:
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			logger.Log.WithError(err).Warn("Stored password hash could not be compared")
		}
		return false, nil
	case <-ctx.Done():
		return false, common.Wrapf(common.KindDirectoryUnavailable, "password comparison: %w", ctx.Err())
	}
}

func (h *BcryptHasher) Hash(raw string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}
