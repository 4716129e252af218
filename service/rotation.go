// file: service/rotation.go

package service

import (
	"context"
	"errors"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// refreshValueSource produces opaque refresh token values.
type refreshValueSource interface {
	MintOpaqueRefreshValue() (string, error)
}

// RedeemResult is the outcome of a successful Redeem. With rotation enabled
// Token is the newly issued successor; otherwise it is the redeemed record.
type RedeemResult struct {
	UserID  uuid.UUID
	Token   *model.RefreshToken
	Rotated bool
}

// RotationEngine owns every state transition of a refresh token:
// active -> rotated, active -> revoked, and the derived expired state.
type RotationEngine struct {
	repo     repository.ITokenRepository
	values   refreshValueSource
	ttl      time.Duration
	rotation bool
	now      func() time.Time
}

func NewRotationEngine(repo repository.ITokenRepository, values refreshValueSource, ttl time.Duration, rotationEnabled bool) *RotationEngine {
	return &RotationEngine{
		repo:     repo,
		values:   values,
		ttl:      ttl,
		rotation: rotationEnabled,
		now:      time.Now,
	}
}

func (e *RotationEngine) newRecord(userID uuid.UUID, now time.Time) (*model.RefreshToken, error) {
	value, err := e.values.MintOpaqueRefreshValue()
	if err != nil {
		return nil, common.Wrapf(common.KindStoreUnavailable, "mint refresh token value: %w", err)
	}
	return &model.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     value,
		ExpiresAt: now.Add(e.ttl),
		CreatedAt: now,
	}, nil
}

// Issue creates and persists a fresh active record for userID. A value
// collision is a creation failure and is not retried.
func (e *RotationEngine) Issue(ctx context.Context, userID uuid.UUID) (*model.RefreshToken, error) {
	record, err := e.newRecord(userID, e.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := e.repo.Create(ctx, record); err != nil {
		return nil, common.Wrapf(common.KindStoreUnavailable, "issue refresh token: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":  userID,
		"token_id": record.ID,
	}).Info("Refresh token issued")
	return record, nil
}

// Redeem exchanges a refresh token value. At most one concurrent caller can
// redeem a given value while rotation is enabled; the others observe
// TokenNotFound (or TokenRevoked/TokenExpired if that state won the race).
func (e *RotationEngine) Redeem(ctx context.Context, value string) (*RedeemResult, error) {
	now := e.now().UTC()
	record, err := e.find(ctx, value)
	if err != nil {
		return nil, err
	}
	if err := stateError(record, now); err != nil {
		return nil, err
	}
	if !e.rotation {
		return &RedeemResult{UserID: record.UserID, Token: record}, nil
	}

	successor, err := e.newRecord(record.UserID, now)
	if err != nil {
		return nil, err
	}
	consumed, err := e.repo.ConsumeAndReplace(ctx, value, now, successor)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, e.lostRace(ctx, value, now)
		}
		return nil, common.Wrapf(common.KindStoreUnavailable, "rotate refresh token: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":      consumed.UserID,
		"token_id":     consumed.ID,
		"successor_id": successor.ID,
	}).Info("Refresh token rotated")
	return &RedeemResult{UserID: consumed.UserID, Token: successor, Rotated: true}, nil
}

// lostRace explains why a conditional consume matched nothing.
func (e *RotationEngine) lostRace(ctx context.Context, value string, now time.Time) error {
	record, err := e.find(ctx, value)
	if err != nil {
		return err
	}
	if err := stateError(record, now); err != nil {
		return err
	}
	return common.ErrTokenNotFound
}

func (e *RotationEngine) find(ctx context.Context, value string) (*model.RefreshToken, error) {
	record, err := e.repo.FindByToken(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, common.Wrap(common.KindStoreUnavailable, err)
	}
	return record, nil
}

func stateError(record *model.RefreshToken, now time.Time) error {
	if record.Revoked {
		return common.ErrTokenRevoked
	}
	if !record.ExpiresAt.After(now) {
		return common.ErrTokenExpired
	}
	return nil
}

// RevokeAll revokes every record of userID and returns how many changed.
func (e *RotationEngine) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := e.repo.RevokeAllByUserID(ctx, userID)
	if err != nil {
		return 0, common.Wrap(common.KindStoreUnavailable, err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("Refresh tokens revoked")
	return n, nil
}

// Active lists the user's records that could still be redeemed.
func (e *RotationEngine) Active(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error) {
	records, err := e.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, common.Wrap(common.KindStoreUnavailable, err)
	}
	now := e.now()
	active := make([]*model.RefreshToken, 0, len(records))
	for _, r := range records {
		if r.Usable(now) {
			active = append(active, r)
		}
	}
	return active, nil
}

// Discard deletes one of the user's records by id. Records owned by other
// users are reported as TokenNotFound.
func (e *RotationEngine) Discard(ctx context.Context, userID, tokenID uuid.UUID) error {
	records, err := e.repo.FindByUserID(ctx, userID)
	if err != nil {
		return common.Wrap(common.KindStoreUnavailable, err)
	}
	for _, r := range records {
		if r.ID != tokenID {
			continue
		}
		if err := e.repo.DeleteByID(ctx, tokenID); err != nil {
			return common.Wrap(common.KindStoreUnavailable, err)
		}
		logger.Log.WithFields(logrus.Fields{"user_id": userID, "token_id": tokenID}).Info("Refresh token discarded")
		return nil
	}
	return common.ErrTokenNotFound
}

// PurgeExpired deletes records that expired before the cutoff. Live records
// are never touched.
func (e *RotationEngine) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := e.repo.DeleteExpired(ctx, before)
	if err != nil {
		return 0, common.Wrap(common.KindStoreUnavailable, err)
	}
	if n > 0 {
		logger.Log.WithField("purged", n).Info("Expired refresh tokens purged")
	}
	return n, nil
}
