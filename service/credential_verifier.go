// file: service/credential_verifier.go

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

const tokenTypeBearer = "Bearer"

// Directory resolves user credential records. Implementations report
// common.ErrCredentialNotFound for unknown users and KindDirectoryUnavailable
// for every other failure, including timeouts.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Hasher is the one-way password hashing primitive.
type Hasher interface {
	Matches(ctx context.Context, raw, hash string) (bool, error)
	Hash(raw string) (string, error)
}

// CredentialVerifier runs the login flow. Every call writes exactly one
// login attempt row before it reports a credential failure.
type CredentialVerifier struct {
	directory Directory
	hasher    Hasher
	attempts  repository.ILoginAttemptRepository
	signer    *TokenSigner
	engine    *RotationEngine
	now       func() time.Time
}

func NewCredentialVerifier(directory Directory, hasher Hasher, attempts repository.ILoginAttemptRepository, signer *TokenSigner, engine *RotationEngine) *CredentialVerifier {
	return &CredentialVerifier{
		directory: directory,
		hasher:    hasher,
		attempts:  attempts,
		signer:    signer,
		engine:    engine,
		now:       time.Now,
	}
}

func (v *CredentialVerifier) Login(ctx context.Context, email, password, sourceAddress string) (*model.TokenResponse, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"email":          email,
		"source_address": sourceAddress,
	})

	user, failure := v.check(ctx, email, password)
	success := failure == nil

	if err := v.record(ctx, email, success, sourceAddress); err != nil {
		if success {
			log.WithError(err).Error("Failed to record successful login attempt")
			return nil, common.Wrapf(common.KindStoreUnavailable, "record login attempt: %w", err)
		}
		log.WithError(err).Error("Failed to record failed login attempt")
	}
	if failure != nil {
		log.WithField("reason", common.KindOf(failure).String()).Warn("Login failed")
		return nil, failure
	}

	accessToken, err := v.signer.MintAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := v.engine.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	log.WithField("user_id", user.ID).Info("Login succeeded")
	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(v.signer.AccessTTL() / time.Second),
	}, nil
}

// check resolves the user and compares the password. Unknown emails and
// wrong passwords both surface as InvalidCredentials.
func (v *CredentialVerifier) check(ctx context.Context, email, password string) (*model.User, error) {
	user, err := v.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrCredentialNotFound) {
			return nil, common.Wrap(common.KindInvalidCredentials, err)
		}
		if common.KindOf(err) == common.KindUnknown {
			return nil, common.Wrap(common.KindDirectoryUnavailable, err)
		}
		return nil, err
	}

	ok, err := v.hasher.Matches(ctx, password, user.PasswordHash)
	if err != nil {
		if common.KindOf(err) == common.KindUnknown {
			return nil, common.Wrap(common.KindDirectoryUnavailable, err)
		}
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}

func (v *CredentialVerifier) record(ctx context.Context, email string, success bool, sourceAddress string) error {
	attempt := &model.LoginAttempt{
		ID:        uuid.New(),
		Success:   success,
		CreatedAt: v.now().UTC(),
	}
	if email != "" {
		attempt.Email = &email
	}
	if sourceAddress != "" {
		attempt.SourceAddress = &sourceAddress
	}
	return v.attempts.Save(ctx, attempt)
}
