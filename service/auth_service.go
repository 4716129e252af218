// file: service/auth_service.go

package service

import (
	"context"
	"go-auth-api/common"
	"go-auth-api/config"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"time"

	"github.com/google/uuid"
)

// AuthService is the entry point used by the HTTP layer.
type AuthService struct {
	verifier  *CredentialVerifier
	engine    *RotationEngine
	validator *TokenValidator
	signer    *TokenSigner
	directory Directory
	attempts  repository.ILoginAttemptRepository
}

func NewAuthService(cfg *config.Config, directory Directory, hasher Hasher, tokens repository.ITokenRepository, attempts repository.ILoginAttemptRepository) *AuthService {
	signer := NewTokenSigner(cfg)
	engine := NewRotationEngine(tokens, signer, cfg.JWT.RefreshTokenTTL, cfg.JWT.RotationEnabled)
	return &AuthService{
		verifier:  NewCredentialVerifier(directory, hasher, attempts, signer, engine),
		engine:    engine,
		validator: NewTokenValidator(signer),
		signer:    signer,
		directory: directory,
		attempts:  attempts,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password, sourceAddress string) (*model.TokenResponse, error) {
	return s.verifier.Login(ctx, email, password, sourceAddress)
}

// Refresh redeems a refresh token and mints a new access token for its owner.
// With rotation enabled the returned refresh token is the successor.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	result, err := s.engine.Redeem(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.FindByID(ctx, result.UserID)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", result.UserID).Warn("Could not resolve user for refresh")
		if common.KindOf(err) == common.KindUnknown {
			return nil, common.Wrap(common.KindDirectoryUnavailable, err)
		}
		return nil, err
	}

	accessToken, err := s.signer.MintAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: result.Token.Token,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.signer.AccessTTL() / time.Second),
	}, nil
}

func (s *AuthService) Validate(accessToken string) (*model.ValidationResponse, error) {
	identity, err := s.validator.Validate(accessToken)
	if err != nil {
		return nil, err
	}
	return &model.ValidationResponse{
		Valid:  true,
		UserID: identity.UserID,
		Email:  identity.Email,
		Role:   identity.Role,
	}, nil
}

// Identity reads a signed access token without enforcing its expiry.
func (s *AuthService) Identity(accessToken string) (*model.Identity, error) {
	return s.signer.ExtractClaimsIgnoringExpiry(accessToken)
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.engine.RevokeAll(ctx, userID)
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error) {
	return s.engine.Active(ctx, userID)
}

func (s *AuthService) EndSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.engine.Discard(ctx, userID, sessionID)
}

func (s *AuthService) LoginAttempts(ctx context.Context, email string) ([]*model.LoginAttempt, error) {
	attempts, err := s.attempts.FindByEmail(ctx, email)
	if err != nil {
		return nil, common.Wrap(common.KindStoreUnavailable, err)
	}
	return attempts, nil
}

// PurgeExpired removes refresh tokens that expired before the cutoff.
func (s *AuthService) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.engine.PurgeExpired(ctx, before)
}
