// file: service/signer.go

package service

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"go-auth-api/common"
	"go-auth-api/config"
	"go-auth-api/logger"
	"go-auth-api/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshValueBytes = 32

// TokenSigner mints and verifies HS256 access tokens. New tokens are signed
// with the active key; verification accepts the active key and every key in
// the configured verify set, selected by the "kid" header.
type TokenSigner struct {
	activeKID string
	activeKey []byte
	keys      map[string][]byte
	ttl       time.Duration
	issuer    string
	now       func() time.Time
}

func NewTokenSigner(cfg *config.Config) *TokenSigner {
	keys := make(map[string][]byte, len(cfg.JWT.VerifyKeys)+1)
	for kid, secret := range cfg.JWT.VerifyKeys {
		keys[kid] = []byte(secret)
	}
	if cfg.JWT.KeyID != "" {
		keys[cfg.JWT.KeyID] = []byte(cfg.JWT.SecretKey)
	}
	return &TokenSigner{
		activeKID: cfg.JWT.KeyID,
		activeKey: []byte(cfg.JWT.SecretKey),
		keys:      keys,
		ttl:       cfg.JWT.AccessTokenTTL,
		issuer:    cfg.JWT.Issuer,
		now:       time.Now,
	}
}

// AccessTTL is the lifetime stamped into every minted access token.
func (s *TokenSigner) AccessTTL() time.Duration {
	return s.ttl
}

func (s *TokenSigner) MintAccess(userID uuid.UUID, email, role string) (string, error) {
	now := s.now()
	claims := &model.AppClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.activeKID != "" {
		token.Header["kid"] = s.activeKID
	}
	signed, err := token.SignedString(s.activeKey)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to sign JWT")
		return "", fmt.Errorf("failed to sign token string: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry. An expired but otherwise valid
// token yields ErrTokenExpired; anything else yields ErrMalformedOrInvalidToken.
func (s *TokenSigner) Verify(tokenString string) (*model.Identity, error) {
	claims := &model.AppClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, classifyJWTError(err)
	}
	return identityFromClaims(claims)
}

// ExtractClaimsIgnoringExpiry reads the identity of a token whose signature
// and issuer are valid, whether or not it has expired.
func (s *TokenSigner) ExtractClaimsIgnoringExpiry(tokenString string) (*model.Identity, error) {
	claims := &model.AppClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, common.Wrap(common.KindMalformedOrInvalidToken, err)
	}
	if claims.Issuer != s.issuer {
		return nil, common.Wrapf(common.KindMalformedOrInvalidToken, "unexpected issuer %q", claims.Issuer)
	}
	return identityFromClaims(claims)
}

// MintOpaqueRefreshValue returns 32 random bytes, base64url encoded. The
// value carries no claims; uniqueness is enforced by the store.
func (s *TokenSigner) MintOpaqueRefreshValue() (string, error) {
	buf := make([]byte, refreshValueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *TokenSigner) keyFor(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return s.activeKey, nil
	}
	key, ok := s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return common.Wrap(common.KindMalformedOrInvalidToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.Wrap(common.KindTokenExpired, err)
	default:
		return common.Wrap(common.KindMalformedOrInvalidToken, err)
	}
}

func identityFromClaims(claims *model.AppClaims) (*model.Identity, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, common.Wrapf(common.KindMalformedOrInvalidToken, "invalid subject: %w", err)
	}
	identity := &model.Identity{
		UserID: userID,
		Email:  claims.Email,
		Role:   claims.Role,
		Issuer: claims.Issuer,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}
