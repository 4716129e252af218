package service

import (
	"encoding/base64"
	"go-auth-api/common"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(at time.Time) *TokenSigner {
	s := NewTokenSigner(testConfig())
	s.now = fixedClock(at)
	return s
}

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := newTestSigner(t0)
	userID := uuid.New()

	token, err := signer.MintAccess(userID, "ana@example.com", "admin")
	require.NoError(t, err)

	identity, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "ana@example.com", identity.Email)
	assert.Equal(t, "admin", identity.Role)
	assert.Equal(t, "auth-service", identity.Issuer)
	assert.True(t, identity.IssuedAt.Equal(t0))
	assert.True(t, identity.ExpiresAt.Equal(t0.Add(900*time.Second)))
}

func TestTokenSigner_ExpiryBoundary(t *testing.T) {
	signer := newTestSigner(t0)
	token, err := signer.MintAccess(uuid.New(), "ana@example.com", "user")
	require.NoError(t, err)

	signer.now = fixedClock(t0.Add(899 * time.Second))
	_, err = signer.Verify(token)
	assert.NoError(t, err)

	signer.now = fixedClock(t0.Add(901 * time.Second))
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestTokenSigner_RejectsInvalidTokens(t *testing.T) {
	signer := newTestSigner(t0)
	userID := uuid.New()
	valid, err := signer.MintAccess(userID, "ana@example.com", "user")
	require.NoError(t, err)

	otherSecret := testConfig()
	otherSecret.JWT.SecretKey = "ffffffffffffffffffffffffffffffff"
	forged, err := NewTokenSigner(otherSecret).MintAccess(userID, "ana@example.com", "admin")
	require.NoError(t, err)

	otherIssuer := testConfig()
	otherIssuer.JWT.Issuer = "someone-else"
	foreign, err := NewTokenSigner(otherIssuer).MintAccess(userID, "ana@example.com", "user")
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	payload := `{"sub":"` + userID.String() + `","email":"ana@example.com","role":"admin","iss":"auth-service","exp":9999999999}`
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + parts[2]

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": userID.String(), "iss": "auth-service", "exp": t0.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
		{name: "wrong secret", token: forged},
		{name: "wrong issuer", token: foreign},
		{name: "tampered payload", token: tampered},
		{name: "alg none", token: unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(tt.token)
			assert.Equal(t, common.KindMalformedOrInvalidToken, common.KindOf(err))
		})
	}
}

func TestTokenSigner_WrongIssuerIsNotReportedAsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Issuer = "someone-else"
	foreign := NewTokenSigner(cfg)
	foreign.now = fixedClock(t0)
	token, err := foreign.MintAccess(uuid.New(), "ana@example.com", "user")
	require.NoError(t, err)

	signer := newTestSigner(t0.Add(2 * time.Hour))
	_, err = signer.Verify(token)
	assert.Equal(t, common.KindMalformedOrInvalidToken, common.KindOf(err))
}

func TestTokenSigner_KeySet(t *testing.T) {
	oldCfg := testConfig()
	oldCfg.JWT.KeyID = "k1"
	oldSigner := NewTokenSigner(oldCfg)
	oldSigner.now = fixedClock(t0)

	newCfg := testConfig()
	newCfg.JWT.KeyID = "k2"
	newCfg.JWT.SecretKey = "abcdefabcdefabcdefabcdefabcdefab"
	newCfg.JWT.VerifyKeys = map[string]string{"k1": testSecret}
	newSigner := NewTokenSigner(newCfg)
	newSigner.now = fixedClock(t0)

	oldToken, err := oldSigner.MintAccess(uuid.New(), "ana@example.com", "user")
	require.NoError(t, err)

	t.Run("previous key still verifies", func(t *testing.T) {
		_, err := newSigner.Verify(oldToken)
		assert.NoError(t, err)
	})

	t.Run("active key stamps kid", func(t *testing.T) {
		token, err := newSigner.MintAccess(uuid.New(), "ana@example.com", "user")
		require.NoError(t, err)
		parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
		require.NoError(t, err)
		assert.Equal(t, "k2", parsed.Header["kid"])

		_, err = oldSigner.Verify(token)
		assert.Equal(t, common.KindMalformedOrInvalidToken, common.KindOf(err))
	})

	t.Run("unknown kid", func(t *testing.T) {
		cfg := testConfig()
		cfg.JWT.KeyID = "k9"
		stranger := NewTokenSigner(cfg)
		stranger.now = fixedClock(t0)
		token, err := stranger.MintAccess(uuid.New(), "ana@example.com", "user")
		require.NoError(t, err)

		_, err = newSigner.Verify(token)
		assert.Equal(t, common.KindMalformedOrInvalidToken, common.KindOf(err))
	})
}

func TestTokenSigner_ExtractClaimsIgnoringExpiry(t *testing.T) {
	signer := newTestSigner(t0)
	userID := uuid.New()
	token, err := signer.MintAccess(userID, "ana@example.com", "user")
	require.NoError(t, err)

	signer.now = fixedClock(t0.Add(2 * time.Hour))

	_, err = signer.Verify(token)
	require.ErrorIs(t, err, common.ErrTokenExpired)

	identity, err := signer.ExtractClaimsIgnoringExpiry(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)

	cfg := testConfig()
	cfg.JWT.SecretKey = "ffffffffffffffffffffffffffffffff"
	forged, err := NewTokenSigner(cfg).MintAccess(userID, "ana@example.com", "admin")
	require.NoError(t, err)
	_, err = signer.ExtractClaimsIgnoringExpiry(forged)
	assert.Equal(t, common.KindMalformedOrInvalidToken, common.KindOf(err))

	cfg = testConfig()
	cfg.JWT.Issuer = "someone-else"
	foreign, err := NewTokenSigner(cfg).MintAccess(userID, "ana@example.com", "user")
	require.NoError(t, err)
	_, err = signer.ExtractClaimsIgnoringExpiry(foreign)
	assert.Equal(t, common.KindMalformedOrInvalidToken, common.KindOf(err))
}

func TestTokenSigner_MintOpaqueRefreshValue(t *testing.T) {
	signer := newTestSigner(t0)
	seen := make(map[string]struct{}, 1000)

	for i := 0; i < 1000; i++ {
		value, err := signer.MintOpaqueRefreshValue()
		require.NoError(t, err)
		assert.Len(t, value, 43)
		assert.NotContains(t, value, ".")
		_, dup := seen[value]
		require.False(t, dup, "duplicate refresh value")
		seen[value] = struct{}{}
	}
}
