// file: router/router_test.go

package router_test

import (
	"context"
	"encoding/json"
	"go-auth-api/client"
	"go-auth-api/config"
	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

// memoryAttempts keeps login attempts in memory.
type memoryAttempts struct {
	mu       sync.Mutex
	attempts []*model.LoginAttempt
}

func (s *memoryAttempts) Save(_ context.Context, a *model.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *memoryAttempts) FindByEmail(_ context.Context, email string) ([]*model.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.LoginAttempt
	for _, a := range s.attempts {
		if a.Email != nil && *a.Email == email {
			out = append(out, a)
		}
	}
	return out, nil
}

type testServer struct {
	handler  http.Handler
	attempts *memoryAttempts
	user     *model.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{ID: uuid.New(), Email: "ana@example.com", PasswordHash: string(hash), Role: "admin"}

	users := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/by-email/"+user.Email && r.URL.Path != "/users/"+user.ID.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(user)
	}))
	t.Cleanup(users.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{}
	cfg.JWT.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour
	cfg.JWT.Issuer = "auth-service"
	cfg.JWT.RotationEnabled = true

	attempts := &memoryAttempts{}
	authService := service.NewAuthService(cfg,
		client.NewUserClient(users.URL, time.Second, nil),
		service.NewBcryptHasher(bcrypt.MinCost, time.Second),
		repository.NewRedisTokenRepository(rdb, time.Hour),
		attempts,
	)

	health := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"token_store": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	r := router.NewRouter(handler.NewAuthHandler(authService), nil, health, handler.NewAuthenticator(authService))
	return &testServer{handler: r, attempts: attempts, user: user}
}

func (s *testServer) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decodeTokens(t *testing.T, rr *httptest.ResponseRecorder) model.TokenResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var tokens model.TokenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tokens))
	return tokens
}

func TestRouter_TokenLifecycle(t *testing.T) {
	srv := newTestServer(t)

	login := decodeTokens(t, srv.do(http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"correct horse"}`, ""))
	assert.Equal(t, "Bearer", login.TokenType)
	assert.Equal(t, int64(900), login.ExpiresIn)

	rr := srv.do(http.MethodPost, "/auth/validate", `{"token":"`+login.AccessToken+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var validation model.ValidationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&validation))
	assert.True(t, validation.Valid)
	assert.Equal(t, srv.user.ID, validation.UserID)
	assert.Equal(t, "admin", validation.Role)

	refreshed := decodeTokens(t, srv.do(http.MethodPost, "/auth/refresh", `{"refresh_token":"`+login.RefreshToken+`"}`, ""))
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	rr = srv.do(http.MethodPost, "/auth/refresh", `{"refresh_token":"`+login.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "a rotated refresh token is single use")

	rr = srv.do(http.MethodGet, "/auth/sessions", "", refreshed.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var sessions []model.RefreshToken
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&sessions))
	assert.Len(t, sessions, 1)

	rr = srv.do(http.MethodPost, "/auth/logout", "", refreshed.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"revoked":1}`, rr.Body.String())

	rr = srv.do(http.MethodPost, "/auth/refresh", `{"refresh_token":"`+refreshed.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "revoked")
}

func TestRouter_LoginFailuresAreAudited(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(http.MethodPost, "/auth/login", `{"email":"ghost@example.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	known, _ := srv.attempts.FindByEmail(context.Background(), "ana@example.com")
	require.Len(t, known, 1)
	assert.False(t, known[0].Success)

	unknown, _ := srv.attempts.FindByEmail(context.Background(), "ghost@example.com")
	require.Len(t, unknown, 1)
	assert.False(t, unknown[0].Success)

	login := decodeTokens(t, srv.do(http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"correct horse"}`, ""))
	rr = srv.do(http.MethodGet, "/auth/attempts?email=ana@example.com", "", login.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var history []model.LoginAttempt
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&history))
	assert.Len(t, history, 2)
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"API is healthy and running","token_store":"ok"}`, rr.Body.String())
}

func TestRouter_UserRoutesDisabledWithoutLocalDirectory(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(http.MethodPost, "/users", `{"email":"new@example.com","password":"longenough"}`, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
