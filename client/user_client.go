package client

import (
	"context"
	"encoding/json"
	"fmt"
	"go-auth-api/common"
	"go-auth-api/logger"
	"go-auth-api/model"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UserClient looks users up in the external user service.
type UserClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewUserClient(baseURL string, timeout time.Duration, httpClient *http.Client) *UserClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &UserClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type userResponse struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
}

func (c *UserClient) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return c.get(ctx, "/users/by-email/"+url.PathEscape(email))
}

func (c *UserClient) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return c.get(ctx, "/users/"+id.String())
}

// get maps a 404 to ErrCredentialNotFound and every other failure,
// including the deadline, to KindDirectoryUnavailable.
func (c *UserClient) get(ctx context.Context, path string) (*model.User, error) {
	log := logger.Log.WithFields(logrus.Fields{"component": "user_client", "path": path})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, common.Wrapf(common.KindDirectoryUnavailable, "create user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("User service request failed")
		return nil, common.Wrapf(common.KindDirectoryUnavailable, "send user request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, common.ErrCredentialNotFound
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.Wrapf(common.KindDirectoryUnavailable, "read user response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("User service returned an unexpected status")
		return nil, common.Wrap(common.KindDirectoryUnavailable, fmt.Errorf("user service status %d", resp.StatusCode))
	}

	var parsed userResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, common.Wrapf(common.KindDirectoryUnavailable, "decode user response: %w", err)
	}
	return &model.User{
		ID:           parsed.ID,
		Email:        parsed.Email,
		PasswordHash: parsed.PasswordHash,
		Role:         parsed.Role,
	}, nil
}
