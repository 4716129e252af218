// handler/health_handler_test.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{
			"token_store": func(context.Context) error { return nil },
		})

		rr := serve(http.HandlerFunc(h.Health), http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"API is healthy and running","token_store":"ok"}`, rr.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandler(map[string]HealthCheck{
			"token_store": func(context.Context) error { return errors.New("connection refused") },
		})

		rr := serve(http.HandlerFunc(h.Health), http.MethodGet, "/health", "", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"degraded","token_store":"connection refused"}`, rr.Body.String())
	})
}
