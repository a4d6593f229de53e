package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", models.NewValidationError("templateCode", "is required"), http.StatusBadRequest},
		{"unknown backend", fmt.Errorf("%w: pigeon", services.ErrUnknownBackend), http.StatusBadRequest},
		{"bad credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"missing template", fmt.Errorf("%w: ABSENT_ALERT", services.ErrTemplateNotFound), http.StatusNotFound},
		{"missing row", fmt.Errorf("delivery x: %w", repositories.ErrNotFound), http.StatusNotFound},
		{"duplicate", fmt.Errorf("template X: %w", repositories.ErrDuplicate), http.StatusConflict},
		{"seed conflict", services.ErrSeedConflict, http.StatusConflict},
		{"inactive", services.ErrTemplateInactive, http.StatusConflict},
		{"transition", fmt.Errorf("delivery x: %w", models.ErrInvalidTransition), http.StatusConflict},
		{"anything else", errors.New("mongo: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			respondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestParseBound(t *testing.T) {
	got, err := parseBound("from", "", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseBound("from", "2024-06-03", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), *got)

	got, err = parseBound("to", "2024-06-03", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 23, 59, 59, 999999999, time.UTC), *got)

	got, err = parseBound("to", "2024-06-03T10:30:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC), *got)

	_, err = parseBound("from", "03/06/2024", false)
	assert.True(t, models.IsValidationError(err))
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query       string
		page, limit int
	}{
		{"", 1, services.DefaultPageSize},
		{"?page=3&limit=50", 3, 50},
		{"?page=0&limit=-4", 1, services.DefaultPageSize},
		{"?page=abc&limit=5000", 1, services.MaxPageSize},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/deliveries"+tt.query, nil)
		page, limit := pagination(c)
		assert.Equal(t, tt.page, page, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
}
