package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/middleware"
	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/internal/services"
	"github.com/gin-gonic/gin"
)

// PageResponse wraps one page of a listing
type PageResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrTemplateNotFound), errors.Is(err, repositories.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repositories.ErrDuplicate),
		errors.Is(err, services.ErrSeedConflict),
		errors.Is(err, services.ErrTemplateInactive),
		errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnknownBackend):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// identity returns the caller's identity or aborts with 401
func identity(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
	}
	return id, ok
}

// pagination parses page and limit query parameters
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = services.DefaultPageSize
	}
	if limit > services.MaxPageSize {
		limit = services.MaxPageSize
	}
	return page, limit
}

// parseBound reads an RFC3339 timestamp or a YYYY-MM-DD date. A bare date
// used as an upper bound covers the whole day.
func parseBound(field, value string, upper bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, models.NewValidationError(field, "must be RFC3339 or YYYY-MM-DD")
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// deliveryFilter reads the ledger filter from the query string
func deliveryFilter(c *gin.Context) (models.DeliveryFilter, error) {
	from, err := parseBound("from", c.Query("from"), false)
	if err != nil {
		return models.DeliveryFilter{}, err
	}
	to, err := parseBound("to", c.Query("to"), true)
	if err != nil {
		return models.DeliveryFilter{}, err
	}
	return models.DeliveryFilter{
		Status:       models.DeliveryStatus(c.Query("status")),
		Category:     models.TemplateCategory(c.Query("category")),
		SubjectID:    c.Query("subjectId"),
		BatchID:      c.Query("batchId"),
		TemplateCode: c.Query("templateCode"),
		From:         from,
		To:           to,
	}, nil
}
