package services

import (
	"context"
	"errors"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
)

var (
	// ErrTemplateNotFound is returned when no live template has the code
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateInactive is returned when dispatching a deactivated template
	ErrTemplateInactive = errors.New("template is inactive")
	// ErrSeedConflict is returned when a tenant that already has templates is seeded
	ErrSeedConflict = errors.New("templates already exist for this tenant")
	// ErrUnknownBackend is returned for a gateway name no factory is registered for
	ErrUnknownBackend = smsgateway.ErrUnknownBackend
	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrForbidden is returned when the operator's role does not allow the action
	ErrForbidden = errors.New("operation not permitted for this role")
)

// TemplateCache is a read-through cache in front of the template store.
// Get returns nil, nil on a miss.
type TemplateCache interface {
	Get(ctx context.Context, tenantID, code string) (*models.Template, error)
	Set(ctx context.Context, t *models.Template) error
	Invalidate(ctx context.Context, tenantID, code string) error
}

// BackendResolver picks the gateway backend a tenant dispatches through
type BackendResolver interface {
	BackendFor(ctx context.Context, tenantID string) (smsgateway.Backend, error)
}

// Sender delivers one message through a backend and never fails past its boundary
type Sender interface {
	Send(ctx context.Context, backend smsgateway.Backend, phone, message string) smsgateway.SendResult
}
