package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/pkg/smsgateway"
	"github.com/sirupsen/logrus"
)

// TestMessage is sent by a gateway connectivity test
const TestMessage = "Test message from EduNotify. Your SMS gateway is configured correctly."

// GatewayService manages the SMS backend each tenant dispatches through
type GatewayService struct {
	repo           repositories.GatewaySettingsRepository
	registry       *smsgateway.Registry
	sender         Sender
	defaultBackend string
	log            *logrus.Entry
}

// NewGatewayService creates a GatewayService. Tenants without stored
// settings dispatch through defaultBackend.
func NewGatewayService(repo repositories.GatewaySettingsRepository, registry *smsgateway.Registry, sender Sender, defaultBackend string, log *logrus.Logger) *GatewayService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if defaultBackend == "" {
		defaultBackend = smsgateway.BackendDemo
	}
	return &GatewayService{
		repo:           repo,
		registry:       registry,
		sender:         sender,
		defaultBackend: defaultBackend,
		log:            log.WithField("component", "gateway"),
	}
}

// Configure validates the credentials by building the backend, then stores them
func (s *GatewayService) Configure(ctx context.Context, id models.Identity, req models.GatewayConfigRequest) (*models.GatewaySettings, error) {
	name := strings.ToLower(strings.TrimSpace(req.Backend))
	if _, err := s.build(name, req.Credentials); err != nil {
		return nil, err
	}

	settings := &models.GatewaySettings{
		TenantID:    id.TenantID,
		Backend:     name,
		Credentials: req.Credentials,
		UpdatedBy:   id.OperatorID,
	}
	if settings.Credentials == nil {
		settings.Credentials = map[string]string{}
	}
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save gateway settings: %w", err)
	}
	s.log.WithFields(logrus.Fields{"tenant_id": id.TenantID, "backend": name}).Info("Gateway configured")
	return settings.Masked(), nil
}

// Get returns the tenant's settings with credentials masked, or the
// default backend when none are stored
func (s *GatewayService) Get(ctx context.Context, tenantID string) (*models.GatewaySettings, error) {
	settings, err := s.repo.FindByTenant(ctx, tenantID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.GatewaySettings{
			TenantID:    tenantID,
			Backend:     s.defaultBackend,
			Credentials: map[string]string{},
			IsDefault:   true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gateway settings: %w", err)
	}
	return settings.Masked(), nil
}

// Test sends TestMessage to req.TestPhone through the supplied backend
// and credentials. Nothing is stored and no ledger entry is written.
func (s *GatewayService) Test(ctx context.Context, req models.GatewayConfigRequest) (smsgateway.SendResult, error) {
	if strings.TrimSpace(req.TestPhone) == "" {
		return smsgateway.SendResult{}, models.NewValidationError("testPhone", "is required")
	}
	backend, err := s.build(strings.ToLower(strings.TrimSpace(req.Backend)), req.Credentials)
	if err != nil {
		return smsgateway.SendResult{}, err
	}
	return s.sender.Send(ctx, backend, req.TestPhone, TestMessage), nil
}

// BackendFor builds the backend the tenant dispatches through. Tenants
// without settings use the default backend, falling back to demo when the
// default cannot be built without credentials.
func (s *GatewayService) BackendFor(ctx context.Context, tenantID string) (smsgateway.Backend, error) {
	settings, err := s.repo.FindByTenant(ctx, tenantID)
	switch {
	case err == nil:
		backend, err := s.registry.Build(settings.Backend, settings.Credentials)
		if err != nil {
			return nil, fmt.Errorf("stored %s gateway is unusable: %w", settings.Backend, err)
		}
		return backend, nil
	case errors.Is(err, repositories.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load gateway settings: %w", err)
	}

	backend, err := s.registry.Build(s.defaultBackend, nil)
	if err == nil {
		return backend, nil
	}
	s.log.WithError(err).WithField("backend", s.defaultBackend).Warn("Default gateway unusable, using demo")
	return s.registry.Build(smsgateway.BackendDemo, nil)
}

// Backends lists the registered backend names
func (s *GatewayService) Backends() []string {
	return s.registry.Names()
}

func (s *GatewayService) build(name string, creds map[string]string) (smsgateway.Backend, error) {
	if name == "" {
		return nil, models.NewValidationError("backend", "is required")
	}
	backend, err := s.registry.Build(name, creds)
	if err != nil {
		if errors.Is(err, smsgateway.ErrUnknownBackend) {
			return nil, err
		}
		return nil, models.NewValidationError("credentials", err.Error())
	}
	return backend, nil
}
