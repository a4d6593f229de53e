package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/sirupsen/logrus"
)

// Pagination bounds shared by the listing endpoints
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TemplateService manages a tenant's message templates
type TemplateService struct {
	repo  repositories.TemplateRepository
	cache TemplateCache
	log   *logrus.Entry
}

// NewTemplateService creates a TemplateService. cache may be nil.
func NewTemplateService(repo repositories.TemplateRepository, cache TemplateCache, log *logrus.Logger) *TemplateService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TemplateService{
		repo:  repo,
		cache: cache,
		log:   log.WithField("component", "templates"),
	}
}

// Create validates and stores a new template for the operator's tenant
func (s *TemplateService) Create(ctx context.Context, id models.Identity, in models.TemplateInput) (*models.Template, error) {
	t := in.Template(id.TenantID)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Sample = Sample(t)
	t.CreatedBy = id.OperatorID

	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("template %s: %w", t.Code, err)
		}
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	s.log.WithFields(logrus.Fields{"tenant_id": id.TenantID, "template_code": t.Code}).Info("Template created")
	return t, nil
}

// List returns one page of the tenant's live templates
func (s *TemplateService) List(ctx context.Context, tenantID string, filter models.TemplateFilter, page, limit int) ([]*models.Template, int64, error) {
	filter.TenantID = tenantID
	page, limit = normalizePage(page, limit)
	items, total, err := s.repo.FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	return items, total, nil
}

// Get returns a live template by code, bypassing the cache
func (s *TemplateService) Get(ctx context.Context, tenantID, code string) (*models.Template, error) {
	t, err := s.repo.FindByCode(ctx, tenantID, code)
	if err != nil {
		return nil, s.lookupError(code, err)
	}
	return t, nil
}

// Resolve returns a live template for dispatch, reading through the cache
func (s *TemplateService) Resolve(ctx context.Context, tenantID, code string) (*models.Template, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tenantID, code)
		if err != nil {
			s.log.WithError(err).Warn("Template cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	t, err := s.Get(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, t); err != nil {
			s.log.WithError(err).Warn("Template cache write failed")
		}
	}
	return t, nil
}

// Update applies patch to the template. The code cannot change.
func (s *TemplateService) Update(ctx context.Context, id models.Identity, code string, patch models.TemplatePatch) (*models.Template, error) {
	t, err := s.Get(ctx, id.TenantID, code)
	if err != nil {
		return nil, err
	}
	patch.Apply(t)
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.Sample = Sample(t)
	t.UpdatedBy = id.OperatorID

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, s.lookupError(code, err)
	}
	s.invalidate(ctx, id.TenantID, code)
	return t, nil
}

// Delete soft-deletes the template. Its code becomes free for reuse.
func (s *TemplateService) Delete(ctx context.Context, id models.Identity, code string) error {
	if err := s.repo.SoftDelete(ctx, id.TenantID, code, id.OperatorID); err != nil {
		return s.lookupError(code, err)
	}
	s.invalidate(ctx, id.TenantID, code)
	s.log.WithFields(logrus.Fields{"tenant_id": id.TenantID, "template_code": code}).Info("Template deleted")
	return nil
}

// Preview renders the template with data without sending anything
func (s *TemplateService) Preview(ctx context.Context, tenantID, code string, data map[string]interface{}) (string, error) {
	t, err := s.Get(ctx, tenantID, code)
	if err != nil {
		return "", err
	}
	return Render(t, data), nil
}

// SeedDefaults installs the built-in catalogue into a tenant with no templates
func (s *TemplateService) SeedDefaults(ctx context.Context, id models.Identity) ([]*models.Template, error) {
	count, err := s.repo.CountByTenant(ctx, id.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}
	if count > 0 {
		return nil, ErrSeedConflict
	}

	defaults := DefaultTemplates(id.TenantID, id.OperatorID)
	if err := s.repo.CreateMany(ctx, defaults); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrSeedConflict
		}
		return nil, fmt.Errorf("failed to seed templates: %w", err)
	}
	s.log.WithFields(logrus.Fields{"tenant_id": id.TenantID, "count": len(defaults)}).Info("Default templates seeded")
	return defaults, nil
}

// IncrementUsage adds n to the template's usage counter
func (s *TemplateService) IncrementUsage(ctx context.Context, tenantID, code string, n int64) error {
	if err := s.repo.IncrementUsage(ctx, tenantID, code, n); err != nil {
		return s.lookupError(code, err)
	}
	return nil
}

func (s *TemplateService) invalidate(ctx context.Context, tenantID, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, code); err != nil {
		s.log.WithError(err).Warn("Template cache invalidation failed")
	}
}

func (s *TemplateService) lookupError(code string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, code)
	}
	return fmt.Errorf("failed to load template %s: %w", code, err)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
