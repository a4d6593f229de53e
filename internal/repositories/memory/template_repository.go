// Package memory provides process-local repositories used by tests and by
// deployments started with the memory storage driver.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var _ repositories.TemplateRepository = (*TemplateRepository)(nil)

// TemplateRepository keeps templates keyed by tenant and code
type TemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*models.Template
	deleted   []*models.Template
}

// NewTemplateRepository creates an empty TemplateRepository
func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{templates: make(map[string]*models.Template)}
}

func templateKey(tenantID, code string) string {
	return tenantID + "\x00" + code
}

// Create inserts a template, rejecting a live duplicate code for the tenant
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(template)
}

// CreateMany inserts all templates or none
func (r *TemplateRepository) CreateMany(ctx context.Context, templates []*models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		key := templateKey(t.TenantID, t.Code)
		if _, ok := r.templates[key]; ok {
			return repositories.ErrDuplicate
		}
		if _, ok := seen[key]; ok {
			return repositories.ErrDuplicate
		}
		seen[key] = struct{}{}
	}
	for _, t := range templates {
		if err := r.insertLocked(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *TemplateRepository) insertLocked(template *models.Template) error {
	key := templateKey(template.TenantID, template.Code)
	if _, ok := r.templates[key]; ok {
		return repositories.ErrDuplicate
	}
	now := time.Now()
	if template.ID.IsZero() {
		template.ID = primitive.NewObjectID()
	}
	template.CreatedAt = now
	template.UpdatedAt = now
	r.templates[key] = template.Clone()
	return nil
}

// FindByCode returns a live template
func (r *TemplateRepository) FindByCode(ctx context.Context, tenantID, code string) (*models.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[templateKey(tenantID, code)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return t.Clone(), nil
}

// FindAll lists live templates ordered by code
func (r *TemplateRepository) FindAll(ctx context.Context, filter models.TemplateFilter, page, limit int) ([]*models.Template, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*models.Template
	for _, t := range r.templates {
		if t.TenantID != filter.TenantID {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.Active != nil && t.IsActive != *filter.Active {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Code), search) &&
			!strings.Contains(strings.ToLower(t.Name), search) {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })

	total := int64(len(matched))
	out := []*models.Template{}
	for _, t := range paginate(matched, page, limit) {
		out = append(out, t.Clone())
	}
	return out, total, nil
}

// Update replaces the stored template with the same tenant and code
func (r *TemplateRepository) Update(ctx context.Context, template *models.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := templateKey(template.TenantID, template.Code)
	current, ok := r.templates[key]
	if !ok {
		return repositories.ErrNotFound
	}
	template.ID = current.ID
	template.UsageCount = current.UsageCount
	template.CreatedAt = current.CreatedAt
	template.UpdatedAt = time.Now()
	r.templates[key] = template.Clone()
	return nil
}

// SoftDelete hides the template and frees its code for reuse
func (r *TemplateRepository) SoftDelete(ctx context.Context, tenantID, code, deletedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := templateKey(tenantID, code)
	t, ok := r.templates[key]
	if !ok {
		return repositories.ErrNotFound
	}
	now := time.Now()
	t.IsDeleted = true
	t.DeletedAt = &now
	t.UpdatedBy = deletedBy
	t.UpdatedAt = now
	r.deleted = append(r.deleted, t)
	delete(r.templates, key)
	return nil
}

// IncrementUsage adds delta to the usage counter under the write lock
func (r *TemplateRepository) IncrementUsage(ctx context.Context, tenantID, code string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.templates[templateKey(tenantID, code)]
	if !ok {
		return repositories.ErrNotFound
	}
	t.UsageCount += delta
	return nil
}

// CountByTenant counts live templates of a tenant
func (r *TemplateRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, t := range r.templates {
		if t.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return nil
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
