package services

import (
	"context"
	"sync"
	"testing"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/ArowuTest/edunotify-backend/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu          sync.Mutex
	items       map[string]*models.Template
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]*models.Template)}
}

func (c *mapCache) Get(_ context.Context, tenantID, code string) (*models.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[tenantID+"/"+code].Clone(), nil
}

func (c *mapCache) Set(_ context.Context, t *models.Template) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[t.TenantID+"/"+t.Code] = t.Clone()
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, tenantID, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, tenantID+"/"+code)
	c.invalidated = append(c.invalidated, code)
	return nil
}

func boolPtr(b bool) *bool { return &b }

func greetingInput() models.TemplateInput {
	return models.TemplateInput{
		Code:     "GREETING",
		Name:     "Greeting",
		Category: models.CategoryGeneral,
		Body:     "Hello {{name}}",
		Variables: []models.TemplateVariable{
			{Name: "name", Description: "Recipient name", Example: "Parent"},
		},
	}
}

func TestTemplateService_Create(t *testing.T) {
	svc := NewTemplateService(memory.NewTemplateRepository(), nil, quietLogger())
	ctx := context.Background()

	tpl, err := svc.Create(ctx, testIdentity, greetingInput())
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, tpl.Priority)
	assert.Equal(t, "Hello Parent", tpl.Sample)
	assert.True(t, tpl.IsActive)
	assert.Equal(t, testIdentity.TenantID, tpl.TenantID)
	assert.Equal(t, testIdentity.OperatorID, tpl.CreatedBy)

	_, err = svc.Create(ctx, testIdentity, greetingInput())
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	other := testIdentity
	other.TenantID = "school-b"
	_, err = svc.Create(ctx, other, greetingInput())
	assert.NoError(t, err, "codes are unique per tenant only")
}

func TestTemplateService_CreateValidation(t *testing.T) {
	svc := NewTemplateService(memory.NewTemplateRepository(), nil, quietLogger())

	in := greetingInput()
	in.Category = "sports"
	_, err := svc.Create(context.Background(), testIdentity, in)
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))

	in = greetingInput()
	in.IsActive = boolPtr(false)
	tpl, err := svc.Create(context.Background(), testIdentity, in)
	require.NoError(t, err)
	assert.False(t, tpl.IsActive)
}

func TestTemplateService_UpdateResamplesAndInvalidates(t *testing.T) {
	cache := newMapCache()
	svc := NewTemplateService(memory.NewTemplateRepository(), cache, quietLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, testIdentity, greetingInput())
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, testIdentity.TenantID, "GREETING")
	require.NoError(t, err)

	body := "Good morning {{name}}"
	updated, err := svc.Update(ctx, testIdentity, "GREETING", models.TemplatePatch{Body: &body})
	require.NoError(t, err)
	assert.Equal(t, "Good morning Parent", updated.Sample)
	assert.Equal(t, testIdentity.OperatorID, updated.UpdatedBy)
	assert.Contains(t, cache.invalidated, "GREETING")

	resolved, err := svc.Resolve(ctx, testIdentity.TenantID, "GREETING")
	require.NoError(t, err)
	assert.Equal(t, body, resolved.Body)

	_, err = svc.Update(ctx, testIdentity, "MISSING", models.TemplatePatch{Body: &body})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateService_DeleteFreesCode(t *testing.T) {
	svc := NewTemplateService(memory.NewTemplateRepository(), nil, quietLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, testIdentity, greetingInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, testIdentity, "GREETING"))

	_, err = svc.Get(ctx, testIdentity.TenantID, "GREETING")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, testIdentity, "GREETING"), ErrTemplateNotFound)

	_, err = svc.Create(ctx, testIdentity, greetingInput())
	assert.NoError(t, err)
}

func TestTemplateService_SeedDefaults(t *testing.T) {
	repo := memory.NewTemplateRepository()
	svc := NewTemplateService(repo, nil, quietLogger())
	ctx := context.Background()

	seeded, err := svc.SeedDefaults(ctx, testIdentity)
	require.NoError(t, err)
	assert.Len(t, seeded, 4)

	_, err = svc.SeedDefaults(ctx, testIdentity)
	assert.ErrorIs(t, err, ErrSeedConflict)

	count, err := repo.CountByTenant(ctx, testIdentity.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestTemplateService_SeedRefusedWhenTenantHasTemplates(t *testing.T) {
	repo := memory.NewTemplateRepository()
	svc := NewTemplateService(repo, nil, quietLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, testIdentity, greetingInput())
	require.NoError(t, err)

	_, err = svc.SeedDefaults(ctx, testIdentity)
	assert.ErrorIs(t, err, ErrSeedConflict)

	count, err := repo.CountByTenant(ctx, testIdentity.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTemplateService_PreviewAndList(t *testing.T) {
	svc := NewTemplateService(memory.NewTemplateRepository(), nil, quietLogger())
	ctx := context.Background()
	_, err := svc.SeedDefaults(ctx, testIdentity)
	require.NoError(t, err)

	msg, err := svc.Preview(ctx, testIdentity.TenantID, CodeGeneralAnnouncement, map[string]interface{}{
		"school_name": "Green Valley",
		"message":     "Sports day on Friday.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Green Valley: Sports day on Friday.", msg)

	items, total, err := svc.List(ctx, testIdentity.TenantID, models.TemplateFilter{Category: models.CategoryFees}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, CodeFeeBalanceAlert, items[0].Code)

	items, total, err = svc.List(ctx, testIdentity.TenantID, models.TemplateFilter{}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, items, 1)
}
