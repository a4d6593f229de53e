package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ repositories.GatewaySettingsRepository = (*GatewaySettingsRepository)(nil)
	_ repositories.OperatorRepository        = (*OperatorRepository)(nil)
)

// GatewaySettingsRepository keeps one settings document per tenant
type GatewaySettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]models.GatewaySettings
}

// NewGatewaySettingsRepository creates an empty store
func NewGatewaySettingsRepository() *GatewaySettingsRepository {
	return &GatewaySettingsRepository{settings: make(map[string]models.GatewaySettings)}
}

// FindByTenant returns ErrNotFound when the tenant never configured a gateway
func (r *GatewaySettingsRepository) FindByTenant(ctx context.Context, tenantID string) (*models.GatewaySettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[tenantID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	s.Credentials = copyCredentials(s.Credentials)
	return &s, nil
}

// Upsert stores the tenant's settings
func (r *GatewaySettingsRepository) Upsert(ctx context.Context, settings *models.GatewaySettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if current, ok := r.settings[settings.TenantID]; ok {
		settings.ID = current.ID
		settings.CreatedAt = current.CreatedAt
	} else {
		settings.ID = primitive.NewObjectID()
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now
	s := *settings
	s.Credentials = copyCredentials(settings.Credentials)
	r.settings[settings.TenantID] = s
	return nil
}

func copyCredentials(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// OperatorRepository keeps operators keyed by lower-cased email
type OperatorRepository struct {
	mu        sync.RWMutex
	operators map[string]models.Operator
}

// NewOperatorRepository creates an empty store
func NewOperatorRepository() *OperatorRepository {
	return &OperatorRepository{operators: make(map[string]models.Operator)}
}

// Create inserts an operator, rejecting a duplicate email
func (r *OperatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(operator.Email)
	if _, ok := r.operators[key]; ok {
		return repositories.ErrDuplicate
	}
	operator.ID = primitive.NewObjectID()
	operator.CreatedAt = time.Now()
	operator.UpdatedAt = operator.CreatedAt
	r.operators[key] = *operator
	return nil
}

// FindByEmail looks an operator up case-insensitively
func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.operators[strings.ToLower(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &op, nil
}
