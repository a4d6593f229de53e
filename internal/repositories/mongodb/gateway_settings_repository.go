package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.GatewaySettingsRepository = (*GatewaySettingsRepository)(nil)

// GatewaySettingsRepository implements repositories.GatewaySettingsRepository
type GatewaySettingsRepository struct {
	collection *mongo.Collection
}

// NewGatewaySettingsRepository creates a new GatewaySettingsRepository
func NewGatewaySettingsRepository(db *mongo.Database) repositories.GatewaySettingsRepository {
	return &GatewaySettingsRepository{
		collection: db.Collection(GatewaySettingsCollection),
	}
}

// FindByTenant retrieves the tenant's gateway settings
func (r *GatewaySettingsRepository) FindByTenant(ctx context.Context, tenantID string) (*models.GatewaySettings, error) {
	var settings models.GatewaySettings
	err := r.collection.FindOne(ctx, bson.M{"tenantId": tenantID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert replaces the backend and credentials of the tenant
func (r *GatewaySettingsRepository) Upsert(ctx context.Context, settings *models.GatewaySettings) error {
	now := time.Now()
	settings.UpdatedAt = now
	update := bson.M{
		"$set": bson.M{
			"backend":     settings.Backend,
			"credentials": settings.Credentials,
			"updatedAt":   now,
			"updatedBy":   settings.UpdatedBy,
		},
		"$setOnInsert": bson.M{
			"createdAt": now,
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"tenantId": settings.TenantID}, update, options.Update().SetUpsert(true))
	return err
}
