package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ repositories.TemplateRepository = (*TemplateRepository)(nil)

// TemplateRepository implements the repositories.TemplateRepository interface
type TemplateRepository struct {
	collection *mongo.Collection
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *mongo.Database) repositories.TemplateRepository {
	return &TemplateRepository{
		collection: db.Collection(TemplatesCollection),
	}
}

func liveTemplate(tenantID, code string) bson.M {
	return bson.M{"tenantId": tenantID, "code": code, "isDeleted": false}
}

// Create creates a new template
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) error {
	template.ID = primitive.NewObjectID()
	template.CreatedAt = time.Now()
	template.UpdatedAt = template.CreatedAt
	_, err := r.collection.InsertOne(ctx, template)
	return translateWriteError(err)
}

// bulkCollection is the subset of *mongo.Collection CreateMany needs
type bulkCollection interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// CreateMany inserts all templates or none
func (r *TemplateRepository) CreateMany(ctx context.Context, templates []*models.Template) error {
	return insertAllOrNone(ctx, r.collection, templates)
}

// insertAllOrNone inserts templates unordered in one round trip. If any
// insert fails, the templates that did go in are removed again by the ids
// assigned here, so a colliding seed leaves the tenant untouched.
func insertAllOrNone(ctx context.Context, coll bulkCollection, templates []*models.Template) error {
	if len(templates) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, 0, len(templates))
	ids := make([]primitive.ObjectID, 0, len(templates))
	for _, t := range templates {
		t.ID = primitive.NewObjectID()
		t.CreatedAt = now
		t.UpdatedAt = now
		docs = append(docs, t)
		ids = append(ids, t.ID)
	}

	_, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return nil
	}
	if _, derr := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); derr != nil {
		return fmt.Errorf("insert failed (%v) and rollback failed: %w", err, derr)
	}
	return translateWriteError(err)
}

// FindByCode finds a live template by its code
func (r *TemplateRepository) FindByCode(ctx context.Context, tenantID, code string) (*models.Template, error) {
	var template models.Template
	err := r.collection.FindOne(ctx, liveTemplate(tenantID, code)).Decode(&template)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &template, nil
}

// FindAll finds templates matching the filter with pagination
func (r *TemplateRepository) FindAll(ctx context.Context, filter models.TemplateFilter, page, limit int) ([]*models.Template, int64, error) {
	query := templateQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.M{"code": 1})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	templates := []*models.Template{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

func templateQuery(filter models.TemplateFilter) bson.M {
	query := bson.M{"tenantId": filter.TenantID, "isDeleted": false}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Active != nil {
		query["isActive"] = *filter.Active
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"code": pattern},
			bson.M{"name": pattern},
		}
	}
	return query
}

// Update writes the editable fields. usageCount is left to IncrementUsage.
func (r *TemplateRepository) Update(ctx context.Context, template *models.Template) error {
	template.UpdatedAt = time.Now()
	update := bson.M{
		"$set": bson.M{
			"name":      template.Name,
			"category":  template.Category,
			"priority":  template.Priority,
			"body":      template.Body,
			"variables": template.Variables,
			"sample":    template.Sample,
			"isActive":  template.IsActive,
			"updatedBy": template.UpdatedBy,
			"updatedAt": template.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateOne(ctx, liveTemplate(template.TenantID, template.Code), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// SoftDelete marks the template deleted. The partial unique index lets the
// code be reused afterwards.
func (r *TemplateRepository) SoftDelete(ctx context.Context, tenantID, code, deletedBy string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"isDeleted": true,
			"deletedAt": now,
			"updatedBy": deletedBy,
			"updatedAt": now,
		},
	}
	res, err := r.collection.UpdateOne(ctx, liveTemplate(tenantID, code), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// IncrementUsage atomically bumps usageCount with $inc
func (r *TemplateRepository) IncrementUsage(ctx context.Context, tenantID, code string, delta int64) error {
	update := bson.M{"$inc": bson.M{"usageCount": delta}}
	res, err := r.collection.UpdateOne(ctx, liveTemplate(tenantID, code), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// CountByTenant counts the live templates of a tenant
func (r *TemplateRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"tenantId": tenantID, "isDeleted": false})
}

func translateWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}
