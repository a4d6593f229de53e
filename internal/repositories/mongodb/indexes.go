package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	TemplatesCollection       = "templates"
	DeliveriesCollection      = "deliveries"
	GatewaySettingsCollection = "gateway_settings"
	OperatorsCollection       = "operators"
	StudentsCollection        = "students"
	AttendanceCollection      = "attendance"
)

// EnsureIndexes creates the indexes the repositories rely on. Template codes
// are unique per tenant among live templates only.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		TemplatesCollection: {
			{
				Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "code", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"isDeleted": false}),
			},
		},
		DeliveriesCollection: {
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "batchId", Value: 1}}},
		},
		GatewaySettingsCollection: {
			{Keys: bson.D{{Key: "tenantId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		OperatorsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AttendanceCollection: {
			{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}}},
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "studentId", Value: 1}, {Key: "date", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		StudentsCollection: {
			{
				Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "classId", Value: 1}, {Key: "rollNumber", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
