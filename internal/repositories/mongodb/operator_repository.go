package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Ensure operatorRepository implements repositories.OperatorRepository
var _ repositories.OperatorRepository = (*operatorRepository)(nil)

type operatorRepository struct {
	collection *mongo.Collection
}

// NewOperatorRepository creates a new repository for operators
func NewOperatorRepository(db *mongo.Database) repositories.OperatorRepository {
	return &operatorRepository{
		collection: db.Collection(OperatorsCollection),
	}
}

// Create inserts a new operator. Emails are stored lower-cased.
func (r *operatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	operator.ID = primitive.NewObjectID()
	operator.Email = strings.ToLower(operator.Email)
	operator.CreatedAt = time.Now()
	operator.UpdatedAt = operator.CreatedAt
	_, err := r.collection.InsertOne(ctx, operator)
	return translateWriteError(err)
}

// FindByEmail finds an operator by email address
func (r *operatorRepository) FindByEmail(ctx context.Context, email string) (*models.Operator, error) {
	var operator models.Operator
	err := r.collection.FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&operator)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &operator, nil
}
