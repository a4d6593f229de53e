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

var _ repositories.DeliveryRepository = (*DeliveryRepository)(nil)

// DeliveryRepository stores the delivery ledger in the deliveries collection
type DeliveryRepository struct {
	collection *mongo.Collection
}

// NewDeliveryRepository creates a new DeliveryRepository
func NewDeliveryRepository(db *mongo.Database) repositories.DeliveryRepository {
	return &DeliveryRepository{
		collection: db.Collection(DeliveriesCollection),
	}
}

// Create appends a ledger entry
func (r *DeliveryRepository) Create(ctx context.Context, entry *models.DeliveryLog) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.GatewayResponse == nil {
		entry.GatewayResponse = map[string]interface{}{}
	}
	_, err := r.collection.InsertOne(ctx, entry)
	return translateWriteError(err)
}

// FindByID finds one entry of the tenant
func (r *DeliveryRepository) FindByID(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	var entry models.DeliveryLog
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "tenantId": tenantID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindByIDs returns the entries that exist among ids
func (r *DeliveryRepository) FindByIDs(ctx context.Context, tenantID string, ids []string) ([]*models.DeliveryLog, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "tenantId": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []*models.DeliveryLog
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}

	byID := make(map[string]*models.DeliveryLog, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}
	out := make([]*models.DeliveryLog, 0, len(found))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// FindAll finds entries matching the filter, newest first
func (r *DeliveryRepository) FindAll(ctx context.Context, filter models.DeliveryFilter, page, limit int) ([]*models.DeliveryLog, int64, error) {
	query := deliveryQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	entries := []*models.DeliveryLog{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// Statistics aggregates the filtered ledger in a single $group stage
func (r *DeliveryRepository) Statistics(ctx context.Context, filter models.DeliveryFilter) (*models.DeliveryStatistics, error) {
	cursor, err := r.collection.Aggregate(ctx, statisticsPipeline(filter))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := &models.DeliveryStatistics{}
	if cursor.Next(ctx) {
		if err := cursor.Decode(stats); err != nil {
			return nil, err
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

func statisticsPipeline(filter models.DeliveryFilter) mongo.Pipeline {
	countIf := func(statuses ...models.DeliveryStatus) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$in": bson.A{"$status", statuses}}, 1, 0,
		}}}
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: deliveryQuery(filter)}},
		{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"total":      bson.M{"$sum": 1},
			"successful": countIf(models.StatusSent, models.StatusDelivered),
			"delivered":  countIf(models.StatusDelivered),
			"failed":     countIf(models.StatusFailed),
			"pending":    countIf(models.StatusPending),
			"cancelled":  countIf(models.StatusCancelled),
			"totalCost":  bson.M{"$sum": "$cost"},
		}}},
	}
}

func deliveryQuery(filter models.DeliveryFilter) bson.M {
	query := bson.M{"tenantId": filter.TenantID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.SubjectID != "" {
		query["subjectId"] = filter.SubjectID
	}
	if filter.BatchID != "" {
		query["batchId"] = filter.BatchID
	}
	if filter.TemplateCode != "" {
		query["templateCode"] = filter.TemplateCode
	}
	if filter.From != nil || filter.To != nil {
		window := bson.M{}
		if filter.From != nil {
			window["$gte"] = *filter.From
		}
		if filter.To != nil {
			window["$lte"] = *filter.To
		}
		query["createdAt"] = window
	}
	return query
}

// MarkSent moves a pending entry to sent. Only non-nil response values are
// written so earlier metadata is never overwritten with nulls.
func (r *DeliveryRepository) MarkSent(ctx context.Context, tenantID, id string, response map[string]interface{}, cost float64, at time.Time) error {
	set := responseSet(response)
	set["status"] = models.StatusSent
	set["sentTime"] = at
	set["cost"] = cost
	set["updatedAt"] = time.Now()
	return r.transition(ctx, tenantID, id, models.StatusSent, bson.M{"$set": set})
}

// MarkDelivered moves a sent entry to delivered
func (r *DeliveryRepository) MarkDelivered(ctx context.Context, tenantID, id string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":        models.StatusDelivered,
		"deliveredTime": at,
		"updatedAt":     time.Now(),
	}}
	return r.transition(ctx, tenantID, id, models.StatusDelivered, update)
}

// MarkFailed moves a pending entry to failed and increments retryCount
func (r *DeliveryRepository) MarkFailed(ctx context.Context, tenantID, id, errMsg string, response map[string]interface{}, at time.Time) error {
	set := responseSet(response)
	set["status"] = models.StatusFailed
	set["errorMessage"] = errMsg
	set["updatedAt"] = at
	update := bson.M{
		"$set": set,
		"$inc": bson.M{"retryCount": 1},
	}
	return r.transition(ctx, tenantID, id, models.StatusFailed, update)
}

// MarkCancelled moves a pending entry to cancelled
func (r *DeliveryRepository) MarkCancelled(ctx context.Context, tenantID, id string, at time.Time) error {
	update := bson.M{"$set": bson.M{
		"status":    models.StatusCancelled,
		"updatedAt": at,
	}}
	return r.transition(ctx, tenantID, id, models.StatusCancelled, update)
}

// ClaimRetry sets retriedBy on a failed entry in a single guarded update so
// two concurrent retries of the same entry cannot both win
func (r *DeliveryRepository) ClaimRetry(ctx context.Context, tenantID, id, retryID string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx, retryClaimFilter(tenantID, id), bson.M{"$set": bson.M{
		"retriedBy": retryID,
		"updatedAt": at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	entry, err := r.FindByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if entry.RetriedBy != "" {
		return models.ErrAlreadyRetried
	}
	return models.ErrInvalidTransition
}

func retryClaimFilter(tenantID, id string) bson.M {
	return bson.M{
		"_id":       id,
		"tenantId":  tenantID,
		"status":    models.StatusFailed,
		"retriedBy": bson.M{"$in": bson.A{nil, ""}},
		"$expr":     bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
	}
}

// transition applies update only while the entry is in a status that may
// reach to, so concurrent writers cannot skip the state machine.
func (r *DeliveryRepository) transition(ctx context.Context, tenantID, id string, to models.DeliveryStatus, update bson.M) error {
	filter := bson.M{
		"_id":      id,
		"tenantId": tenantID,
		"status":   bson.M{"$in": sourceStatuses(to)},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id, "tenantId": tenantID})
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return models.ErrInvalidTransition
}

func sourceStatuses(to models.DeliveryStatus) []models.DeliveryStatus {
	var from []models.DeliveryStatus
	for _, s := range []models.DeliveryStatus{
		models.StatusPending, models.StatusSent, models.StatusDelivered, models.StatusFailed, models.StatusCancelled,
	} {
		if models.CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

func responseSet(response map[string]interface{}) bson.M {
	set := bson.M{}
	for k, v := range response {
		if v == nil {
			continue
		}
		set["gatewayResponse."+k] = v
	}
	return set
}
