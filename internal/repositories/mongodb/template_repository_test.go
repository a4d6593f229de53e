package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/ArowuTest/edunotify-backend/internal/models"
	"github.com/ArowuTest/edunotify-backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeBulk struct {
	insertErr error
	deleteErr error

	ordered      *bool
	inserted     int
	deleteFilter interface{}
}

func (f *fakeBulk) InsertMany(_ context.Context, docs []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	f.inserted = len(docs)
	for _, o := range opts {
		if o.Ordered != nil {
			f.ordered = o.Ordered
		}
	}
	return &mongo.InsertManyResult{}, f.insertErr
}

func (f *fakeBulk) DeleteMany(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.deleteFilter = filter
	return &mongo.DeleteResult{}, f.deleteErr
}

func seedSet() []*models.Template {
	return []*models.Template{
		{TenantID: "t1", Code: "ABSENT_ALERT"},
		{TenantID: "t1", Code: "FEE_REMINDER"},
		{TenantID: "t1", Code: "GENERAL_ANNOUNCEMENT"},
	}
}

func TestInsertAllOrNone(t *testing.T) {
	coll := &fakeBulk{}
	templates := seedSet()

	require.NoError(t, insertAllOrNone(context.Background(), coll, templates))
	assert.Equal(t, 3, coll.inserted)
	require.NotNil(t, coll.ordered)
	assert.False(t, *coll.ordered)
	assert.Nil(t, coll.deleteFilter)
	for _, tpl := range templates {
		assert.False(t, tpl.ID.IsZero())
		assert.False(t, tpl.CreatedAt.IsZero())
	}
}

func TestInsertAllOrNoneRollsBackOnCollision(t *testing.T) {
	coll := &fakeBulk{insertErr: mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Index: 1, Code: 11000, Message: "E11000 duplicate key"}}},
	}}
	templates := seedSet()

	err := insertAllOrNone(context.Background(), coll, templates)
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	ids := make([]primitive.ObjectID, 0, len(templates))
	for _, tpl := range templates {
		ids = append(ids, tpl.ID)
	}
	assert.Equal(t, bson.M{"_id": bson.M{"$in": ids}}, coll.deleteFilter)
}

func TestInsertAllOrNoneReportsFailedRollback(t *testing.T) {
	coll := &fakeBulk{
		insertErr: errors.New("network reset"),
		deleteErr: errors.New("still down"),
	}
	err := insertAllOrNone(context.Background(), coll, seedSet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network reset")
	assert.Contains(t, err.Error(), "still down")
}
