package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfirm struct {
	ack  bool
	hang bool
}

func (c fakeConfirm) WaitContext(ctx context.Context) (bool, error) {
	if c.hang {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return c.ack, nil
}

type fakeChannel struct {
	confirm  fakeConfirm
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
}

func (f *fakeChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.confirm, nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherPublishesBatchCompleted(t *testing.T) {
	ch := &fakeChannel{confirm: fakeConfirm{ack: true}}
	p := &AMQPPublisher{exchange: "edunotify.events", ch: ch}

	evt := BatchCompleted{
		TenantID:     "school-1",
		BatchID:      "b-1",
		TemplateCode: "ABSENT_ALERT",
		Total:        3,
		SuccessCount: 2,
		FailureCount: 1,
		CompletedAt:  time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishBatchCompleted(context.Background(), evt))

	assert.Equal(t, "edunotify.events", ch.exchange)
	assert.Equal(t, RoutingBatchCompleted, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "b-1", ch.msg.MessageId)

	var got BatchCompleted
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, evt, got)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherNack(t *testing.T) {
	p := &AMQPPublisher{exchange: "edunotify.events", ch: &fakeChannel{confirm: fakeConfirm{ack: false}}}
	err := p.PublishBatchCompleted(context.Background(), BatchCompleted{BatchID: "b-2"})
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestAMQPPublisherConfirmTimeout(t *testing.T) {
	p := &AMQPPublisher{exchange: "edunotify.events", ch: &fakeChannel{confirm: fakeConfirm{hang: true}}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.PublishBatchCompleted(ctx, BatchCompleted{BatchID: "b-3"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishBatchCompleted(context.Background(), BatchCompleted{}))
	assert.NoError(t, p.Close())
}
