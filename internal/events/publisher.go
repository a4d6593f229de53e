package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RoutingBatchCompleted is the routing key of BatchCompleted events
const RoutingBatchCompleted = "batch.completed"

// ErrNotConfirmed is returned when the broker negatively acknowledges an event
var ErrNotConfirmed = errors.New("event not confirmed by broker")

// BatchCompleted summarizes a finished batch for downstream consumers
type BatchCompleted struct {
	TenantID     string    `json:"tenantId"`
	BatchID      string    `json:"batchId"`
	TemplateCode string    `json:"templateCode"`
	Backend      string    `json:"backend"`
	SentBy       string    `json:"sentBy"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	CompletedAt  time.Time `json:"completedAt"`
}

// Publisher emits domain events
type Publisher interface {
	PublishBatchCompleted(ctx context.Context, evt BatchCompleted) error
	Close() error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

// PublishBatchCompleted does nothing
func (NoopPublisher) PublishBatchCompleted(context.Context, BatchCompleted) error { return nil }

// Close does nothing
func (NoopPublisher) Close() error { return nil }

// confirmation is a pending publisher confirm
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// channel publishes on a channel in confirm mode
type channel interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// confirmChannel adapts *amqp.Channel to channel
type confirmChannel struct {
	*amqp.Channel
}

func (c confirmChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	if dc == nil {
		return nil, errors.New("channel is not in confirm mode")
	}
	return dc, nil
}

// AMQPPublisher publishes JSON events to a durable topic exchange and waits
// for the broker to confirm each one
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch channel
}

// NewAMQPPublisher dials url and declares exchange
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // Durable
		false, // Auto-deleted
		false, // Internal
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	return &AMQPPublisher{conn: conn, exchange: exchange, ch: confirmChannel{ch}}, nil
}

// PublishBatchCompleted publishes evt as a persistent message
func (p *AMQPPublisher) PublishBatchCompleted(ctx context.Context, evt BatchCompleted) error {
	return p.publish(ctx, RoutingBatchCompleted, evt.BatchID, evt)
}

func (p *AMQPPublisher) publish(ctx context.Context, key, messageID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	conf, err := p.ch.publish(ctx, p.exchange, key, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for broker confirm: %w", err)
	}
	if !acked {
		return ErrNotConfirmed
	}
	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
