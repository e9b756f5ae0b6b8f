package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "filecache_events"
	ExchangeType = "topic"
)

// BrokerConfig controls how the events exchange is reached.
type BrokerConfig struct {
	URL string

	// Attempts is the number of dials before giving up. Zero means 1.
	Attempts int

	// RetryDelay is the pause between failed dials.
	RetryDelay time.Duration
}

// Connect dials the broker, retrying per cfg until ctx is done, and declares
// the durable topic exchange events are published to.
func Connect(ctx context.Context, cfg BrokerConfig) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := dialWithRetry(ctx, cfg, amqp.Dial)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, ExchangeType, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", ExchangeName, err)
	}
	return conn, ch, nil
}

func dialWithRetry[C any](ctx context.Context, cfg BrokerConfig, dial func(string) (C, error)) (C, error) {
	var zero C
	attempts := max(cfg.Attempts, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(cfg.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("connect to broker: %w", errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("connect to broker: %w", err)
		}

		conn, err := dial(cfg.URL)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		log.Printf("broker dial attempt %d/%d failed: %v", i+1, attempts, err)
	}
	return zero, fmt.Errorf("connect to broker after %d attempts: %w", attempts, lastErr)
}

// RoutingKey is cache.<type>, e.g. cache.entry_written.
func RoutingKey(e Event) string {
	return "cache." + string(e.Type)
}

// Channel is the part of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitPublisher struct {
	ch Channel
}

// NewRabbitPublisher publishes events as JSON to the events exchange.
func NewRabbitPublisher(ch Channel) Publisher {
	return &rabbitPublisher{ch: ch}
}

func (p *rabbitPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.ID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Type:         string(e.Type),
		Timestamp:    e.At,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, RoutingKey(e), false, false, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", e.ID, err)
	}
	return nil
}
