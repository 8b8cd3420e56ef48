package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the subset of *amqp.Channel the forwarder needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Forwarder relays bus events to a topic exchange, routed by event type.
type Forwarder struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	logger   *slog.Logger
}

func DialForwarder(url, exchange string, logger *slog.Logger) (*Forwarder, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Forwarder{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

func NewForwarder(ch amqpChannel, exchange string, logger *slog.Logger) *Forwarder {
	return &Forwarder{ch: ch, exchange: exchange, logger: logger}
}

type envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Handle is a bus Handler; subscribe it with Wildcard to forward everything.
func (f *Forwarder) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(envelope{
		ID:         event.EventID(),
		Type:       event.EventType(),
		OccurredAt: event.OccurredAt(),
		Payload:    event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventID(), err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = f.ch.PublishWithContext(pubCtx, f.exchange, event.EventType(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID(),
		Timestamp:    event.OccurredAt(),
		Type:         event.EventType(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.EventID(), err)
	}

	f.logger.Debug("event forwarded to broker",
		"event_type", event.EventType(),
		"event_id", event.EventID(),
		"exchange", f.exchange)
	return nil
}

func (f *Forwarder) Close() error {
	if f.ch != nil {
		_ = f.ch.Close()
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}
