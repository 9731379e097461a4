package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cvewatch/cve-dashboard/internal/queue"
)

// EventPublisher delivers vulnerability events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.VulnerabilityEvent) error
}

// NewEventPublisher returns a RabbitMQ publisher, or one that drops every
// event when url is empty.
func NewEventPublisher(url string) EventPublisher {
	if url == "" {
		return nopPublisher{}
	}
	return &AMQPPublisher{url: url}
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.VulnerabilityEvent) error { return nil }

// AMQPPublisher opens a connection per event.
type AMQPPublisher struct {
	url string
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.VulnerabilityEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	return ch.PublishWithContext(ctx, "", queue.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
}
