package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	minBackoff   = time.Second
	maxBackoff   = 30 * time.Second
	requeueDelay = time.Second
)

// ErrMalformed marks a message that can never be recorded.  Such messages
// are dropped; any other Handle failure is requeued.
var ErrMalformed = errors.New("malformed event")

// Consumer appends every vulnerability event to <Dir>/saved.log.
type Consumer struct {
	URL string
	Dir string
	Log *zap.Logger
}

func NewConsumer(url string, log *zap.Logger) *Consumer {
	return &Consumer{URL: url, Dir: "logs", Log: log}
}

// Run consumes until ctx is cancelled, reconnecting to the broker with
// exponential backoff.  It only returns ctx's error.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("event consumer: reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("event consumer: set qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.Log.Info("event consumer: listening", zap.String("queue", QueueName))

	for d := range msgs {
		c.settle(ctx, d)
	}
	return errors.New("deliveries channel closed")
}

// settle records d and acknowledges it.  Malformed messages are dropped;
// write failures are requeued after a short pause.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	err := c.Handle(d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrMalformed):
		c.Log.Error("event consumer: dropping message", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		c.Log.Warn("event consumer: requeueing message", zap.Error(err))
		sleep(ctx, requeueDelay)
		_ = d.Nack(false, true)
	}
}

// Handle decodes one message body and records it.
func (c *Consumer) Handle(body []byte) error {
	var ev VulnerabilityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.Dir, "saved.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(ev.LogLine()); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
