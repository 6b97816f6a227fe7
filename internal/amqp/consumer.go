package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"finreport/internal/log"
)

// ErrDiscard marks a handler error as permanent: the delivery is rejected
// without requeue instead of being retried.
var ErrDiscard = errors.New("discard message")

// Handler processes one decoded report message.
type Handler func(ctx context.Context, msg *ReportMessage) error

// Consumer reads ReportMessages from the queue bound by Publisher.
type Consumer struct {
	cfg    Config
	logger *log.Logger
	conn   *amqp091.Connection
	ch     *amqp091.Channel
}

// NewConsumer dials the broker, declares the same topology as Publisher and
// limits unacknowledged deliveries to prefetch (1 when below 1).
func NewConsumer(cfg Config, prefetch int, logger *log.Logger) (*Consumer, error) {
	if cfg.Queue == "" {
		cfg.Queue = cfg.RoutingKey
	}
	if logger == nil {
		logger = log.Discard()
	}
	if prefetch < 1 {
		prefetch = 1
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := setup(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	return &Consumer{cfg: cfg, logger: logger.WithComponent(log.ComponentAMQP), conn: conn, ch: ch}, nil
}

// Consume delivers messages to handler until ctx is done or the channel
// closes.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.ch.Consume(
		c.cfg.Queue, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming report messages", "queue", c.cfg.Queue)
	return consumeLoop(ctx, msgs, handler, c.logger)
}

func consumeLoop(ctx context.Context, msgs <-chan amqp091.Delivery, handler Handler, logger *log.Logger) error {
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			msg, err := ReportMessageFromJSON(delivery.Body)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err.Error())
				_ = delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				requeue := !errors.Is(err, ErrDiscard)
				logger.ErrorContext(ctx, "Failed to handle message",
					log.FieldError, err.Error(),
					"id", msg.ID,
					"requeue", requeue)
				_ = delivery.Nack(false, requeue)
				continue
			}

			_ = delivery.Ack(false)
			logger.DebugContext(ctx, "Processed report message", "id", msg.ID, log.FieldOperation, msg.Operation)
		}
	}
}

// Close shuts the channel and connection.
func (c *Consumer) Close() error {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
