// Package amqp publishes generated reports to a RabbitMQ exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finreport/internal/log"
	"finreport/internal/report"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second

	reconnectAttempts = 3
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config names the broker and where reports are routed.
type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	// Queue is declared and bound to RoutingKey; defaults to RoutingKey.
	Queue string
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher is a report.Sink that publishes ReportMessage JSON to a durable
// direct exchange. A dropped connection is re-dialled on the next write.
type Publisher struct {
	cfg    Config
	logger *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	ch      channel
	closeCh func() error
	connect func() error
	backoff func(attempt int) time.Duration

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

var _ report.Sink = (*Publisher)(nil)

// NewPublisher dials the broker and declares the topology.
func NewPublisher(cfg Config, logger *log.Logger) (*Publisher, error) {
	p := newPublisher(cfg, logger)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(cfg Config, logger *log.Logger) *Publisher {
	if cfg.Queue == "" {
		cfg.Queue = cfg.RoutingKey
	}
	if logger == nil {
		logger = log.Discard()
	}
	p := &Publisher{cfg: cfg, logger: logger.WithComponent(log.ComponentAMQP)}
	p.connect = p.dial
	p.backoff = exponentialBackoff
	return p
}

func (p *Publisher) dial() error {
	conn, err := amqp091.Dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := setup(ch, p.cfg); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	p.mu.Lock()
	p.conn, p.ch, p.closeCh = conn, ch, ch.Close
	p.mu.Unlock()
	return nil
}

func setup(ch *amqp091.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Write publishes r as a persistent JSON message.
func (p *Publisher) Write(ctx context.Context, r report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", r.Operation, ErrCircuitOpen)
	}

	msg, err := NewReportMessage(r)
	if err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = p.publish(ctx, body)
	if err != nil && isConnectionError(err) {
		p.logger.WarnContext(ctx, "AMQP connection lost, reconnecting", log.FieldError, err.Error())
		if rerr := p.reconnect(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		} else {
			err = p.publish(ctx, body)
		}
	}
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	p.recordSuccess()

	p.logger.InfoContext(ctx, "Published report message",
		"id", msg.ID,
		log.FieldOperation, msg.Operation,
		"exchange", p.cfg.Exchange,
		"routing_key", p.cfg.RoutingKey)
	return nil
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		return amqp091.ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(ctx,
		p.cfg.Exchange,   // exchange
		p.cfg.RoutingKey, // routing key
		false,            // mandatory
		false,            // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
}

func (p *Publisher) reconnect(ctx context.Context) error {
	p.closeCurrent()
	var err error
	for attempt := 0; attempt < reconnectAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(p.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err = p.connect(); err == nil {
			return nil
		}
	}
	return err
}

func (p *Publisher) closeCurrent() {
	p.mu.Lock()
	conn, closeCh := p.conn, p.closeCh
	p.conn, p.ch, p.closeCh = nil, nil, nil
	p.mu.Unlock()

	if closeCh != nil {
		_ = closeCh()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Close shuts the channel and connection.
func (p *Publisher) Close() error {
	p.closeCurrent()
	return nil
}

func (p *Publisher) isCircuitOpen() bool {
	if atomic.LoadInt32(&p.state) != StateOpen {
		return false
	}
	p.failMu.Lock()
	last := p.lastFailure
	p.failMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&p.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (p *Publisher) recordFailure() {
	p.failMu.Lock()
	p.lastFailure = time.Now()
	p.failMu.Unlock()
	if atomic.AddInt64(&p.failureCount, 1) >= maxFailures || atomic.LoadInt32(&p.state) == StateHalfOpen {
		atomic.StoreInt32(&p.state, StateOpen)
	}
}

func (p *Publisher) recordSuccess() {
	atomic.StoreInt64(&p.failureCount, 0)
	atomic.StoreInt32(&p.state, StateClosed)
}

// exponentialBackoff returns 1s doubled per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// isConnectionError reports whether err looks like a broken connection.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
