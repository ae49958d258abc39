package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirinyoku/bistro/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange       = "bistro.floor"
	publishTimeout = 10 * time.Second
	dialAttempts   = 5
	redialBackoff  = 5 * time.Second
)

// ErrUnavailable is returned while the publisher waits out the backoff after
// a failed redial.
var ErrUnavailable = errors.New("broker unavailable")

// RoutingKey is the topic a floor event is published under, for example
// "floor.order_paid".
func RoutingKey(t domain.FloorEventType) string {
	return "floor." + string(t)
}

// Publisher sends floor events to a durable topic exchange and redials when
// the broker connection or channel drops. A request redials at most once and
// never sleeps; after a failed redial events are refused until redialBackoff
// has passed.
type Publisher struct {
	mu         sync.Mutex
	url        string
	conn       *amqp.Connection
	ch         *amqp.Channel
	retryAfter time.Time
	dialer     func(url string) (*amqp.Connection, error)
	now        func() time.Time
	logger     *slog.Logger
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	const op = "rabbitmq.NewPublisher"

	p := newPublisher(url, logger)
	if err := p.connect(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (p *Publisher) Publish(ctx context.Context, ev domain.FloorEvent) error {
	const op = "rabbitmq.Publisher.Publish"

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stale() {
		if err := p.redial(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, Exchange, RoutingKey(ev.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Type:         string(ev.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.logger.Debug("floor event published", "exchange", Exchange, "type", ev.Type, "size", len(body))

	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closeLocked()
}

func newPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, dialer: amqp.Dial, now: time.Now, logger: logger}
}

// stale must be called with p.mu held.
func (p *Publisher) stale() bool {
	return p.ch == nil || p.ch.IsClosed() || p.conn == nil || p.conn.IsClosed()
}

// redial makes a single connection attempt. It must be called with p.mu held.
func (p *Publisher) redial() error {
	if now := p.now(); now.Before(p.retryAfter) {
		return fmt.Errorf("%w: next redial in %s", ErrUnavailable, p.retryAfter.Sub(now).Round(time.Millisecond))
	}

	if err := p.closeLocked(); err != nil {
		p.logger.Warn("failed to close stale rabbitmq connection", "error", err)
	}

	if err := p.dial(); err != nil {
		p.retryAfter = p.now().Add(redialBackoff)
		p.logger.Warn("rabbitmq redial failed", "error", err, "backoff", redialBackoff)
		return fmt.Errorf("redial: %w", err)
	}

	p.retryAfter = time.Time{}
	return nil
}

// connect retries with growing pauses. It runs before p is shared.
func (p *Publisher) connect() error {
	var err error

	for i := 0; i < dialAttempts; i++ {
		if err = p.dial(); err == nil {
			return nil
		}

		if i < dialAttempts-1 {
			wait := time.Duration(i+1) * 2 * time.Second
			p.logger.Warn("rabbitmq connection failed, retrying", "error", err, "wait", wait)
			time.Sleep(wait)
		}
	}

	return fmt.Errorf("connect after %d attempts: %w", dialAttempts, err)
}

func (p *Publisher) dial() error {
	conn, err := p.dialer(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}

	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		if err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}

	return nil
}
