// Package broker forwards domain events to RabbitMQ.
package broker

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	minRedialBackoff = time.Second
	maxRedialBackoff = 30 * time.Second
)

// ErrUnavailable is returned while the publisher waits out its redial backoff.
var ErrUnavailable = errors.New("rabbitmq unavailable")

// Publisher defines a minimal interface for publishing events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func() (io.Closer, channel, error)

// RabbitPublisher publishes JSON events to a topic exchange. When the broker
// drops the connection the next Publish dials again, backing off between
// failed attempts.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     io.Closer
	channel  channel
	exchange string
	logger   *zap.Logger
	dial     dialFunc
	now      func() time.Time

	backoff    time.Duration
	nextRedial time.Time
}

// NewRabbitPublisher dials url and declares a durable topic exchange.
func NewRabbitPublisher(url, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	dial := func() (io.Closer, channel, error) {
		return dialExchange(url, exchange, logger)
	}
	p := newPublisher(exchange, logger, dial)
	conn, ch, err := dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.channel = conn, ch
	logger.Info("connected to rabbitmq", zap.String("exchange", exchange))
	return p, nil
}

func newPublisher(exchange string, logger *zap.Logger, dial dialFunc) *RabbitPublisher {
	return &RabbitPublisher{
		exchange: exchange,
		logger:   logger,
		dial:     dial,
		now:      time.Now,
		backoff:  minRedialBackoff,
	}
}

func dialExchange(url, exchange string, logger *zap.Logger) (io.Closer, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrapf(err, "declare exchange %s", exchange)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if amqpErr, ok := <-closed; ok && amqpErr != nil {
			logger.Warn("rabbitmq connection closed", zap.String("reason", amqpErr.Reason), zap.Int("code", amqpErr.Code))
		}
	}()
	return conn, ch, nil
}

// Publish serializes the payload to JSON and sends it to the exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		// The close notification can race the publish; retry once on a fresh channel.
		p.drop()
		if err := p.ensureChannel(); err != nil {
			return err
		}
		err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	}
	return errors.Wrapf(err, "publish %s", routingKey)
}

// ensureChannel redials when the current channel is gone. Callers hold p.mu.
func (p *RabbitPublisher) ensureChannel() error {
	if p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	p.drop()
	now := p.now()
	if now.Before(p.nextRedial) {
		return ErrUnavailable
	}
	conn, ch, err := p.dial()
	if err != nil {
		p.nextRedial = now.Add(p.backoff)
		p.logger.Warn("rabbitmq redial failed", zap.Duration("retry_in", p.backoff), zap.Error(err))
		if p.backoff < maxRedialBackoff {
			p.backoff *= 2
		}
		return errors.Wrap(err, "reconnect rabbitmq")
	}
	p.conn, p.channel = conn, ch
	p.backoff = minRedialBackoff
	p.nextRedial = time.Time{}
	p.logger.Info("reconnected to rabbitmq", zap.String("exchange", p.exchange))
	return nil
}

func (p *RabbitPublisher) drop() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
}

// Close terminates the connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("close channel", zap.Error(err))
		}
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
	return err
}

// Nop discards every event. It stands in when no broker URL is configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, string, any) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
