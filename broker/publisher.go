// Package broker publishes engine events to RabbitMQ so other services can
// react to entitlement and ledger changes.
//
// Events go to a topic exchange with the event name as routing key:
//
//	entitlement.changed
//	transaction.recorded
//	subscription.expired
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/subscription"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "patron.events"

const (
	RoutingEntitlementChanged  = "entitlement.changed"
	RoutingTransactionRecorded = "transaction.recorded"
	RoutingSubscriptionExpired = "subscription.expired"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Envelope wraps every published event.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Publisher)(nil)
	_ plugin.OnEntitlementChanged  = (*Publisher)(nil)
	_ plugin.OnTransactionRecorded = (*Publisher)(nil)
	_ plugin.OnSubscriptionExpired = (*Publisher)(nil)
)

// Publisher is a plugin that publishes engine events. Publish failures are
// returned to the registry, which logs them.
type Publisher struct {
	ch       Channel
	exchange string
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithExchange replaces DefaultExchange.
func WithExchange(name string) Option {
	return func(p *Publisher) { p.exchange = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// NewPublisher creates a Publisher on ch.
func NewPublisher(ch Channel, opts ...Option) *Publisher {
	p := &Publisher{ch: ch, exchange: DefaultExchange, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Name() string { return "broker" }

func (p *Publisher) OnEntitlementChanged(_ context.Context, c plugin.EntitlementChange) error {
	return p.publish(RoutingEntitlementChanged, c)
}

func (p *Publisher) OnTransactionRecorded(_ context.Context, txn *ledger.Transaction) error {
	return p.publish(RoutingTransactionRecorded, txn)
}

func (p *Publisher) OnSubscriptionExpired(_ context.Context, sub *subscription.Subscription) error {
	return p.publish(RoutingSubscriptionExpired, sub)
}

func (p *Publisher) publish(key string, v any) error {
	const op = "broker.publish"
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	body, err := json.Marshal(Envelope{Type: key, OccurredAt: p.now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = p.ch.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, key, err)
	}
	p.logger.Debug("event published", "exchange", p.exchange, "routing_key", key)
	return nil
}
