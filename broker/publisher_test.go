package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/types"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (c *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishEntitlementChanged(t *testing.T) {
	ch := &fakeChannel{}
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := NewPublisher(ch, WithExchange("test.events"))
	p.now = func() time.Time { return at }

	change := plugin.EntitlementChange{FanID: id.NewProfileID(), CreatorID: id.NewProfileID(), Cause: "subscribed"}
	require.NoError(t, p.OnEntitlementChanged(context.Background(), change))

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "test.events", got.exchange)
	assert.Equal(t, RoutingEntitlementChanged, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

	var env Envelope
	require.NoError(t, json.Unmarshal(got.msg.Body, &env))
	assert.Equal(t, RoutingEntitlementChanged, env.Type)
	assert.Equal(t, at, env.OccurredAt)

	var data plugin.EntitlementChange
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "subscribed", data.Cause)
	assert.True(t, data.FanID.Equal(change.FanID))
}

func TestPublishTransactionRecorded(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch)

	txn := &ledger.Transaction{
		ID:        id.NewTransactionID(),
		CreatorID: id.NewProfileID(),
		Type:      ledger.TypeTip,
		Gross:     types.USD(1000),
		Fee:       types.USD(200),
		Net:       types.USD(800),
	}
	require.NoError(t, p.OnTransactionRecorded(context.Background(), txn))

	require.Len(t, ch.sent, 1)
	assert.Equal(t, DefaultExchange, ch.sent[0].exchange)
	assert.Equal(t, RoutingTransactionRecorded, ch.sent[0].key)

	var env struct {
		Data struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.sent[0].msg.Body, &env))
	assert.Equal(t, "tip", env.Data.Type)
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := NewPublisher(ch)

	err := p.OnEntitlementChanged(context.Background(), plugin.EntitlementChange{Cause: "expired"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker.publish")
	assert.Contains(t, err.Error(), RoutingEntitlementChanged)
}
