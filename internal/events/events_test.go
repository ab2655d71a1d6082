package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	kind       string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	declareErr error
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name)
	f.kind = kind
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func sampleEvent() Event {
	var wallet solana.PublicKey
	wallet[0] = 7
	return Event{
		TxID:       "tx-1",
		Seq:        3,
		Action:     "issue",
		Wallet:     wallet,
		Identifier: "alice",
		Status:     "minted",
	}
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "")
	require.NoError(t, err)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	require.Equal(t, []string{DefaultExchange}, ch.declared)
	assert.Equal(t, amqp.ExchangeTopic, ch.kind)

	ev := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, []string{DefaultExchange + "/did.issue"}, ch.keys)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "tx-1", msg.MessageId)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, fixed, msg.Timestamp)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, ev.Identifier, decoded.Identifier)
	assert.Equal(t, ev.Wallet, decoded.Wallet)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newAMQPPublisher(ch, "custom")
	require.NoError(t, err)

	ch.publishErr = errors.New("channel closed")
	err = p.Publish(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx-1")
}

func TestAMQPPublisher_DeclareError(t *testing.T) {
	ch := &fakeChannel{declareErr: errors.New("access refused")}
	_, err := newAMQPPublisher(ch, "custom")
	require.Error(t, err)
	assert.True(t, ch.closed, "channel closed after failed declare")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "lifecycle event", line["msg"])
	assert.Equal(t, "issue", line["action"])
	assert.Equal(t, "alice", line["identifier"])
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Action: "authorize"}))
	require.NoError(t, r.Publish(ctx, Event{Action: "issue"}))
	assert.Equal(t, []string{"authorize", "issue"}, r.Actions())
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "did.cleanup", Event{Action: "cleanup"}.RoutingKey())
}
