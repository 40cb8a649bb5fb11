package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/editdesk/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct {} { return t.done }
func (t *fakeToken) Error() error        { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the publishing side of mqtt.Client
type fakeClient struct {
	mqtt.Client
	token        mqtt.Token
	sent         []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnected = true
}

func TestMQTTPublisher_Publish(t *testing.T) {
	client := &fakeClient{token: completedToken(nil)}
	p := NewMQTTPublisherWithClient(client, 1, time.Second, nil)

	require.NoError(t, p.Publish(context.Background(), "editdesk/orders/1/activity", []byte(`{"a":1}`)))
	require.Len(t, client.sent, 1)
	assert.Equal(t, "editdesk/orders/1/activity", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)
	assert.JSONEq(t, `{"a":1}`, string(client.sent[0].payload))

	require.NoError(t, p.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTPublisher_Failures(t *testing.T) {
	t.Run("broker error", func(t *testing.T) {
		p := NewMQTTPublisherWithClient(&fakeClient{token: completedToken(errors.New("not connected"))}, 0, time.Second, nil)
		err := p.Publish(context.Background(), "t", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})

	t.Run("timeout", func(t *testing.T) {
		pending := &fakeToken{done: make(chan struct{})}
		p := NewMQTTPublisherWithClient(&fakeClient{token: pending}, 0, 10*time.Millisecond, nil)
		err := p.Publish(context.Background(), "t", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("context cancelled", func(t *testing.T) {
		pending := &fakeToken{done: make(chan struct{})}
		p := NewMQTTPublisherWithClient(&fakeClient{token: pending}, 0, time.Minute, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, p.Publish(ctx, "t", []byte("x")), context.Canceled)
	})
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	sub := client.Subscribe(ctx, "editdesk/users/u1/notifications")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisher(client)
	require.NoError(t, p.Publish(ctx, "editdesk/users/u1/notifications", []byte("hello")))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "hello", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	require.NoError(t, p.Close())
}

func TestRedisPublisher_ClosedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Close())

	err := NewRedisPublisher(client).Publish(context.Background(), "t", []byte("x"))
	assert.Error(t, err)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.Publish(context.Background(), "editdesk/orders/1/activity", []byte("abc")))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "editdesk/orders/1/activity", entries[0].ContextMap()["topic"])
	assert.Equal(t, int64(3), entries[0].ContextMap()["bytes"])
}

func TestNew(t *testing.T) {
	p, err := New(config.PubSubConfig{Driver: "log"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, p)

	_, err = New(config.PubSubConfig{Driver: "redis"}, nil, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	p, err = New(config.PubSubConfig{Driver: "redis"}, client, nil)
	require.NoError(t, err)
	assert.IsType(t, &RedisPublisher{}, p)

	_, err = New(config.PubSubConfig{Driver: "kafka"}, nil, nil)
	assert.ErrorContains(t, err, "unknown pubsub driver")

	_, err = New(config.PubSubConfig{Driver: "mqtt"}, nil, nil)
	assert.ErrorContains(t, err, "broker is required")
}
