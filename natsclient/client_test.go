package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStatusString(t *testing.T) {
	cases := map[ConnectionStatus]string{
		StatusDisconnected:   "disconnected",
		StatusConnecting:     "connecting",
		StatusConnected:      "connected",
		StatusReconnecting:   "reconnecting",
		StatusClosed:         "closed",
		ConnectionStatus(99): "unknown",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Nil(t, c.Conn())
	assert.Equal(t, -1, c.maxReconnects)
	assert.Equal(t, 2*time.Second, c.reconnectWait)
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient("nats://localhost:4222",
		WithName("emerge-test"),
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(10*time.Second),
		WithDrainTimeout(time.Second),
		WithCredentials("user", "pass"),
	)
	require.NoError(t, err)

	assert.Equal(t, "emerge-test", c.clientName)
	assert.Equal(t, 3, c.maxReconnects)
	assert.Equal(t, time.Second, c.reconnectWait)
	assert.Equal(t, 10*time.Second, c.timeout)
	assert.Equal(t, "user", c.username)
}

func TestConnectionOptionsIncludeAuth(t *testing.T) {
	c, err := NewClient("nats://localhost:4222", WithToken("secret"))
	require.NoError(t, err)

	// Name, timeout, reconnects, wait, three handlers, token.
	assert.Len(t, c.connectionOptions(), 8)
}

func TestRequestBeforeConnect(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = c.Request(context.Background(), "emerge.rpc.hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = c.Publish("emerge.rpc.hello", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.QueueSubscribe("emerge.rpc.hello", "q", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseIdempotentWithoutConnection(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusClosed, c.Status())
	require.NoError(t, c.Close(context.Background()))

	err = c.Connect(context.Background())
	require.Error(t, err)
}
