package natsclient

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/radiantone/emerge/errors"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int

// Possible connection statuses.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected is returned by operations attempted before Connect.
var ErrNotConnected = stderrors.New("not connected to NATS")

// Client manages one NATS connection for the process.
type Client struct {
	url    string
	status atomic.Value // ConnectionStatus
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	username string
	password string
	token    string

	clientName string

	onDisconnect func(error)
	onReconnect  func()

	closed atomic.Bool
}

// NewClient creates a client for the given server URL. Connect must be
// called before use.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default(),
		maxReconnects: -1,
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
		clientName:    "emerge",
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapKind(errors.KindInternal, err, "Client", "NewClient", "apply option")
		}
	}
	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	v := c.status.Load()
	if v == nil {
		return StatusDisconnected
	}
	return v.(ConnectionStatus)
}

// IsHealthy reports whether the connection is established.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Conn returns the underlying connection, nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.Name(c.clientName),
		nats.Timeout(c.timeout),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
	}
	if c.username != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	return opts
}

// Connect establishes the connection. The context bounds the initial
// dial only; reconnection afterwards is handled by the NATS client.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.Internal("Client", "Connect", "client is closed")
	}
	c.status.Store(StatusConnecting)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		c.status.Store(StatusDisconnected)
		return errors.WrapKind(errors.KindInternal, ctx.Err(), "Client", "Connect", "dial canceled")
	case res := <-done:
		if res.err != nil {
			c.status.Store(StatusDisconnected)
			return errors.WrapKind(errors.KindInternal, res.err, "Client", "Connect",
				"connect to "+c.url)
		}
		c.mu.Lock()
		c.conn = res.conn
		c.mu.Unlock()
		c.status.Store(StatusConnected)
		c.logger.Info("nats connected", "url", c.url, "name", c.clientName)
		return nil
	}
}

// Request performs a request/reply exchange. The context deadline
// bounds the wait for the reply.
func (c *Client) Request(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	conn := c.Conn()
	if conn == nil {
		return nil, errors.WrapKind(errors.KindInternal, ErrNotConnected, "Client", "Request", subject)
	}
	msg, err := conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Client", "Request", subject)
	}
	return msg.Data, nil
}

// Publish sends a message without waiting for a reply.
func (c *Client) Publish(subject string, payload []byte) error {
	conn := c.Conn()
	if conn == nil {
		return errors.WrapKind(errors.KindInternal, ErrNotConnected, "Client", "Publish", subject)
	}
	if err := conn.Publish(subject, payload); err != nil {
		return errors.WrapKind(errors.KindInternal, err, "Client", "Publish", subject)
	}
	return nil
}

// QueueSubscribe subscribes a handler under a queue group.
func (c *Client) QueueSubscribe(subject, queue string, handler nats.MsgHandler) (*nats.Subscription, error) {
	conn := c.Conn()
	if conn == nil {
		return nil, errors.WrapKind(errors.KindInternal, ErrNotConnected, "Client", "QueueSubscribe", subject)
	}
	sub, err := conn.QueueSubscribe(subject, queue, handler)
	if err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Client", "QueueSubscribe", subject)
	}
	return sub, nil
}

// Close drains the connection so in-flight work completes, then
// releases it. Close is idempotent.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	conn := c.Conn()
	if conn == nil {
		c.status.Store(StatusClosed)
		return nil
	}

	drained := make(chan error, 1)
	go func() {
		drained <- conn.Drain()
	}()

	deadline := time.After(c.drainTimeout)
	select {
	case err := <-drained:
		if err != nil {
			conn.Close()
			c.status.Store(StatusClosed)
			return errors.WrapKind(errors.KindInternal, err, "Client", "Close", "drain")
		}
	case <-ctx.Done():
		conn.Close()
	case <-deadline:
		c.logger.Warn("drain timeout exceeded, forcing close")
		conn.Close()
	}

	c.status.Store(StatusClosed)
	c.logger.Info("nats connection closed", "url", c.url)
	return nil
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.status.Store(StatusReconnecting)
	c.logger.Warn("nats disconnected", "url", c.url, "error", err)
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.status.Store(StatusConnected)
	c.logger.Info("nats reconnected", "url", conn.ConnectedUrl())
	if c.onReconnect != nil {
		c.onReconnect()
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if c.closed.Load() {
		return
	}
	c.status.Store(StatusDisconnected)
	c.logger.Warn("nats connection lost", "url", c.url)
}
