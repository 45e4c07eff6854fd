package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/radiantone/emerge/errors"
)

// defaultRequestTimeout bounds how long one dispatched request may run
// before its context is canceled.
const defaultRequestTimeout = 10 * time.Second

// NATSBinding serves a dispatcher over NATS request/reply. Each
// operation gets its own queue subscription, so replicas of the same
// node share the request load.
type NATSBinding struct {
	conn       *nats.Conn
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
	subs       []*nats.Subscription
}

// NATSOption adjusts a binding before it starts.
type NATSOption func(*NATSBinding)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) NATSOption {
	return func(b *NATSBinding) { b.timeout = d }
}

// WithNATSLogger sets the binding's logger.
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(b *NATSBinding) { b.logger = logger }
}

// BindNATS creates a binding over an established connection. Call
// Start to subscribe.
func BindNATS(conn *nats.Conn, dispatcher *Dispatcher, opts ...NATSOption) *NATSBinding {
	b := &NATSBinding{
		conn:       conn,
		dispatcher: dispatcher,
		timeout:    defaultRequestTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes every operation subject. Requests are handled on
// their own goroutine so a slow execute cannot stall the rest of the
// subscription.
func (b *NATSBinding) Start() error {
	for _, op := range Operations() {
		op := op
		sub, err := b.conn.QueueSubscribe(Subject(op), QueueGroup, func(msg *nats.Msg) {
			go b.serve(op, msg)
		})
		if err != nil {
			return errors.WrapKind(errors.KindInternal, err, "NATSBinding", "Start",
				"subscribe "+Subject(op))
		}
		b.subs = append(b.subs, sub)
	}
	b.logger.Info("nats binding started",
		"subjects", SubjectPrefix+"*", "queue", QueueGroup)
	return nil
}

func (b *NATSBinding) serve(op string, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	resp := b.dispatcher.Dispatch(ctx, op, msg.Data)
	if err := msg.Respond(resp); err != nil {
		b.logger.Warn("reply failed", "op", op, "error", err)
	}
}

// Stop drains the binding's subscriptions. In-flight requests finish.
func (b *NATSBinding) Stop() error {
	for _, sub := range b.subs {
		if err := sub.Drain(); err != nil {
			return errors.WrapKind(errors.KindInternal, err, "NATSBinding", "Stop",
				"drain "+sub.Subject)
		}
	}
	b.subs = nil
	return nil
}
