package client

import (
	"context"
	"time"

	"github.com/radiantone/emerge/gateway"
	"github.com/radiantone/emerge/natsclient"
)

// Transport carries one request to a node and returns its raw JSON
// response. Implementations must return transport failures as errors;
// application faults travel inside the response body.
type Transport interface {
	Request(ctx context.Context, op string, payload []byte) ([]byte, error)
	Close() error
}

// natsTransport sends requests over NATS request/reply subjects.
type natsTransport struct {
	client *natsclient.Client
}

func (t *natsTransport) Request(ctx context.Context, op string, payload []byte) ([]byte, error) {
	return t.client.Request(ctx, gateway.Subject(op), payload)
}

func (t *natsTransport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.client.Close(ctx)
}

// Dial connects a client to a node over NATS.
func Dial(ctx context.Context, url string, opts ...natsclient.ClientOption) (*Client, error) {
	nc, err := natsclient.NewClient(url, opts...)
	if err != nil {
		return nil, err
	}
	if err := nc.Connect(ctx); err != nil {
		return nil, err
	}
	return New(&natsTransport{client: nc}), nil
}
