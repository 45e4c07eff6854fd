package testutil

import (
	"context"
)

// Dispatcher is the subset of the gateway contract the local transport
// needs: one request in, one response out. The gateway's Dispatcher
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, op string, payload []byte) []byte
}

// LocalTransport binds a client straight to a dispatcher in the same
// process, so protocol tests run without a broker. It satisfies the
// client's Transport interface.
type LocalTransport struct {
	Target Dispatcher
}

// Request performs one in-process round trip.
func (lt *LocalTransport) Request(ctx context.Context, op string, payload []byte) ([]byte, error) {
	return lt.Target.Dispatch(ctx, op, payload), nil
}

// Close is a no-op for the local transport.
func (lt *LocalTransport) Close() error { return nil }
