package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radiantone/emerge/engine"
	"github.com/radiantone/emerge/errors"
)

// Proxy is a call-style handle on one remote object.
type Proxy struct {
	client  *Client
	id      string
	methods []engine.Method
	known   map[string]struct{}
}

func newProxy(c *Client, id string, methods []engine.Method) *Proxy {
	known := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		known[m.Name] = struct{}{}
	}
	return &Proxy{client: c, id: id, methods: methods, known: known}
}

// ID returns the proxied object's id.
func (p *Proxy) ID() string {
	return p.id
}

// Methods returns the object's call surface as reported by the node.
func (p *Proxy) Methods() []engine.Method {
	out := make([]engine.Method, len(p.methods))
	copy(out, p.methods)
	return out
}

// Call invokes a method on the remote object. The method must be part
// of the surface the node described.
func (p *Proxy) Call(ctx context.Context, method string) (json.RawMessage, error) {
	if _, ok := p.known[method]; !ok {
		return nil, errors.NoSuchMethod("Proxy", "Call",
			fmt.Sprintf("object %s has no method %q", p.id, method))
	}
	return p.client.Execute(ctx, p.id, method)
}

// Attr fetches the current value of one payload field. Every call
// reads fresh state from the node.
func (p *Proxy) Attr(ctx context.Context, name string) (any, error) {
	_, payload, err := p.client.GetPayload(ctx, p.id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Proxy", "Attr", "payload decode")
	}
	value, ok := fields[name]
	if !ok {
		return nil, errors.NotFound("Proxy", "Attr",
			fmt.Sprintf("object %s has no attribute %q", p.id, name))
	}
	return value, nil
}
