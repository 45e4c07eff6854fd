package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/radiantone/emerge/engine"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/errors"
	"github.com/radiantone/emerge/gateway"
	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/search"
)

// Client talks to one emerge node.
type Client struct {
	transport Transport
	registry  *envelope.Registry
	logger    *slog.Logger
}

// Option adjusts a client at construction.
type Option func(*Client)

// WithRegistry sets the type registry used to decode fetched objects.
// Without one, every fetched object decodes generically.
func WithRegistry(reg *envelope.Registry) Option {
	return func(c *Client) { c.registry = reg }
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client over an established transport.
func New(transport Transport, opts ...Option) *Client {
	c := &Client{
		transport: transport,
		registry:  envelope.NewRegistry(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// call performs one round trip: marshal request, send, surface faults
// as typed errors, decode the response.
func (c *Client) call(ctx context.Context, op string, req, resp any) error {
	var payload []byte
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		if err != nil {
			return errors.WrapKind(errors.KindInternal, err, "Client", op, "request marshal")
		}
	}

	data, err := c.transport.Request(ctx, op, payload)
	if err != nil {
		return err
	}
	if fault := errors.UnmarshalWire(data); fault != nil {
		return fault
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return errors.WrapKind(errors.KindInternal, err, "Client", op, "response unmarshal")
	}
	return nil
}

// Hello greets the node and reports what it knows.
func (c *Client) Hello(ctx context.Context, query string) (gateway.HelloResponse, error) {
	var resp gateway.HelloResponse
	err := c.call(ctx, gateway.OpHello, gateway.HelloRequest{Query: query}, &resp)
	return resp, err
}

// GraphQL evaluates a query document on the node.
func (c *Client) GraphQL(ctx context.Context, query string, variables map[string]any) (gateway.GraphQLResponse, error) {
	var resp gateway.GraphQLResponse
	err := c.call(ctx, gateway.OpGraphQL, gateway.GraphQLRequest{Query: query, Variables: variables}, &resp)
	return resp, err
}

// Search returns the ids of objects matching the predicate.
func (c *Client) Search(ctx context.Context, pred search.Predicate) ([]string, error) {
	raw, err := pred.Marshal()
	if err != nil {
		return nil, err
	}
	var resp gateway.SearchResponse
	if err := c.call(ctx, gateway.OpSearch, gateway.SearchRequest{Predicate: raw}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// SearchText returns the ids of objects whose field equals query.
func (c *Client) SearchText(ctx context.Context, field, query string) ([]string, error) {
	var resp gateway.SearchResponse
	if err := c.call(ctx, gateway.OpSearchText,
		gateway.SearchTextRequest{Field: field, Query: query}, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// List returns the entries of a directory, windowed by offset and
// size. Size 0 means no limit.
func (c *Client) List(ctx context.Context, path string, offset, size int) ([]namespace.Entry, error) {
	var resp gateway.ListResponse
	if err := c.call(ctx, gateway.OpList,
		gateway.ListRequest{Path: path, Offset: offset, Size: size}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Get fetches record metadata by id or path. A directory target
// returns the records of the objects inside it, windowed by
// offset/size (size 0 means no limit).
func (c *Client) Get(ctx context.Context, target string, offset, size int) (*gateway.RecordInfo, []gateway.RecordInfo, error) {
	var resp gateway.GetResponse
	if err := c.call(ctx, gateway.OpGet,
		gateway.GetRequest{Target: target, Offset: offset, Size: size}, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Record, resp.Records, nil
}

// GetObject fetches and decodes one object. Types not in the client's
// registry come back as schema-validated *envelope.Generic values.
func (c *Client) GetObject(ctx context.Context, target string) (envelope.Object, error) {
	var resp gateway.GetObjectResponse
	if err := c.call(ctx, gateway.OpGetObject,
		gateway.GetObjectRequest{Target: target, Raw: true}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Envelope) == 0 {
		return nil, errors.InvalidPath("Client", "GetObject",
			fmt.Sprintf("%q names a directory, not an object", target))
	}
	return envelope.DecodeBytes(resp.Envelope, c.registry)
}

// GetObjects fetches and decodes the objects of a directory, windowed
// by offset/size (size 0 means no limit).
func (c *Client) GetObjects(ctx context.Context, path string, offset, size int) ([]envelope.Object, error) {
	var resp gateway.GetObjectResponse
	if err := c.call(ctx, gateway.OpGetObject,
		gateway.GetObjectRequest{Target: path, Raw: true, Offset: offset, Size: size}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Envelope) > 0 {
		return nil, errors.InvalidPath("Client", "GetObjects",
			fmt.Sprintf("%q names an object, not a directory", path))
	}
	objects := make([]envelope.Object, 0, len(resp.Objects))
	for _, entry := range resp.Objects {
		obj, err := envelope.DecodeBytes(entry.Envelope, c.registry)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// GetPayload fetches an object's root payload without decoding it into
// a Go value.
func (c *Client) GetPayload(ctx context.Context, target string) (envelope.Type, json.RawMessage, error) {
	var resp gateway.GetObjectResponse
	if err := c.call(ctx, gateway.OpGetObject,
		gateway.GetObjectRequest{Target: target}, &resp); err != nil {
		return envelope.Type{}, nil, err
	}
	if len(resp.Payload) == 0 {
		return envelope.Type{}, nil, errors.InvalidPath("Client", "GetPayload",
			fmt.Sprintf("%q names a directory, not an object", target))
	}
	return resp.Type, resp.Payload, nil
}

// Store encodes an object and stores it at path under the given id and
// name.
func (c *Client) Store(ctx context.Context, id, path, name string, obj envelope.Object) error {
	data, err := envelope.EncodeBytes(obj)
	if err != nil {
		return err
	}
	return c.call(ctx, gateway.OpStore,
		gateway.StoreRequest{ID: id, Path: path, Name: name, Data: data}, nil)
}

// Copy duplicates the object at source under destPath. The copy gets a
// fresh id; the envelope bytes travel unchanged, so the copy carries
// the same type and payload.
func (c *Client) Copy(ctx context.Context, source, destPath string) error {
	var resp gateway.GetObjectResponse
	if err := c.call(ctx, gateway.OpGetObject,
		gateway.GetObjectRequest{Target: source, Raw: true}, &resp); err != nil {
		return err
	}
	if len(resp.Envelope) == 0 {
		return errors.InvalidPath("Client", "Copy",
			fmt.Sprintf("%q names a directory, not an object", source))
	}
	return c.call(ctx, gateway.OpStore, gateway.StoreRequest{
		ID:   uuid.NewString(),
		Path: namespace.ParentPath(destPath),
		Name: namespace.BaseName(destPath),
		Data: resp.Envelope,
	}, nil)
}

// Mkdir creates a directory.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	return c.call(ctx, gateway.OpMkdir, gateway.MkdirRequest{Path: path}, nil)
}

// Remove deletes an object or directory by id or path.
func (c *Client) Remove(ctx context.Context, target string) error {
	return c.call(ctx, gateway.OpRemove, gateway.RemoveRequest{Target: target}, nil)
}

// Query invokes the query method of the object at path.
func (c *Client) Query(ctx context.Context, path string) (json.RawMessage, error) {
	var resp gateway.ResultResponse
	if err := c.call(ctx, gateway.OpQuery, gateway.QueryRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Execute invokes a method on the object named by id under the node's
// default persist mode.
func (c *Client) Execute(ctx context.Context, id, method string) (json.RawMessage, error) {
	return c.ExecuteMode(ctx, id, method, "")
}

// ExecuteMode invokes a method with an explicit persist mode,
// "transient" or "persistent".
func (c *Client) ExecuteMode(ctx context.Context, id, method, mode string) (json.RawMessage, error) {
	var resp gateway.ResultResponse
	if err := c.call(ctx, gateway.OpExecute,
		gateway.ExecuteRequest{ID: id, Method: method, Mode: mode}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Describe returns the invokable methods of an object.
func (c *Client) Describe(ctx context.Context, target string) ([]engine.Method, error) {
	var resp gateway.DescribeResponse
	if err := c.call(ctx, gateway.OpDescribe, gateway.DescribeRequest{Target: target}, &resp); err != nil {
		return nil, err
	}
	return resp.Methods, nil
}

// Register publishes a type descriptor into the node's registry
// directory and returns the entry's path.
func (c *Client) Register(ctx context.Context, t envelope.Type) (string, error) {
	var resp gateway.RegisterResponse
	if err := c.call(ctx, gateway.OpRegister, gateway.RegisterRequest{Type: t}, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Proxy builds a call-style handle on the object named by target. One
// describe round trip fixes the method surface; every Call and Attr
// afterwards is a fresh exchange with the node.
func (c *Client) Proxy(ctx context.Context, target string) (*Proxy, error) {
	rec, _, err := c.Get(ctx, target, 0, 0)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.InvalidPath("Client", "Proxy",
			fmt.Sprintf("%q names a directory, not an object", target))
	}
	methods, err := c.Describe(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return newProxy(c, rec.ID, methods), nil
}
