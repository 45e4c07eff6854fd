package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/radiantone/emerge/engine"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/errors"
	"github.com/radiantone/emerge/metric"
	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/search"
)

// GraphQLExecutor evaluates a GraphQL document against the namespace.
// Query evaluation errors come back in the errors slice, not as faults.
type GraphQLExecutor interface {
	Execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, []string)
}

// descriptorType is the envelope type of registry entries written by the
// register operation.
var descriptorType = envelope.Type{
	Name:    "type-descriptor",
	Version: "v1",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"name":    {"type": "string"},
			"version": {"type": "string"},
			"schema":  {"type": "object"}
		},
		"required": ["name", "version"]
	}`),
}

// Config wires the dispatcher to the node's subsystems. Store, Engine
// and Search are required; GraphQL and Metrics are optional.
type Config struct {
	Store    *namespace.Store
	Engine   *engine.Engine
	Search   *search.Engine
	Registry *envelope.Registry
	GraphQL  GraphQLExecutor
	Metrics  *metric.Registry
	Logger   *slog.Logger
	NodeName string
}

// Dispatcher maps operation names and JSON request bodies to JSON
// response bodies. It is the single entry point shared by every
// transport binding.
type Dispatcher struct {
	store    *namespace.Store
	engine   *engine.Engine
	search   *search.Engine
	registry *envelope.Registry
	graphql  GraphQLExecutor
	metrics  *metric.Registry
	logger   *slog.Logger
	node     string
}

// NewDispatcher creates a dispatcher over the given subsystems.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	node := cfg.NodeName
	if node == "" {
		node = "emerge"
	}
	return &Dispatcher{
		store:    cfg.Store,
		engine:   cfg.Engine,
		search:   cfg.Search,
		registry: cfg.Registry,
		graphql:  cfg.GraphQL,
		metrics:  cfg.Metrics,
		logger:   logger,
		node:     node,
	}
}

// Dispatch handles one request. The returned bytes are always a valid
// JSON body: the operation's response on success, a wire error payload
// on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, op string, payload []byte) []byte {
	start := time.Now()
	resp, err := d.handle(ctx, op, payload)
	if d.metrics != nil {
		d.metrics.ObserveRequest(op, err, time.Since(start))
	}
	if err != nil {
		d.logger.Warn("request failed", "op", op, "error", err)
		return errors.MarshalWire(err)
	}

	out, err := json.Marshal(resp)
	if err != nil {
		d.logger.Error("response marshal failed", "op", op, "error", err)
		return errors.MarshalWire(errors.Internal("Gateway", op, "response encoding failed"))
	}
	return out
}

func (d *Dispatcher) handle(ctx context.Context, op string, payload []byte) (any, error) {
	switch op {
	case OpHello:
		return d.hello(payload)
	case OpGraphQL:
		return d.handleGraphQL(ctx, payload)
	case OpSearch:
		return d.handleSearch(ctx, payload)
	case OpSearchText:
		return d.handleSearchText(payload)
	case OpList:
		return d.handleList(payload)
	case OpGet:
		return d.handleGet(payload)
	case OpGetObject:
		return d.handleGetObject(payload)
	case OpStore:
		return d.handleStore(payload)
	case OpMkdir:
		return d.handleMkdir(payload)
	case OpRemove:
		return d.handleRemove(payload)
	case OpQuery:
		return d.handleQuery(ctx, payload)
	case OpExecute:
		return d.handleExecute(ctx, payload)
	case OpDescribe:
		return d.handleDescribe(payload)
	case OpRegister:
		return d.handleRegister(payload)
	default:
		return nil, errors.NoSuchMethod("Gateway", "Dispatch",
			fmt.Sprintf("unknown operation %q", op))
	}
}

// decode unmarshals a request body. An empty body decodes as an empty
// request so zero-argument calls need no payload.
func decode(op string, payload []byte, into any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, into); err != nil {
		return errors.BadRequest("Gateway", op, fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

func (d *Dispatcher) hello(payload []byte) (any, error) {
	var req HelloRequest
	if err := decode(OpHello, payload, &req); err != nil {
		return nil, err
	}
	message := "hello there"
	if req.Query != "" {
		message = fmt.Sprintf("hello there: %s", req.Query)
	}
	resp := HelloResponse{Message: message, Node: d.node}
	if d.registry != nil {
		resp.Types = d.registry.Types()
	}
	return resp, nil
}

func (d *Dispatcher) handleGraphQL(ctx context.Context, payload []byte) (any, error) {
	var req GraphQLRequest
	if err := decode(OpGraphQL, payload, &req); err != nil {
		return nil, err
	}
	if d.graphql == nil {
		return nil, errors.Internal("Gateway", OpGraphQL, "graphql executor not configured")
	}
	data, gqlErrs := d.graphql.Execute(ctx, req.Query, req.Variables)
	return GraphQLResponse{Data: data, Errors: gqlErrs}, nil
}

func (d *Dispatcher) handleSearch(ctx context.Context, payload []byte) (any, error) {
	var req SearchRequest
	if err := decode(OpSearch, payload, &req); err != nil {
		return nil, err
	}
	var pred search.Predicate
	if len(req.Predicate) > 0 {
		var err error
		pred, err = search.UnmarshalPredicate(req.Predicate)
		if err != nil {
			return nil, err
		}
	}
	ids, err := d.search.Search(ctx, pred)
	if err != nil {
		return nil, err
	}
	return SearchResponse{IDs: ids}, nil
}

func (d *Dispatcher) handleSearchText(payload []byte) (any, error) {
	var req SearchTextRequest
	if err := decode(OpSearchText, payload, &req); err != nil {
		return nil, err
	}
	return SearchResponse{IDs: d.search.SearchText(req.Field, req.Query)}, nil
}

func (d *Dispatcher) handleList(payload []byte) (any, error) {
	var req ListRequest
	if err := decode(OpList, payload, &req); err != nil {
		return nil, err
	}
	entries, err := d.store.List(req.Path, req.Offset, req.Size)
	if err != nil {
		return nil, err
	}
	return ListResponse{Entries: entries}, nil
}

func (d *Dispatcher) handleGet(payload []byte) (any, error) {
	var req GetRequest
	if err := decode(OpGet, payload, &req); err != nil {
		return nil, err
	}
	rec, recs, err := d.store.Get(req.Target)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		info := recordInfo(rec)
		return GetResponse{Record: &info}, nil
	}
	recs = windowRecords(recs, req.Offset, req.Size)
	infos := make([]RecordInfo, 0, len(recs))
	for _, r := range recs {
		infos = append(infos, recordInfo(r))
	}
	return GetResponse{Records: infos}, nil
}

// windowRecords applies the [offset, offset+size) window used by list:
// size 0 means no limit, an offset past the end yields nothing.
func windowRecords(recs []*namespace.Record, offset, size int) []*namespace.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(recs) {
		return nil
	}
	end := len(recs)
	if size > 0 && offset+size < end {
		end = offset + size
	}
	return recs[offset:end]
}

func (d *Dispatcher) handleGetObject(payload []byte) (any, error) {
	var req GetObjectRequest
	if err := decode(OpGetObject, payload, &req); err != nil {
		return nil, err
	}
	rec, recs, err := d.store.Get(req.Target)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		objects := make([]ObjectPayload, 0, len(recs))
		for _, r := range windowRecords(recs, req.Offset, req.Size) {
			obj, err := objectPayload(r, req.Raw)
			if err != nil {
				return nil, err
			}
			objects = append(objects, obj)
		}
		return GetObjectResponse{Objects: objects}, nil
	}
	obj, err := objectPayload(rec, req.Raw)
	if err != nil {
		return nil, err
	}
	return GetObjectResponse{Type: obj.Type, Payload: obj.Payload, Envelope: obj.Envelope}, nil
}

func objectPayload(rec *namespace.Record, raw bool) (ObjectPayload, error) {
	if raw {
		return ObjectPayload{Type: rec.Type, Envelope: rec.Data}, nil
	}
	typ, rootPayload, err := envelope.RootPayload(rec.Data)
	if err != nil {
		return ObjectPayload{}, err
	}
	return ObjectPayload{Type: typ, Payload: rootPayload}, nil
}

func (d *Dispatcher) handleStore(payload []byte) (any, error) {
	var req StoreRequest
	if err := decode(OpStore, payload, &req); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, errors.BadRequest("Gateway", OpStore, "data is required")
	}
	if strings.Contains(req.Name, "/") {
		return nil, errors.InvalidPath("Gateway", OpStore,
			fmt.Sprintf("name %q cannot contain %q", req.Name, "/"))
	}

	typ, _, err := envelope.RootPayload(req.Data)
	if err != nil {
		return nil, err
	}

	rec := &namespace.Record{
		ID:   req.ID,
		Path: req.Path,
		Name: req.Name,
		Type: typ,
		Data: req.Data,
		Size: int64(len(req.Data)),
	}
	if err := d.store.Put(rec); err != nil {
		return nil, err
	}
	d.updateGauges()
	return StoreResponse{ID: rec.ID, Path: rec.FullPath()}, nil
}

func (d *Dispatcher) handleMkdir(payload []byte) (any, error) {
	var req MkdirRequest
	if err := decode(OpMkdir, payload, &req); err != nil {
		return nil, err
	}
	if err := d.store.Mkdir(req.Path); err != nil {
		return nil, err
	}
	d.updateGauges()
	return OKResponse{OK: true}, nil
}

func (d *Dispatcher) handleRemove(payload []byte) (any, error) {
	var req RemoveRequest
	if err := decode(OpRemove, payload, &req); err != nil {
		return nil, err
	}
	if err := d.store.Remove(req.Target); err != nil {
		return nil, err
	}
	d.updateGauges()
	return OKResponse{OK: true}, nil
}

func (d *Dispatcher) handleQuery(ctx context.Context, payload []byte) (any, error) {
	var req QueryRequest
	if err := decode(OpQuery, payload, &req); err != nil {
		return nil, err
	}
	result, err := d.engine.Query(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	return ResultResponse{Result: result}, nil
}

func (d *Dispatcher) handleExecute(ctx context.Context, payload []byte) (any, error) {
	var req ExecuteRequest
	if err := decode(OpExecute, payload, &req); err != nil {
		return nil, err
	}
	result, err := d.engine.Execute(ctx, req.ID, req.Method, engine.Mode(req.Mode))
	if err != nil {
		return nil, err
	}
	return ResultResponse{Result: result}, nil
}

func (d *Dispatcher) handleDescribe(payload []byte) (any, error) {
	var req DescribeRequest
	if err := decode(OpDescribe, payload, &req); err != nil {
		return nil, err
	}
	methods, err := d.engine.Describe(req.Target)
	if err != nil {
		return nil, err
	}
	return DescribeResponse{Methods: methods}, nil
}

func (d *Dispatcher) handleRegister(payload []byte) (any, error) {
	var req RegisterRequest
	if err := decode(OpRegister, payload, &req); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, errors.UnknownType("Gateway", OpRegister,
			"type name and version are required")
	}

	entry := envelope.NewGeneric(descriptorType)
	entry.Fields = map[string]any{
		"name":    req.Type.Name,
		"version": req.Type.Version,
	}
	if len(req.Type.Schema) > 0 {
		var schema any
		if err := json.Unmarshal(req.Type.Schema, &schema); err != nil {
			return nil, errors.Internal("Gateway", OpRegister,
				fmt.Sprintf("malformed schema: %v", err))
		}
		entry.Fields["schema"] = schema
	}
	data, err := envelope.EncodeBytes(entry)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s@%s", req.Type.Name, req.Type.Version)
	rec := &namespace.Record{
		ID:   "registry:" + name,
		Path: namespace.RegistryPath,
		Name: name,
		Type: descriptorType,
		Data: data,
		Size: int64(len(data)),
	}
	if err := d.store.Put(rec); err != nil {
		return nil, err
	}
	d.updateGauges()
	return RegisterResponse{Path: rec.FullPath()}, nil
}

func (d *Dispatcher) updateGauges() {
	if d.metrics == nil {
		return
	}
	stats := d.store.Stats()
	d.metrics.SetNamespaceSize(stats.Objects, stats.Directories)
}

func recordInfo(rec *namespace.Record) RecordInfo {
	return RecordInfo{
		ID:       rec.ID,
		Path:     rec.FullPath(),
		Name:     rec.Name,
		Type:     rec.Type,
		Size:     rec.Size,
		Perms:    rec.Perms,
		Created:  rec.Created,
		Modified: rec.Modified,
		Data:     rec.Data,
	}
}
