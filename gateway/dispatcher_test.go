package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiantone/emerge/engine"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/errors"
	"github.com/radiantone/emerge/metric"
	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/search"
	"github.com/radiantone/emerge/testutil"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *namespace.Store) {
	t.Helper()
	store := namespace.NewStore(namespace.Options{})
	reg := testutil.Registry()
	return NewDispatcher(Config{
		Store:    store,
		Engine:   engine.New(store, reg, engine.Config{}),
		Search:   search.NewEngine(store, reg, search.Config{}),
		Registry: reg,
		Metrics:  metric.NewRegistry(),
		NodeName: "test-node",
	}), store
}

// roundTrip dispatches a request and decodes the successful response.
func roundTrip(t *testing.T, d *Dispatcher, op string, req, resp any) {
	t.Helper()
	var payload []byte
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		require.NoError(t, err)
	}
	out := d.Dispatch(context.Background(), op, payload)
	require.NoError(t, errors.UnmarshalWire(out), "op %s returned fault: %s", op, out)
	if resp != nil {
		require.NoError(t, json.Unmarshal(out, resp))
	}
}

// fault dispatches a request and returns the decoded wire error.
func fault(t *testing.T, d *Dispatcher, op string, req any) error {
	t.Helper()
	var payload []byte
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		require.NoError(t, err)
	}
	out := d.Dispatch(context.Background(), op, payload)
	err := errors.UnmarshalWire(out)
	require.Error(t, err, "op %s succeeded: %s", op, out)
	return err
}

func storeThroughDispatcher(t *testing.T, d *Dispatcher, item *testutil.InventoryItem, path string) {
	t.Helper()
	data, err := envelope.EncodeBytes(item)
	require.NoError(t, err)
	var resp StoreResponse
	roundTrip(t, d, OpStore, StoreRequest{
		ID: item.ID, Path: path, Name: item.Name, Data: data,
	}, &resp)
	assert.Equal(t, item.ID, resp.ID)
}

func TestDispatchHello(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var resp HelloResponse
	roundTrip(t, d, OpHello, nil, &resp)
	assert.Equal(t, "hello there", resp.Message)
	assert.Equal(t, "test-node", resp.Node)
	assert.Contains(t, resp.Types, "inventory-item.v1")

	roundTrip(t, d, OpHello, HelloRequest{Query: "anyone home"}, &resp)
	assert.Equal(t, "hello there: anyone home", resp.Message)
}

func TestDispatchStoreAndGet(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{
		ID: "widget1", Name: "widget", UnitPrice: 3.0, QuantityOnHand: 10,
	}, "/inventory")

	var byID GetResponse
	roundTrip(t, d, OpGet, GetRequest{Target: "widget1"}, &byID)
	require.NotNil(t, byID.Record)
	assert.Equal(t, "/inventory/widget", byID.Record.Path)
	assert.Equal(t, "inventory-item", byID.Record.Type.Name)
	assert.Equal(t, "-rw-rw-rw-", byID.Record.Perms)
	assert.False(t, byID.Record.Created.IsZero())

	// A directory target resolves to the objects inside it.
	var byDir GetResponse
	roundTrip(t, d, OpGet, GetRequest{Target: "/inventory"}, &byDir)
	assert.Nil(t, byDir.Record)
	require.Len(t, byDir.Records, 1)
	assert.Equal(t, "widget1", byDir.Records[0].ID)
}

func TestDispatchStoreMissingParent(t *testing.T) {
	d, _ := newTestDispatcher(t)
	data, err := envelope.EncodeBytes(&testutil.InventoryItem{ID: "w1", Name: "w"})
	require.NoError(t, err)

	err = fault(t, d, OpStore, StoreRequest{ID: "w1", Path: "/nowhere", Name: "w", Data: data})
	assert.True(t, errors.IsInvalidPath(err))
}

func TestDispatchList(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{ID: "w1", Name: "widget"}, "/inventory")

	var resp ListResponse
	roundTrip(t, d, OpList, ListRequest{Path: "/"}, &resp)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, namespace.KindDirectory, resp.Entries[0].Kind)
	assert.Equal(t, "/inventory", resp.Entries[0].Path)

	roundTrip(t, d, OpList, ListRequest{Path: "/inventory"}, &resp)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, namespace.KindObject, resp.Entries[0].Kind)
	assert.Equal(t, "w1", resp.Entries[0].ID)
}

func TestDispatchGetObject(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{
		ID: "w1", Name: "widget", UnitPrice: 2.5, QuantityOnHand: 4,
	}, "/inventory")

	var decoded GetObjectResponse
	roundTrip(t, d, OpGetObject, GetObjectRequest{Target: "/inventory/widget"}, &decoded)
	assert.Equal(t, "inventory-item", decoded.Type.Name)
	assert.Empty(t, decoded.Envelope)

	var item testutil.InventoryItem
	require.NoError(t, json.Unmarshal(decoded.Payload, &item))
	assert.Equal(t, 2.5, item.UnitPrice)

	var raw GetObjectResponse
	roundTrip(t, d, OpGetObject, GetObjectRequest{Target: "w1", Raw: true}, &raw)
	assert.Empty(t, raw.Payload)
	obj, err := envelope.DecodeBytes(raw.Envelope, testutil.Registry())
	require.NoError(t, err)
	assert.Equal(t, 4, obj.(*testutil.InventoryItem).QuantityOnHand)
}

func TestDispatchGetWindowsDirectory(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	for i := 0; i < 5; i++ {
		storeThroughDispatcher(t, d, &testutil.InventoryItem{
			ID: fmt.Sprintf("w%d", i), Name: fmt.Sprintf("widget-%d", i),
		}, "/inventory")
	}

	var page GetResponse
	roundTrip(t, d, OpGet, GetRequest{Target: "/inventory", Offset: 1, Size: 2}, &page)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "w1", page.Records[0].ID)
	assert.Equal(t, "w2", page.Records[1].ID)

	// Size zero means no limit past the offset.
	roundTrip(t, d, OpGet, GetRequest{Target: "/inventory", Offset: 3}, &page)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "w3", page.Records[0].ID)

	// An offset past the end yields an empty window, not a fault.
	roundTrip(t, d, OpGet, GetRequest{Target: "/inventory", Offset: 10}, &page)
	assert.Empty(t, page.Records)
}

func TestDispatchGetObjectDirectory(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	for i := 0; i < 3; i++ {
		storeThroughDispatcher(t, d, &testutil.InventoryItem{
			ID: fmt.Sprintf("w%d", i), Name: fmt.Sprintf("widget-%d", i), QuantityOnHand: i,
		}, "/inventory")
	}

	var resp GetObjectResponse
	roundTrip(t, d, OpGetObject, GetObjectRequest{Target: "/inventory"}, &resp)
	assert.Empty(t, resp.Envelope)
	require.Len(t, resp.Objects, 3)
	assert.Equal(t, "inventory-item", resp.Objects[0].Type.Name)

	roundTrip(t, d, OpGetObject, GetObjectRequest{Target: "/inventory", Offset: 2, Size: 2}, &resp)
	require.Len(t, resp.Objects, 1)
	var item testutil.InventoryItem
	require.NoError(t, json.Unmarshal(resp.Objects[0].Payload, &item))
	assert.Equal(t, 2, item.QuantityOnHand)
}

func TestDispatchStoreRejectsSeparatorName(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	data, err := envelope.EncodeBytes(&testutil.InventoryItem{ID: "w1", Name: "w"})
	require.NoError(t, err)

	err = fault(t, d, OpStore, StoreRequest{
		ID: "w1", Path: "/inventory", Name: "a/b", Data: data,
	})
	assert.True(t, errors.IsInvalidPath(err))
}

func TestDispatchExecuteAndQuery(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{
		ID: "widget1", Name: "widget", UnitPrice: 3.0, QuantityOnHand: 10,
	}, "/inventory")

	var result ResultResponse
	roundTrip(t, d, OpExecute, ExecuteRequest{ID: "widget1", Method: "total_cost"}, &result)
	assert.JSONEq(t, "30", string(result.Result))

	// Persistent is the node default, so restock sticks.
	roundTrip(t, d, OpExecute, ExecuteRequest{ID: "widget1", Method: "restock"}, &result)
	roundTrip(t, d, OpQuery, QueryRequest{Path: "/inventory/widget"}, &result)

	var text string
	require.NoError(t, json.Unmarshal(result.Result, &text))
	assert.Equal(t, "widget unit_price=3 quantity_on_hand=11", text)

	err := fault(t, d, OpExecute, ExecuteRequest{ID: "widget1", Method: "liquidate"})
	assert.True(t, errors.IsNoSuchMethod(err))
}

func TestDispatchDescribe(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{ID: "w1", Name: "widget"}, "/inventory")

	var resp DescribeResponse
	roundTrip(t, d, OpDescribe, DescribeRequest{Target: "w1"}, &resp)
	names := make([]string, 0, len(resp.Methods))
	for _, m := range resp.Methods {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"query", "restock", "run", "total_cost"}, names)
}

func TestDispatchSearch(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{
		ID: "widget1", Name: "widget", UnitPrice: 3.0, QuantityOnHand: 10,
	}, "/inventory")
	storeThroughDispatcher(t, d, &testutil.InventoryItem{
		ID: "gold1", Name: "ingot", UnitPrice: 900, QuantityOnHand: 2,
	}, "/inventory")

	pred, err := search.And(
		search.Where("path", "eq", "/inventory"),
		search.Where("unit_price", "lt", 10),
	).Marshal()
	require.NoError(t, err)

	var resp SearchResponse
	roundTrip(t, d, OpSearch, SearchRequest{Predicate: pred}, &resp)
	assert.Equal(t, []string{"widget1"}, resp.IDs)

	roundTrip(t, d, OpSearchText, SearchTextRequest{Field: "unit_price", Query: "900"}, &resp)
	assert.Equal(t, []string{"gold1"}, resp.IDs)
}

func TestDispatchRemove(t *testing.T) {
	d, _ := newTestDispatcher(t)
	roundTrip(t, d, OpMkdir, MkdirRequest{Path: "/inventory"}, nil)
	storeThroughDispatcher(t, d, &testutil.InventoryItem{ID: "w1", Name: "widget"}, "/inventory")

	// Default policy refuses to remove a non-empty directory.
	err := fault(t, d, OpRemove, RemoveRequest{Target: "/inventory"})
	assert.True(t, errors.IsAlreadyExists(err))

	roundTrip(t, d, OpRemove, RemoveRequest{Target: "w1"}, nil)
	roundTrip(t, d, OpRemove, RemoveRequest{Target: "/inventory"}, nil)

	err = fault(t, d, OpGet, GetRequest{Target: "w1"})
	assert.True(t, errors.IsNotFound(err))
}

func TestDispatchRegister(t *testing.T) {
	d, _ := newTestDispatcher(t)

	schema, err := envelope.SchemaFor(&testutil.Note{})
	require.NoError(t, err)

	var resp RegisterResponse
	roundTrip(t, d, OpRegister, RegisterRequest{
		Type: envelope.Type{Name: "note", Version: "v2", Schema: schema},
	}, &resp)
	assert.Equal(t, "/registry/note@v2", resp.Path)

	// The entry is listable under the registry directory.
	var listing ListResponse
	roundTrip(t, d, OpList, ListRequest{Path: namespace.RegistryPath}, &listing)
	require.Len(t, listing.Entries, 1)
	assert.Equal(t, "note@v2", listing.Entries[0].Name)

	// But the registry stays hidden from a root listing.
	roundTrip(t, d, OpList, ListRequest{Path: "/"}, &listing)
	assert.Empty(t, listing.Entries)

	err = fault(t, d, OpRegister, RegisterRequest{Type: envelope.Type{Name: "incomplete"}})
	assert.True(t, errors.IsUnknownType(err))
}

func TestDispatchUnknownOperation(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), "teleport", nil)
	err := errors.UnmarshalWire(out)
	require.Error(t, err)
	assert.True(t, errors.IsNoSuchMethod(err))
}

func TestDispatchMalformedBody(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), OpList, []byte("{not json"))
	err := errors.UnmarshalWire(out)
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
}

func TestDispatchFaultShape(t *testing.T) {
	d, _ := newTestDispatcher(t)

	out := d.Dispatch(context.Background(), OpGet,
		[]byte(fmt.Sprintf(`{"target":%q}`, "ghost")))

	var wire map[string]any
	require.NoError(t, json.Unmarshal(out, &wire))
	assert.Equal(t, true, wire["error"])
	assert.Equal(t, "not_found", wire["kind"])
	assert.NotEmpty(t, wire["message"])
}
