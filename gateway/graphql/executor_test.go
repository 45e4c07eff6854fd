package graphql

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/search"
	"github.com/radiantone/emerge/testutil"
)

func newTestExecutor(t *testing.T) (*Executor, *namespace.Store) {
	t.Helper()
	store := namespace.NewStore(namespace.Options{})
	reg := testutil.Registry()
	require.NoError(t, store.Mkdir("/inventory"))

	for _, item := range []*testutil.InventoryItem{
		{ID: "widget1", Name: "widget", UnitPrice: 3.0, QuantityOnHand: 10},
		{ID: "gold1", Name: "ingot", UnitPrice: 900, QuantityOnHand: 2},
	} {
		data, err := envelope.EncodeBytes(item)
		require.NoError(t, err)
		require.NoError(t, store.Put(&namespace.Record{
			ID: item.ID, Path: "/inventory", Name: item.Name,
			Type: item.Descriptor(), Data: data,
		}))
	}

	return NewExecutor(store, search.NewEngine(store, reg, search.Config{}), nil), store
}

func execute(t *testing.T, e *Executor, query string, vars map[string]any) map[string]any {
	t.Helper()
	data, errs := e.Execute(context.Background(), query, vars)
	require.Empty(t, errs)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestQueryObject(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e, `{ object(target: "widget1") { id name path kind type size } }`, nil)
	obj := out["object"].(map[string]any)
	assert.Equal(t, "widget1", obj["id"])
	assert.Equal(t, "/inventory/widget", obj["path"])
	assert.Equal(t, "object", obj["kind"])
	assert.Equal(t, "inventory-item", obj["type"])
	assert.Greater(t, obj["size"], 0.0)
}

func TestQueryObjectByPathAndVariable(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e,
		`query Get($t: String!) { object(target: $t) { name } }`,
		map[string]any{"t": "/inventory/ingot"})
	obj := out["object"].(map[string]any)
	assert.Equal(t, "ingot", obj["name"])
}

func TestQueryObjectNotFoundIsNull(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e, `{ object(target: "ghost") { name } }`, nil)
	assert.Nil(t, out["object"])
}

func TestQueryObjects(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e, `{ objects(path: "/inventory") { name kind } }`, nil)
	entries := out["objects"].([]any)
	require.Len(t, entries, 2)
	// Listings sort by name.
	assert.Equal(t, "ingot", entries[0].(map[string]any)["name"])
	assert.Equal(t, "widget", entries[1].(map[string]any)["name"])
}

func TestQueryObjectsDirectoryEntry(t *testing.T) {
	e, store := newTestExecutor(t)
	require.NoError(t, store.Mkdir("/classes"))

	out := execute(t, e, `{ objects(path: "/") { name kind id } }`, nil)
	entries := out["objects"].([]any)
	require.Len(t, entries, 2)
	classes := entries[0].(map[string]any)
	assert.Equal(t, "classes", classes["name"])
	assert.Equal(t, "directory", classes["kind"])
	assert.Nil(t, classes["id"])
}

func TestQuerySearch(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e, `{ search(field: "unit_price", operator: "lt", value: "10") { id } }`, nil)
	results := out["search"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "widget1", results[0].(map[string]any)["id"])

	// Default operator is equality.
	out = execute(t, e, `{ search(field: "name", value: "ingot") { id } }`, nil)
	results = out["search"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "gold1", results[0].(map[string]any)["id"])
}

func TestQueryStats(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e, `{ stats { objects directories } }`, nil)
	stats := out["stats"].(map[string]any)
	assert.Equal(t, 2.0, stats["objects"])
	assert.Equal(t, 2.0, stats["directories"])
}

func TestQueryAliases(t *testing.T) {
	e, _ := newTestExecutor(t)

	out := execute(t, e, `{ w: object(target: "widget1") { n: name } }`, nil)
	obj := out["w"].(map[string]any)
	assert.Equal(t, "widget", obj["n"])
}

func TestInvalidDocument(t *testing.T) {
	e, _ := newTestExecutor(t)

	data, errs := e.Execute(context.Background(), `{ nonsense { id } }`, nil)
	assert.Nil(t, data)
	require.NotEmpty(t, errs)

	_, errs = e.Execute(context.Background(), `mutation { anything }`, nil)
	require.NotEmpty(t, errs)

	_, errs = e.Execute(context.Background(), `{ object(target: `, nil)
	require.NotEmpty(t, errs)
}
