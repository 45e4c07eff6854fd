package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiantone/emerge/client"
	"github.com/radiantone/emerge/config"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/testutil"
)

func testConfig() config.NodeConfig {
	cfg := config.DefaultNodeConfig()
	cfg.Name = "test-node"
	cfg.NATS.URL = ""
	cfg.HTTP.Addr = ":0"
	return cfg
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Name = ""

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNodeServesOperationsInProcess(t *testing.T) {
	n, err := New(testConfig())
	require.NoError(t, err)

	require.NoError(t, n.Registry().Register(&envelope.Registration{
		Name:    "inventory-item",
		Version: "v1",
		Factory: func() envelope.Object { return &testutil.InventoryItem{} },
	}))

	c := client.New(&testutil.LocalTransport{Target: n.Dispatcher()},
		client.WithRegistry(n.Registry()))
	ctx := context.Background()

	hello, err := c.Hello(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, "test-node", hello.Node)

	require.NoError(t, c.Mkdir(ctx, "/stock"))
	item := &testutil.InventoryItem{ID: "inv:1", Name: "widget", UnitPrice: 2.5, QuantityOnHand: 4}
	require.NoError(t, c.Store(ctx, item.ID, "/stock", "widget", item))

	out, err := c.Execute(ctx, "inv:1", "total_cost")
	require.NoError(t, err)
	assert.JSONEq(t, "10", string(out))

	entries, err := c.List(ctx, "/stock", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "widget", entries[0].Name)
}

func TestNodePolicyMapping(t *testing.T) {
	cfg := testConfig()
	cfg.Store.RemovePolicy = "cascade"
	cfg.Store.MkdirPolicy = "require_parent"

	n, err := New(cfg)
	require.NoError(t, err)

	// require_parent refuses to invent missing parents.
	assert.Error(t, n.Store().Mkdir("/a/b/c"))
	require.NoError(t, n.Store().Mkdir("/a"))

	// cascade lets a populated directory go in one call.
	require.NoError(t, n.Store().Mkdir("/a/b"))
	require.NoError(t, n.Store().Remove("/a"))
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger := NewLogger(config.LogConfig{Level: level, Format: "json"})
		require.NotNil(t, logger, "level %q", level)
	}
}
