package node

import (
	"context"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/radiantone/emerge/config"
	"github.com/radiantone/emerge/engine"
	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/gateway"
	"github.com/radiantone/emerge/gateway/graphql"
	gatewayhttp "github.com/radiantone/emerge/gateway/http"
	"github.com/radiantone/emerge/metric"
	"github.com/radiantone/emerge/namespace"
	"github.com/radiantone/emerge/natsclient"
	"github.com/radiantone/emerge/search"
)

// Node is one running emerge instance. Every subsystem hangs off the
// Node; there is no package-level state, so tests can run several
// nodes side by side.
type Node struct {
	cfg      config.NodeConfig
	logger   *slog.Logger
	store    *namespace.Store
	registry *envelope.Registry
	engine   *engine.Engine
	search   *search.Engine
	metrics  *metric.Registry
	dispatch *gateway.Dispatcher
}

// New assembles a node from its configuration. Registered envelope
// types should be added to Registry before Run.
func New(cfg config.NodeConfig) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Log)

	store := namespace.NewStore(namespace.Options{
		RemovePolicy: removePolicy(cfg.Store.RemovePolicy),
		MkdirPolicy:  mkdirPolicy(cfg.Store.MkdirPolicy),
		Logger:       logger,
	})
	registry := envelope.NewRegistry()

	exec := engine.New(store, registry, engine.Config{
		DefaultMode: persistMode(cfg.Engine.PersistMode),
		Logger:      logger,
	})
	searcher := search.NewEngine(store, registry, search.Config{
		Root:    cfg.Search.Root,
		Workers: cfg.Search.Workers,
		Logger:  logger,
	})
	metrics := metric.NewRegistry()

	dispatch := gateway.NewDispatcher(gateway.Config{
		Store:    store,
		Engine:   exec,
		Search:   searcher,
		Registry: registry,
		GraphQL:  graphql.NewExecutor(store, searcher, logger),
		Metrics:  metrics,
		Logger:   logger,
		NodeName: cfg.Name,
	})

	return &Node{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		engine:   exec,
		search:   searcher,
		metrics:  metrics,
		dispatch: dispatch,
	}, nil
}

// Registry exposes the node's envelope type registry so callers can
// register their object types before serving.
func (n *Node) Registry() *envelope.Registry { return n.registry }

// Store exposes the namespace store, mainly for tests and embedding.
func (n *Node) Store() *namespace.Store { return n.store }

// Dispatcher exposes the operation dispatcher for in-process clients.
func (n *Node) Dispatcher() *gateway.Dispatcher { return n.dispatch }

// Run serves every configured transport until ctx is canceled or a
// binding fails. It blocks.
func (n *Node) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	if n.cfg.NATS.URL != "" {
		nc, err := n.connectNATS(ctx)
		if err != nil {
			return err
		}
		binding := gateway.BindNATS(nc.Conn(), n.dispatch,
			gateway.WithNATSLogger(n.logger))
		if err := binding.Start(); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = nc.Close(closeCtx)
			return err
		}
		group.Go(func() error {
			<-ctx.Done()
			if err := binding.Stop(); err != nil {
				n.logger.Warn("nats binding stop failed", "error", err)
			}
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return nc.Close(closeCtx)
		})
	}

	if n.cfg.HTTP.Addr != "" {
		server := gatewayhttp.New(gatewayhttp.Config{
			Addr:           n.cfg.HTTP.Addr,
			MaxRequestSize: n.cfg.HTTP.MaxRequestSize,
			RateLimit:      n.cfg.HTTP.RateLimit,
			RateBurst:      n.cfg.HTTP.RateBurst,
		}, gatewayhttp.Deps{
			Dispatcher: n.dispatch,
			Store:      n.store,
			Metrics:    n.metrics,
			Logger:     n.logger,
			Playground: graphql.Playground(),
		})
		group.Go(func() error { return server.Start(ctx) })
	}

	n.logger.Info("node running", "name", n.cfg.Name,
		"nats", n.cfg.NATS.URL, "http", n.cfg.HTTP.Addr)
	return group.Wait()
}

func (n *Node) connectNATS(ctx context.Context) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(n.cfg.Name),
		natsclient.WithLogger(n.logger),
	}
	if n.cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(n.cfg.NATS.Username, n.cfg.NATS.Password))
	}
	if n.cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(n.cfg.NATS.Token))
	}

	nc, err := natsclient.NewClient(n.cfg.NATS.URL, opts...)
	if err != nil {
		return nil, err
	}
	if err := nc.Connect(ctx); err != nil {
		return nil, err
	}
	return nc, nil
}

// NewLogger builds the node's slog logger from its log configuration.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func removePolicy(s string) namespace.RemovePolicy {
	if s == "cascade" {
		return namespace.RemoveCascade
	}
	return namespace.RemoveFailNonEmpty
}

func mkdirPolicy(s string) namespace.MkdirPolicy {
	if s == "require_parent" {
		return namespace.MkdirRequireParent
	}
	return namespace.MkdirImplicitParents
}

func persistMode(s string) engine.Mode {
	if s == "transient" {
		return engine.ModeTransient
	}
	return engine.ModePersistent
}
