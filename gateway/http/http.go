// Package http serves the node's operations over HTTP. Every RPC
// operation is reachable as POST /rpc/<op> with the same JSON bodies
// the NATS binding uses; /metrics, /healthz and the /watch websocket
// are HTTP-only surfaces.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/radiantone/emerge/errors"
	"github.com/radiantone/emerge/gateway"
	"github.com/radiantone/emerge/metric"
	"github.com/radiantone/emerge/namespace"
)

// Config holds the HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// MaxRequestSize limits request body size in bytes. Default 1MB.
	MaxRequestSize int64

	// RateLimit caps requests per second across all clients; 0 disables
	// limiting. RateBurst defaults to the limit when unset.
	RateLimit float64
	RateBurst int

	// WatchBuffer is the per-client event buffer for /watch.
	WatchBuffer int
}

// Deps are the subsystems the server exposes.
type Deps struct {
	Dispatcher *gateway.Dispatcher
	Store      *namespace.Store
	Metrics    *metric.Registry
	Logger     *slog.Logger

	// Playground, when set, is served on GET /graphql.
	Playground http.Handler
}

// Server is the HTTP binding of the node.
type Server struct {
	cfg        Config
	dispatcher *gateway.Dispatcher
	store      *namespace.Store
	metrics    *metric.Registry
	logger     *slog.Logger
	playground http.Handler
	limiter    *rate.Limiter
	upgrader   websocket.Upgrader
	server     *http.Server
}

// New creates the server. Call Start to begin listening.
func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = 1 << 20
	}
	if cfg.WatchBuffer <= 0 {
		cfg.WatchBuffer = 64
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		metrics:    deps.Metrics,
		logger:     logger,
		playground: deps.Playground,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit)
			if burst < 1 {
				burst = 1
			}
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	mux := http.NewServeMux()
	s.register(mux)
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rpc/{op}", s.handleRPC)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /watch", s.handleWatch)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.playground != nil {
		mux.Handle("GET /graphql", s.playground)
		mux.HandleFunc("POST /graphql", s.handleGraphQLPost)
	}
}

// Start listens until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http gateway listening", "addr", s.cfg.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.WrapKind(errors.KindInternal, err, "HTTPServer", "Start", "listen failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.WrapKind(errors.KindInternal, err, "HTTPServer", "Start", "shutdown failed")
	}
	return nil
}

// requestID extracts the tracing id from headers or generates one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")
	s.serveOp(w, r, op)
}

func (s *Server) handleGraphQLPost(w http.ResponseWriter, r *http.Request) {
	s.serveOp(w, r, gateway.OpGraphQL)
}

func (s *Server) serveOp(w http.ResponseWriter, r *http.Request, op string) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests,
			errors.MarshalWire(errors.Internal("HTTPServer", op, "rate limit exceeded")))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxRequestSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			errors.MarshalWire(errors.Internal("HTTPServer", op, "unreadable request body")))
		return
	}
	if int64(len(body)) > s.cfg.MaxRequestSize {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			errors.MarshalWire(errors.Internal("HTTPServer", op, "request body too large")))
		return
	}

	reqID := requestID(r)
	resp := s.dispatcher.Dispatch(r.Context(), op, body)

	status := http.StatusOK
	if fault := errors.UnmarshalWire(resp); fault != nil {
		status = statusFor(errors.KindOf(fault))
		s.logger.Debug("rpc fault", "op", op, "request_id", reqID, "status", status)
	}
	w.Header().Set("X-Request-ID", reqID)
	writeJSON(w, status, resp)
}

// statusFor maps fault kinds to HTTP status codes.
func statusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindInvalidPath, errors.KindNoSuchParent, errors.KindUnknownType,
		errors.KindBadRequest:
		return http.StatusBadRequest
	case errors.KindAlreadyExists:
		return http.StatusConflict
	case errors.KindNoSuchMethod:
		return http.StatusNotFound
	case errors.KindExecution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.store.Stats()
	body, _ := json.Marshal(map[string]any{
		"status":      "ok",
		"objects":     stats.Objects,
		"directories": stats.Directories,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, body)
}

// handleWatch streams namespace change events over a websocket until
// the client disconnects.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("watch upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.store.Watch(s.cfg.WatchBuffer)
	defer cancel()
	if s.metrics != nil {
		s.metrics.WatchClients.Inc()
		defer s.metrics.WatchClients.Dec()
	}

	// Reads are discarded; their only purpose is detecting disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				if !strings.Contains(err.Error(), "close") {
					s.logger.Debug("watch write failed", "error", err)
				}
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
