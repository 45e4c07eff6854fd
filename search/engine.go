package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/radiantone/emerge/envelope"
	"github.com/radiantone/emerge/namespace"
)

// defaultScanWorkers bounds decode parallelism during a full scan.
const defaultScanWorkers = 8

// Engine evaluates predicates and field queries against one namespace
// store.
type Engine struct {
	store     *namespace.Store
	registry  *envelope.Registry
	evaluator *Evaluator
	root      string
	workers   int
	logger    *slog.Logger
}

// Config configures an Engine.
type Config struct {
	// Root is the scan root for predicate searches (default "/").
	Root string
	// Workers bounds decode parallelism (default 8).
	Workers int
	Logger  *slog.Logger
}

// NewEngine creates a search engine over the given store and type
// registry.
func NewEngine(store *namespace.Store, registry *envelope.Registry, cfg Config) *Engine {
	if cfg.Root == "" {
		cfg.Root = namespace.RootPath
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultScanWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		store:     store,
		registry:  registry,
		evaluator: NewEvaluator(),
		root:      cfg.Root,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
	}
}

// Search scans every record reachable from the engine's root, decodes each
// candidate, evaluates the predicate, and returns matching ids sorted
// ascending. Records whose envelope cannot be decoded are logged and
// skipped rather than aborting the scan. A malformed predicate fails the
// whole call.
func (e *Engine) Search(ctx context.Context, pred Predicate) ([]string, error) {
	if err := pred.Validate(); err != nil {
		return nil, err
	}

	records, err := e.store.Records(e.root)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		matches []string
	)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)

	for _, rec := range records {
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			fields, ok := e.candidateFields(rec)
			if !ok {
				return nil
			}

			matched, err := e.evaluator.Evaluate(fields, pred)
			if err != nil {
				return err
			}
			if matched {
				mu.Lock()
				matches = append(matches, rec.ID)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(matches)
	return matches, nil
}

// SearchText resolves a field query against the store's maintained index.
// No candidate is decoded; matching is exact.
func (e *Engine) SearchText(field, query string) []string {
	return e.store.SearchText(field, query)
}

// candidateFields decodes one record and flattens it into the field map
// predicates evaluate against: record metadata first, then the decoded
// object's payload fields.
func (e *Engine) candidateFields(rec *namespace.Record) (map[string]any, bool) {
	obj, err := envelope.DecodeBytes(rec.Data, e.registry)
	if err != nil {
		e.logger.Warn("skipping undecodable record during scan",
			"id", rec.ID, "type", rec.Type.String(), "error", err)
		return nil, false
	}

	payload, err := obj.MarshalJSON()
	if err != nil {
		e.logger.Warn("skipping unmarshalable record during scan", "id", rec.ID, "error", err)
		return nil, false
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		e.logger.Warn("skipping non-object payload during scan", "id", rec.ID, "error", err)
		return nil, false
	}

	// Record metadata is addressable alongside payload fields; payload
	// fields win on collision except for identity fields.
	if _, ok := fields["id"]; !ok {
		fields["id"] = rec.ID
	}
	fields["path"] = rec.Path
	if _, ok := fields["name"]; !ok {
		fields["name"] = rec.Name
	}

	return fields, true
}
