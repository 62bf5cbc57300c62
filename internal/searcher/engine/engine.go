// Package engine holds the live index snapshot and runs queries against it.
// Reloads build a complete new snapshot and swap it in atomically; queries
// already running keep the snapshot they started with.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/tracing"
)

// Snapshot is an immutable, query-ready view of one index build.
type Snapshot struct {
	Version   string
	LoadedAt  time.Time
	Set       *index.Set
	Processor *query.Processor
	Retriever *retrieval.Retriever
	Ranker    *ranker.Ranker
	byURL     map[string]*catalog.Document
}

// NewSnapshot prepares set for querying.
func NewSnapshot(version string, set *index.Set, synonyms index.Synonyms, stopwords []string, params ranker.Params) *Snapshot {
	s := &Snapshot{
		Version:   version,
		LoadedAt:  time.Now(),
		Set:       set,
		Processor: query.NewProcessor(stopwords, synonyms),
		Retriever: retrieval.New(set),
		Ranker:    ranker.New(params, set),
		byURL:     make(map[string]*catalog.Document, len(set.Documents)),
	}
	for i := range set.Documents {
		s.byURL[set.Documents[i].URL] = &set.Documents[i]
	}
	return s
}

// Document returns the document stored under url.
func (s *Snapshot) Document(url string) (*catalog.Document, bool) {
	doc, ok := s.byURL[url]
	return doc, ok
}

// Request is one search.
type Request struct {
	Query string
	// Type is the raw search_type; unknown values search as "any".
	Type  string
	Limit int
	Save  bool
}

// SearchObserver receives per-query measurements. pkg/metrics implements it.
type SearchObserver interface {
	ObserveSearch(mode string, duration time.Duration, candidates, returned int)
}

type Options struct {
	IndexDir string
	Params   ranker.Params
	// Stopwords defaults to query.DefaultStopwords.
	Stopwords []string
	// Synonyms overrides the table stored with the build.
	Synonyms   index.Synonyms
	MaxResults int
	// Saver writes saved searches; with none, save requests are rejected.
	Saver    *results.Saver
	Tracer   *tracing.Tracer
	Observer SearchObserver
}

type Engine struct {
	opts     Options
	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	logger   *slog.Logger
}

// New returns an engine with no snapshot. Call Reload or Swap before
// searching.
func New(opts Options) *Engine {
	if opts.Stopwords == nil {
		opts.Stopwords = query.DefaultStopwords
	}
	return &Engine{
		opts:   opts,
		logger: slog.Default().With("component", "search-engine"),
	}
}

// Open creates an engine and loads the current build from opts.IndexDir.
func Open(opts Options) (*Engine, error) {
	e := New(opts)
	if _, err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload loads the current build from disk and swaps it in. On failure the
// previous snapshot stays live.
func (e *Engine) Reload(ctx context.Context) (*Snapshot, error) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := store.Open(e.opts.IndexDir)
	if err != nil {
		e.logger.Error("index reload failed, keeping current snapshot", "error", err)
		return nil, fmt.Errorf("loading index from %s: %w", e.opts.IndexDir, err)
	}
	if prev := e.current.Load(); prev != nil && b.Manifest.Version != "" && prev.Version == b.Manifest.Version {
		e.logger.Info("index already current", "version", prev.Version)
		return prev, nil
	}
	synonyms := b.Synonyms
	if e.opts.Synonyms != nil {
		synonyms = e.opts.Synonyms
	}
	snap := NewSnapshot(b.Manifest.Version, b.Set, synonyms, e.opts.Stopwords, e.opts.Params)
	e.Swap(snap)
	return snap, nil
}

// Swap installs snap as the live snapshot.
func (e *Engine) Swap(snap *Snapshot) {
	prev := e.current.Swap(snap)
	attrs := []any{"version", snap.Version, "documents", len(snap.Set.Documents)}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.Version)
	}
	e.logger.Info("index snapshot swapped", attrs...)
}

// Snapshot returns the live snapshot, or nil before the first load.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Search runs req against the live snapshot.
func (e *Engine) Search(ctx context.Context, req Request) (results.Envelope, error) {
	if req.Save && e.opts.Saver == nil {
		return results.Envelope{}, fmt.Errorf("%w: result saving is disabled", apperrors.ErrInvalidInput)
	}
	snap := e.current.Load()
	if snap == nil {
		return results.Envelope{}, apperrors.ErrIndexNotLoaded
	}
	start := time.Now()
	log := logger.FromContext(ctx)

	ctx, root := e.opts.Tracer.Start(ctx, "search", logger.RequestID(ctx))
	defer func() {
		root.End()
		root.Log()
	}()
	root.SetAttr("query", req.Query)

	_, span := tracing.StartChildSpan(ctx, "process")
	plan, ok := snap.Processor.Parse(req.Query, req.Type)
	span.SetAttr("tokens", len(plan.Tokens))
	span.End()
	if !ok {
		log.Warn("unknown search type, using any", "search_type", req.Type)
	}

	_, span = tracing.StartChildSpan(ctx, "retrieve")
	candidates := snap.Retriever.Retrieve(plan)
	span.SetAttr("candidates", len(candidates))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "rank")
	docs := make([]*catalog.Document, 0, len(candidates))
	for url := range candidates {
		if doc, ok := snap.byURL[url]; ok {
			docs = append(docs, doc)
		}
	}
	scored := snap.Ranker.Rank(docs, plan.Tokens, plan.Normalized)
	span.End()

	limit := req.Limit
	if e.opts.MaxResults > 0 && (limit <= 0 || limit > e.opts.MaxResults) {
		limit = e.opts.MaxResults
	}
	env := results.Assemble(results.Request{
		Query:          req.Query,
		Mode:           plan.Mode,
		TotalDocuments: len(snap.Set.Documents),
		Limit:          limit,
	}, scored)

	if req.Save {
		e.opts.Saver.Save(env)
	}
	duration := time.Since(start)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveSearch(string(plan.Mode), duration, len(candidates), len(env.Results))
	}
	log.Debug("search executed",
		"query", req.Query,
		"search_type", plan.Mode,
		"tokens", plan.Tokens,
		"candidates", len(candidates),
		"results", len(env.Results),
		"duration", duration,
	)
	return env, nil
}

// Stats describes the live snapshot.
type Stats struct {
	Version  string      `json:"version"`
	LoadedAt time.Time   `json:"loaded_at"`
	Index    index.Stats `json:"index"`
}

func (e *Engine) Stats() (Stats, error) {
	snap := e.current.Load()
	if snap == nil {
		return Stats{}, apperrors.ErrIndexNotLoaded
	}
	return Stats{
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Index:    snap.Set.Stats(),
	}, nil
}
