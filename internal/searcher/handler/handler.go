package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/logger"
)

// SearchEngine is the subset of *engine.Engine the handler needs.
type SearchEngine interface {
	Search(ctx context.Context, req engine.Request) (results.Envelope, error)
	Reload(ctx context.Context) (*engine.Snapshot, error)
	Stats() (engine.Stats, error)
	Snapshot() *engine.Snapshot
}

// Observer receives cache and reload outcomes. *metrics.Metrics implements it.
type Observer interface {
	ObserveCache(hit bool)
	ObserveReload(documents int, err error)
}

type Options struct {
	// Cache is optional; nil disables result caching.
	Cache *cache.QueryCache
	// Tracker is optional.
	Tracker      analytics.Tracker
	Observer     Observer
	DefaultLimit int
	MaxResults   int
}

type Handler struct {
	engine       SearchEngine
	cache        *cache.QueryCache
	tracker      analytics.Tracker
	observer     Observer
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(eng SearchEngine, opts Options) *Handler {
	return &Handler{
		engine:       eng,
		cache:        opts.Cache,
		tracker:      opts.Tracker,
		observer:     opts.Observer,
		defaultLimit: opts.DefaultLimit,
		maxResults:   opts.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// searchOutcome is an answered query plus how it was answered.
type searchOutcome struct {
	Envelope results.Envelope
	CacheHit bool
	Latency  time.Duration
}

// run answers req through the cache when one is configured. Save requests
// always execute so the envelope reaches disk.
func (h *Handler) run(ctx context.Context, req engine.Request) (searchOutcome, error) {
	start := time.Now()
	snap := h.engine.Snapshot()
	if snap == nil {
		return searchOutcome{}, apperrors.ErrIndexNotLoaded
	}
	req.Limit = h.clampLimit(req.Limit)

	var (
		env results.Envelope
		hit bool
		err error
	)
	if h.cache != nil && !req.Save {
		mode, _ := query.ParseMode(req.Type)
		key := cache.Key{
			Version: snap.Version,
			Mode:    string(mode),
			Limit:   req.Limit,
			Query:   req.Query,
		}
		env, hit, err = h.cache.GetOrCompute(ctx, key, func() (results.Envelope, error) {
			return h.engine.Search(ctx, req)
		})
		if h.observer != nil && err == nil {
			h.observer.ObserveCache(hit)
		}
	} else {
		env, err = h.engine.Search(ctx, req)
	}
	if err != nil {
		return searchOutcome{}, err
	}

	out := searchOutcome{Envelope: env, CacheHit: hit, Latency: time.Since(start)}
	if h.tracker != nil {
		h.tracker.TrackSearch(analytics.SearchEvent{
			Query:             req.Query,
			SearchType:        string(env.Metadata.SearchType),
			FilteredDocuments: env.Metadata.FilteredDocuments,
			Returned:          len(env.Results),
			LatencyMs:         float64(out.Latency.Microseconds()) / 1000,
			CacheHit:          hit,
			IndexVersion:      snap.Version,
			Timestamp:         time.Now().UTC(),
			RequestID:         logger.RequestID(ctx),
		})
	}
	return out, nil
}

func (h *Handler) clampLimit(limit int) int {
	if limit < 0 {
		limit = h.defaultLimit
	}
	if h.maxResults > 0 && (limit == 0 || limit > h.maxResults) {
		limit = h.maxResults
	}
	return limit
}

// Search handles GET /api/v1/search?q=&type=&limit=&save=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	q := params.Get("q")
	if strings.TrimSpace(q) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	// -1 selects the default limit inside run.
	limit := -1
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	save := false
	if saveStr := params.Get("save"); saveStr != "" {
		parsed, err := strconv.ParseBool(saveStr)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "save must be a boolean")
			return
		}
		save = parsed
	}

	out, err := h.run(ctx, engine.Request{
		Query: q,
		Type:  params.Get("type"),
		Limit: limit,
		Save:  save,
	})
	if err != nil {
		log.Error("search failed", "query", q, "error", err)
		h.writeAppError(w, err, "search failed")
		return
	}

	log.Info("search completed",
		"query", q,
		"search_type", out.Envelope.Metadata.SearchType,
		"filtered", out.Envelope.Metadata.FilteredDocuments,
		"returned", len(out.Envelope.Results),
		"cache_hit", out.CacheHit,
		"latency", out.Latency,
	)
	if out.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, http.StatusOK, out.Envelope)
}

// Reload handles POST /api/v1/index/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reload(r.Context())
	if err != nil {
		h.writeAppError(w, err, "index reload failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version":   snap.Version,
		"documents": len(snap.Set.Documents),
		"loaded_at": snap.LoadedAt,
	})
}

func (h *Handler) reload(ctx context.Context) (*engine.Snapshot, error) {
	snap, err := h.engine.Reload(ctx)
	if h.observer != nil {
		docs := 0
		if snap != nil {
			docs = len(snap.Set.Documents)
		}
		h.observer.ObserveReload(docs, err)
	}
	if err != nil {
		logger.FromContext(ctx).Error("index reload failed", "error", err)
		return nil, err
	}
	return snap, nil
}

// HandleIndexComplete reloads the engine when the indexer announces a new
// build. It is a kafka.MessageHandler.
func (h *Handler) HandleIndexComplete(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[indexer.IndexCompleteEvent](value)
	if err != nil {
		return err
	}
	if snap := h.engine.Snapshot(); snap != nil && snap.Version == event.Version {
		return nil
	}
	h.logger.Info("index build announced", "version", event.Version, "documents", event.Documents)
	if _, err := h.reload(ctx); err != nil {
		if errors.Is(err, apperrors.ErrIndexMissing) {
			return fmt.Errorf("build %s not readable: %w: %w", event.Version, kafka.ErrSkip, err)
		}
		return err
	}
	return nil
}

// HandleCacheInvalidate flushes the cache when an invalidate event arrives
// on the cache-invalidate topic. It is a kafka.MessageHandler.
func (h *Handler) HandleCacheInvalidate(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[cache.InvalidateEvent](value)
	if err != nil {
		return err
	}
	if h.cache == nil {
		return nil
	}
	deleted, err := h.cache.Invalidate(ctx)
	if err != nil {
		return err
	}
	h.logger.Info("cache invalidated by event", "reason", event.Reason, "requested_at", event.RequestedAt, "keys_deleted", deleted)
	return nil
}

// IndexStats handles GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats()
	if err != nil {
		h.writeAppError(w, err, "index stats unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  stats.Breaker,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error, fallback string) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = fallback
	}
	h.writeError(w, status, message)
}
