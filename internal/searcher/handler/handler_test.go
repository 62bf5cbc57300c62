package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapBackend) FlushByPattern(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string][]byte)
	return n, nil
}

type recordingTracker struct {
	mu       sync.Mutex
	searches []analytics.SearchEvent
}

func (r *recordingTracker) TrackSearch(e analytics.SearchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searches = append(r.searches, e)
}

func (r *recordingTracker) TrackIndex(analytics.IndexEvent) {}

type recordingObserver struct {
	hits, misses, reloads, failedReloads int
}

func (o *recordingObserver) ObserveCache(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func (o *recordingObserver) ObserveReload(_ int, err error) {
	if err != nil {
		o.failedReloads++
		return
	}
	o.reloads++
}

func rating(v float64) *float64 { return &v }

func corpus() []catalog.Document {
	return []catalog.Document{
		{
			URL:         "u1",
			Title:       "Black Shirt",
			Description: "cotton black shirt",
			Reviews:     []catalog.Review{{Rating: rating(5)}},
		},
		{URL: "u2", Title: "White Shirt", Description: "linen shirt"},
		{
			URL:         "u3",
			Title:       "Chocolate Box",
			Description: "box of chocolate candy",
			Features:    catalog.Features{"made in": "USA"},
		},
	}
}

func publish(t *testing.T, root string, docs []catalog.Document) store.Manifest {
	t.Helper()
	set, err := indexer.NewBuilder(2).Build(context.Background(), docs)
	require.NoError(t, err)
	m, err := store.NewWriter(root, 0).Write(set, index.DefaultOriginSynonyms())
	require.NoError(t, err)
	return m
}

type fixture struct {
	root     string
	engine   *engine.Engine
	handler  *Handler
	tracker  *recordingTracker
	observer *recordingObserver
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	root := t.TempDir()
	publish(t, root, corpus())
	saver := results.NewSaver(t.TempDir(), 4, time.Second)
	saver.Start()
	t.Cleanup(saver.Close)
	eng, err := engine.Open(engine.Options{IndexDir: root, Params: ranker.DefaultParams(), MaxResults: 50, Saver: saver})
	require.NoError(t, err)

	f := &fixture{root: root, engine: eng, tracker: &recordingTracker{}, observer: &recordingObserver{}}
	opts := Options{Tracker: f.tracker, Observer: f.observer, DefaultLimit: 10, MaxResults: 50}
	if withCache {
		opts.Cache = cache.New(&mapBackend{data: make(map[string][]byte)}, time.Minute)
	}
	f.handler = New(eng, opts)
	return f
}

func (f *fixture) get(t *testing.T, target string) (*httptest.ResponseRecorder, results.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env results.Envelope
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestSearchReturnsEnvelope(t *testing.T) {
	f := newFixture(t, false)

	rec, env := f.get(t, "/api/v1/search?q=black+shirt&type=all")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "black shirt", env.Metadata.Query)
	assert.EqualValues(t, "all", env.Metadata.SearchType)
	assert.Equal(t, 3, env.Metadata.TotalDocuments)
	require.Len(t, env.Results, 1)
	assert.Equal(t, "u1", env.Results[0].URL)

	require.Len(t, f.tracker.searches, 1)
	ev := f.tracker.searches[0]
	assert.Equal(t, "black shirt", ev.Query)
	assert.Equal(t, "all", ev.SearchType)
	assert.Equal(t, 1, ev.Returned)
	assert.NotEmpty(t, ev.IndexVersion)
}

func TestSearchUnknownTypeFallsBackToAny(t *testing.T) {
	f := newFixture(t, false)
	rec, env := f.get(t, "/api/v1/search?q=shirt&type=fuzzy")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, "any", env.Metadata.SearchType)
	assert.Len(t, env.Results, 2)
}

func TestSearchLimit(t *testing.T) {
	f := newFixture(t, false)
	rec, env := f.get(t, "/api/v1/search?q=shirt&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.Results, 1)
	assert.Equal(t, 2, env.Metadata.FilteredDocuments)
}

func TestSearchValidation(t *testing.T) {
	f := newFixture(t, false)
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=++",
		"/api/v1/search?q=shirt&limit=-1",
		"/api/v1/search?q=shirt&limit=abc",
		"/api/v1/search?q=shirt&save=maybe",
	} {
		rec, _ := f.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	assert.Empty(t, f.tracker.searches)
}

func TestSearchWithoutIndex(t *testing.T) {
	h := New(engine.New(engine.Options{IndexDir: t.TempDir()}), Options{DefaultLimit: 10})
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.IndexStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true)

	rec, first := f.get(t, "/api/v1/search?q=shirt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec, second := f.get(t, "/api/v1/search?q=shirt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.True(t, first.Metadata.Timestamp.Equal(second.Metadata.Timestamp))
	assert.Equal(t, 1, f.observer.hits)
	assert.Equal(t, 1, f.observer.misses)
	assert.True(t, f.tracker.searches[1].CacheHit)

	// a different mode is a different key
	rec, _ = f.get(t, "/api/v1/search?q=shirt&type=all")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// save requests never read the cache
	rec, _ = f.get(t, "/api/v1/search?q=shirt&save=true")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestSearchSaveWhenSavingDisabled(t *testing.T) {
	root := t.TempDir()
	publish(t, root, corpus())
	eng, err := engine.Open(engine.Options{IndexDir: root, Params: ranker.DefaultParams()})
	require.NoError(t, err)
	h := New(eng, Options{DefaultLimit: 10})

	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt&save=true", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "saving is disabled")

	rec = httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t, true)
	f.get(t, "/api/v1/search?q=shirt")
	f.get(t, "/api/v1/search?q=shirt")

	rec := httptest.NewRecorder()
	f.handler.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["hits"])
	assert.Equal(t, "50.0%", stats["hit_rate"])
	breaker, ok := stats["breaker"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "closed", breaker["state"])

	rec = httptest.NewRecorder()
	f.handler.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keys_deleted":1`)

	rec, _ = f.get(t, "/api/v1/search?q=shirt")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
}

func TestHandleCacheInvalidate(t *testing.T) {
	f := newFixture(t, true)
	f.get(t, "/api/v1/search?q=shirt")

	value, _ := json.Marshal(cache.InvalidateEvent{Reason: "test", RequestedAt: time.Now()})
	require.NoError(t, f.handler.HandleCacheInvalidate(context.Background(), nil, value))

	rec, _ := f.get(t, "/api/v1/search?q=shirt")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	err := f.handler.HandleCacheInvalidate(context.Background(), nil, []byte("nope"))
	assert.ErrorIs(t, err, kafka.ErrSkip)
}

func TestCacheEndpointsDisabled(t *testing.T) {
	f := newFixture(t, false)
	rec := httptest.NewRecorder()
	f.handler.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = httptest.NewRecorder()
	f.handler.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReloadPicksUpNewBuild(t *testing.T) {
	f := newFixture(t, false)
	before := f.engine.Snapshot().Version

	docs := append(corpus(), catalog.Document{URL: "u4", Title: "Grey Shirt", Description: "wool"})
	m := publish(t, f.root, docs)

	rec := httptest.NewRecorder()
	f.handler.Reload(rec, httptest.NewRequest(http.MethodPost, "/api/v1/index/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), m.Version)
	assert.NotEqual(t, before, f.engine.Snapshot().Version)
	assert.Equal(t, 1, f.observer.reloads)

	rec = httptest.NewRecorder()
	f.handler.IndexStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats engine.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.Index.Documents)
}

func TestHandleIndexComplete(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	current := f.engine.Snapshot().Version
	value, _ := json.Marshal(indexer.IndexCompleteEvent{Version: current, Documents: 3})
	require.NoError(t, f.handler.HandleIndexComplete(ctx, nil, value))
	assert.Equal(t, 0, f.observer.reloads)

	m := publish(t, f.root, corpus()[:2])
	value, _ = json.Marshal(indexer.IndexCompleteEvent{Version: m.Version, Documents: 2})
	require.NoError(t, f.handler.HandleIndexComplete(ctx, nil, value))
	assert.Equal(t, m.Version, f.engine.Snapshot().Version)

	err := f.handler.HandleIndexComplete(ctx, nil, []byte("{"))
	assert.True(t, errors.Is(err, kafka.ErrSkip))
}

func TestRPCSearch(t *testing.T) {
	f := newFixture(t, false)
	s := grpc.NewServer()
	f.handler.RegisterRPC(s)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)
	defer s.Stop()

	c, err := grpc.Dial(ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var resp proto.SearchResponse
	require.NoError(t, c.Call(ctx, proto.MethodSearch, &proto.SearchRequest{Query: "chocolate box", SearchType: "exact"}, &resp))
	assert.Equal(t, "exact", resp.Metadata.SearchType)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "u3", resp.Results[0].URL)
	assert.Greater(t, resp.Results[0].Scores.Final, 0.0)

	var stats proto.StatsResponse
	require.NoError(t, c.Call(ctx, proto.MethodStats, &proto.StatsRequest{}, &stats))
	assert.EqualValues(t, 3, stats.Documents)

	var health proto.HealthCheckResponse
	require.NoError(t, c.Call(ctx, proto.MethodHealth, nil, &health))
	assert.Equal(t, "SERVING", health.Status)

	var remote *grpc.RemoteError
	err = c.Call(ctx, proto.MethodSearch, &proto.SearchRequest{}, &resp)
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.Code)
}
