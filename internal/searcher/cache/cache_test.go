package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/resilience"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
	gets atomic.Int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (m *memoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.Nil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = value
	return nil
}

func (m *memoryBackend) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func envelope(q string) results.Envelope {
	return results.Envelope{
		Metadata: results.Metadata{Query: q, SearchType: query.ModeAny, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Results:  []results.Result{{URL: "u1", Title: "Red T-Shirt", Score: 1.5}},
	}
}

func TestKeyDependsOnAllParts(t *testing.T) {
	base := Key{Version: "v1", Mode: "any", Limit: 10, Query: "red"}
	variants := []Key{
		{Version: "v2", Mode: "any", Limit: 10, Query: "red"},
		{Version: "v1", Mode: "all", Limit: 10, Query: "red"},
		{Version: "v1", Mode: "any", Limit: 5, Query: "red"},
		{Version: "v1", Mode: "any", Limit: 10, Query: "Red"},
	}
	for _, v := range variants {
		assert.NotEqual(t, base.String(), v.String())
	}
	assert.Equal(t, base.String(), base.String())
	assert.Contains(t, base.String(), keyPrefix)
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute)
	key := Key{Version: "v1", Mode: "any", Limit: 10, Query: "red"}
	calls := 0
	compute := func() (results.Envelope, error) {
		calls++
		return envelope("red"), nil
	}

	env, hit, err := c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "red", env.Metadata.Query)

	env, hit, err = c.GetOrCompute(context.Background(), key, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, envelope("red"), env)
	assert.Equal(t, 1, calls)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, "closed", stats.Breaker)
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemoryBackend(), time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), Key{Query: "x"}, func() (results.Envelope, error) {
		return results.Envelope{}, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), Key{Query: "x"})
	assert.False(t, ok)
}

func TestBackendFailureOpensBreaker(t *testing.T) {
	backend := newMemoryBackend()
	backend.fail = errors.New("connection refused")
	c := New(backend, time.Minute)

	for i := 0; i < 10; i++ {
		_, ok := c.Get(context.Background(), Key{Query: "red"})
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateOpen, c.Breaker().State())
	assert.Equal(t, int64(5), backend.gets.Load())

	env, hit, err := c.GetOrCompute(context.Background(), Key{Query: "red"}, func() (results.Envelope, error) {
		return envelope("red"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "red", env.Metadata.Query)
}

func TestInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	c := New(backend, time.Minute)
	c.Set(context.Background(), Key{Query: "a"}, envelope("a"))
	c.Set(context.Background(), Key{Query: "b"}, envelope("b"))
	backend.data["other:key"] = []byte("x")

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, backend.data, "other:key")
}
