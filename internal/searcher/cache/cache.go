// Package cache stores search envelopes in Redis keyed by index version,
// mode, limit and query text. Concurrent misses for the same key share one
// computation. A circuit breaker stops Redis calls while Redis is failing,
// in which case every lookup is a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Backend is the key-value store behind the cache. *pkgredis.Client
// implements it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Key identifies a cached search.
type Key struct {
	Version string
	Mode    string
	Limit   int
	Query   string
}

func (k Key) String() string {
	raw := fmt.Sprintf("%s|%s|%d|%s", k.Version, k.Mode, k.Limit, k.Query)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

type QueryCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(backend Backend, ttl time.Duration) *QueryCache {
	return &QueryCache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("redis-cache", resilience.BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         15 * time.Second,
		}),
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Breaker exposes the circuit breaker for health and metrics reporting.
func (c *QueryCache) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *QueryCache) Get(ctx context.Context, key Key) (results.Envelope, bool) {
	k := key.String()
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, k)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", k, "error", err)
		}
		c.misses.Add(1)
		return results.Envelope{}, false
	}
	if data == nil {
		c.misses.Add(1)
		return results.Envelope{}, false
	}
	var env results.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.misses.Add(1)
		return results.Envelope{}, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "query", key.Query, "key", k)
	return env, true
}

func (c *QueryCache) Set(ctx context.Context, key Key, env results.Envelope) {
	k := key.String()
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, k, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// GetOrCompute returns the cached envelope for key or computes and stores
// it. hit reports whether the envelope came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key Key,
	computeFn func() (results.Envelope, error),
) (env results.Envelope, hit bool, err error) {
	if env, ok := c.Get(ctx, key); ok {
		return env, true, nil
	}
	val, err, _ := c.group.Do(key.String(), func() (any, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return results.Envelope{}, false, err
	}
	return val.(results.Envelope), false, nil
}

// Invalidate removes every cached search.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

type Stats struct {
	Hits    int64                    `json:"hits"`
	Misses  int64                    `json:"misses"`
	Breaker resilience.BreakerStatus `json:"breaker"`
}

func (c *QueryCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.Status(),
	}
}

// EventInvalidate is the event type on the cache-invalidate topic.
const EventInvalidate = "cache.invalidate"

// InvalidateEvent asks every searcher to drop its cached results.
type InvalidateEvent struct {
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
