package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
)

const topQueries = 10

type AggregatedStats struct {
	TotalSearches      int64            `json:"total_searches"`
	SearchesByType     map[string]int64 `json:"searches_by_type"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	CacheHitRate       float64          `json:"cache_hit_rate"`
	ZeroResultCount    int64            `json:"zero_result_count"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       float64          `json:"p50_latency_ms"`
	P95LatencyMs       float64          `json:"p95_latency_ms"`
	P99LatencyMs       float64          `json:"p99_latency_ms"`
	TopQueries         []QueryCount     `json:"top_queries"`
	ZeroResultQueries  []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute   float64          `json:"queries_per_minute"`
	IndexBuilds        int64            `json:"index_builds"`
	LastIndexVersion   string           `json:"last_index_version,omitempty"`
	LastIndexDocuments int              `json:"last_index_documents"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds analytics events into running totals. Latency
// percentiles cover the most recent samples only.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	byType            map[string]int64
	latencies         []float64
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	indexBuilds       int64
	lastIndex         IndexEvent
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

// NewAggregator keeps up to latencySamples latencies for percentiles.
func NewAggregator(latencySamples int) *Aggregator {
	if latencySamples <= 0 {
		latencySamples = 10000
	}
	return &Aggregator{
		byType:            make(map[string]int64),
		latencies:         make([]float64, 0, latencySamples),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage is a kafka.MessageHandler for the analytics topic.
func (a *Aggregator) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return fmt.Errorf("decoding analytics event: %w: %w", kafka.ErrSkip, err)
	}
	switch head.Type {
	case EventSearch:
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			return err
		}
		a.TrackSearch(event)
	case EventIndexBuild:
		event, err := kafka.DecodeJSON[IndexEvent](value)
		if err != nil {
			return err
		}
		a.TrackIndex(event)
	default:
		return fmt.Errorf("unknown analytics event type %q: %w", head.Type, kafka.ErrSkip)
	}
	return nil
}

func (a *Aggregator) TrackSearch(event SearchEvent) {
	query := tokenizer.Normalize(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	a.byType[event.SearchType]++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[query]++
	if event.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
	if len(a.latencies) < cap(a.latencies) {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % len(a.latencies)
	}
}

func (a *Aggregator) TrackIndex(event IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexBuilds++
	if event.Timestamp.Before(a.lastIndex.Timestamp) {
		return
	}
	a.lastIndex = event
	a.logger.Info("index build recorded", "version", event.Version, "documents", event.Documents)
}

// Restore seeds the counters from a persisted snapshot so totals survive a
// restart. Latency samples and per-query counts beyond the snapshot's top
// lists are not recoverable.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches += stats.TotalSearches
	a.cacheHits += stats.CacheHits
	a.cacheMisses += stats.CacheMisses
	a.zeroResults += stats.ZeroResultCount
	a.indexBuilds += stats.IndexBuilds
	for k, v := range stats.SearchesByType {
		a.byType[k] += v
	}
	for _, qc := range stats.TopQueries {
		a.queryCounts[qc.Query] += qc.Count
	}
	for _, qc := range stats.ZeroResultQueries {
		a.zeroResultQueries[qc.Query] += qc.Count
	}
	if a.lastIndex.Version == "" {
		a.lastIndex = IndexEvent{Version: stats.LastIndexVersion, Documents: stats.LastIndexDocuments}
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:      a.totalSearches,
		SearchesByType:     make(map[string]int64, len(a.byType)),
		CacheHits:          a.cacheHits,
		CacheMisses:        a.cacheMisses,
		ZeroResultCount:    a.zeroResults,
		IndexBuilds:        a.indexBuilds,
		LastIndexVersion:   a.lastIndex.Version,
		LastIndexDocuments: a.lastIndex.Documents,
	}
	for k, v := range a.byType {
		stats.SearchesByType[k] = v
	}
	if lookups := a.cacheHits + a.cacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(a.cacheHits) / float64(lookups)
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topQueries)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueries)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
