package main

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	byType        map[string]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
		byType:      make(map[string]*atomic.Int64),
	}
}

// RecordRequest counts one request. statusCode 0 with a nil err is an RPC
// success.
func (s *Stats) RecordRequest(searchType string, duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)

	s.statusCodesMu.Lock()
	if _, ok := s.byType[searchType]; !ok {
		s.byType[searchType] = &atomic.Int64{}
	}
	s.byType[searchType].Add(1)
	s.statusCodesMu.Unlock()

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode == 0 || (statusCode >= 200 && statusCode < 300) {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	if statusCode == 0 {
		return
	}
	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

// Summary is the table-ready view of a run.
type Summary struct {
	Total, Success, Errors, CacheHits int64
	RPS                               float64
	Min, Avg, P50, P90, P95, P99, Max time.Duration
	StdDev                            time.Duration
	StatusCodes                       [][]string
	SearchTypes                       [][]string
}

func (s *Stats) Summarize(duration time.Duration) Summary {
	sum := Summary{
		Total:     s.totalRequests.Load(),
		Success:   s.successCount.Load(),
		Errors:    s.errorCount.Load(),
		CacheHits: s.cacheHits.Load(),
	}
	if duration > 0 {
		sum.RPS = float64(sum.Total) / duration.Seconds()
	}

	s.latenciesMu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	s.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		sum.Avg = total / time.Duration(len(latencies))
		sum.Min = latencies[0]
		sum.Max = latencies[len(latencies)-1]
		sum.P50 = percentile(latencies, 50)
		sum.P90 = percentile(latencies, 90)
		sum.P95 = percentile(latencies, 95)
		sum.P99 = percentile(latencies, 99)

		var sumSquared float64
		avg := float64(sum.Avg)
		for _, l := range latencies {
			diff := float64(l) - avg
			sumSquared += diff * diff
		}
		sum.StdDev = time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))
	}

	s.statusCodesMu.Lock()
	defer s.statusCodesMu.Unlock()
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		sum.StatusCodes = append(sum.StatusCodes, []string{fmt.Sprint(code), fmt.Sprint(s.statusCodes[code].Load())})
	}
	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		sum.SearchTypes = append(sum.SearchTypes, []string{t, fmt.Sprint(s.byType[t].Load())})
	}
	return sum
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
