// Package analytics tracks search and indexing activity. Services publish
// events to Kafka through a Collector; the analytics service consumes them
// into an Aggregator and snapshots the aggregate to Postgres.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventIndexBuild EventType = "index_build"
)

// SearchEvent describes one answered query.
type SearchEvent struct {
	Type              EventType `json:"type"`
	Query             string    `json:"query"`
	SearchType        string    `json:"search_type"`
	FilteredDocuments int       `json:"filtered_documents"`
	Returned          int       `json:"returned"`
	LatencyMs         float64   `json:"latency_ms"`
	CacheHit          bool      `json:"cache_hit"`
	IndexVersion      string    `json:"index_version,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"request_id,omitempty"`
}

// IndexEvent describes one completed index build.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Version    string    `json:"version"`
	Documents  int       `json:"documents"`
	Skipped    int       `json:"skipped"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker receives events as they happen. *Collector publishes them;
// *Aggregator folds them in locally.
type Tracker interface {
	TrackSearch(event SearchEvent)
	TrackIndex(event IndexEvent)
}

// Trackers fans events out to every member.
type Trackers []Tracker

func (ts Trackers) TrackSearch(event SearchEvent) {
	for _, t := range ts {
		t.TrackSearch(event)
	}
}

func (ts Trackers) TrackIndex(event IndexEvent) {
	for _, t := range ts {
		t.TrackIndex(event)
	}
}
