// Package consumer turns ingest events from Kafka into full index rebuilds.
// Events arriving close together are coalesced: a rebuild starts once no new
// event has arrived for the debounce period.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
)

// Rebuilder is implemented by *indexer.Pipeline.
type Rebuilder interface {
	Run(ctx context.Context) (indexer.Result, error)
}

// Marker is implemented by *catalog.Repository.
type Marker interface {
	MarkIndexed(ctx context.Context, urls []string, loadedAt time.Time) error
}

// IndexTracker is implemented by *analytics.Collector.
type IndexTracker interface {
	TrackIndex(event analytics.IndexEvent)
}

type Options struct {
	Rebuilder Rebuilder
	Marker    Marker
	// Notifier publishes IndexCompleteEvents; nil disables notification.
	Notifier kafka.Publisher
	Tracker  IndexTracker
	Debounce time.Duration
}

// IndexConsumer schedules rebuilds from ingest events.
type IndexConsumer struct {
	opts    Options
	trigger chan struct{}

	mu      sync.Mutex
	pending int

	logger *slog.Logger
}

func New(opts Options) *IndexConsumer {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	return &IndexConsumer{
		opts:    opts,
		trigger: make(chan struct{}, 1),
		logger:  slog.Default().With("component", "index-consumer"),
	}
}

// HandleMessage is a kafka.MessageHandler for the ingest topic. It only
// records that a rebuild is due; Run performs it.
func (ic *IndexConsumer) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ingestion.IngestEvent](value)
	if err != nil {
		ic.logger.Error("failed to decode ingest event", "error", err, "key", string(key))
		return err
	}
	ic.logger.Debug("ingest event received", "event_id", event.EventID, "count", event.Count)
	ic.Schedule(event.Count)
	return nil
}

// Schedule requests a rebuild covering n more changed documents.
func (ic *IndexConsumer) Schedule(n int) {
	ic.mu.Lock()
	ic.pending += n
	ic.mu.Unlock()
	select {
	case ic.trigger <- struct{}{}:
	default:
	}
}

// Run waits for scheduled work and rebuilds once the debounce period passes
// quietly. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Run(ctx context.Context) error {
	ic.logger.Info("rebuild loop started", "debounce", ic.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ic.trigger:
		}
		if !ic.waitQuiet(ctx) {
			return nil
		}
		ic.rebuild(ctx)
	}
}

func (ic *IndexConsumer) waitQuiet(ctx context.Context) bool {
	timer := time.NewTimer(ic.opts.Debounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ic.trigger:
			timer.Reset(ic.opts.Debounce)
		case <-timer.C:
			return true
		}
	}
}

func (ic *IndexConsumer) rebuild(ctx context.Context) {
	ic.mu.Lock()
	changed := ic.pending
	ic.pending = 0
	ic.mu.Unlock()

	ic.logger.Info("rebuilding index", "changed_documents", changed)
	res, err := ic.opts.Rebuilder.Run(ctx)
	if err != nil {
		ic.logger.Error("rebuild failed, will retry on next event", "error", err)
		ic.mu.Lock()
		ic.pending += changed
		ic.mu.Unlock()
		return
	}

	if ic.opts.Marker != nil {
		if err := ic.opts.Marker.MarkIndexed(ctx, res.URLs, res.LoadedAt); err != nil {
			ic.logger.Error("failed to mark products indexed", "error", err)
		}
	}
	if ic.opts.Notifier != nil {
		err := ic.opts.Notifier.Publish(ctx, kafka.Event{
			Key:  res.Manifest.Version,
			Type: indexer.EventIndexComplete,
			Value: indexer.IndexCompleteEvent{
				Version:   res.Manifest.Version,
				Documents: res.Manifest.Stats.Documents,
				CreatedAt: res.Manifest.CreatedAt,
			},
		})
		if err != nil {
			ic.logger.Error("failed to publish index-complete event", "version", res.Manifest.Version, "error", err)
		}
	}
	if ic.opts.Tracker != nil {
		ic.opts.Tracker.TrackIndex(analytics.IndexEvent{
			Version:    res.Manifest.Version,
			Documents:  res.Manifest.Stats.Documents,
			Skipped:    res.Load.Malformed + res.Load.MissingURL,
			DurationMs: res.Duration.Milliseconds(),
		})
	}
	ic.logger.Info("rebuild complete",
		"version", res.Manifest.Version,
		"documents", res.Manifest.Stats.Documents,
		"duration", res.Duration,
	)
}
