package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
)

// BatchPublisher is the part of *kafka.Producer the collector needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events without blocking the caller and publishes them
// in batches, when a batch fills or every flush interval.
type Collector struct {
	publisher     BatchPublisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	dropped atomic.Int64

	logger *slog.Logger
	done   chan struct{}
}

func NewCollector(publisher BatchPublisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan kafka.Event, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. It returns once the loop is running; the
// loop exits when ctx is cancelled or Close is called, flushing what is
// buffered.
func (c *Collector) Start(ctx context.Context) {
	c.started.Store(true)
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.finalFlush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			c.finalFlush(c.drain(batch))
			return
		}
	}
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
}

// flush publishes batch and returns the slice to keep accumulating into.
// A failed batch is kept for the next attempt, bounded to three batches.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		if limit := c.batchSize * 3; len(batch) > limit {
			dropped := len(batch) - limit
			c.dropped.Add(int64(dropped))
			c.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
			batch = batch[dropped:]
		}
		return batch
	}
	c.logger.Debug("batch flushed", "events", len(batch))
	return make([]kafka.Event, 0, c.batchSize)
}

func (c *Collector) finalFlush(batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Error("final flush failed", "batch_size", len(batch), "error", err)
	}
}

// TrackSearch queues a search event.
func (c *Collector) TrackSearch(event SearchEvent) {
	event.Type = EventSearch
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: event.SearchType, Type: string(EventSearch), Value: event})
}

// TrackIndex queues an index build event.
func (c *Collector) TrackIndex(event IndexEvent) {
	event.Type = EventIndexBuild
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.track(kafka.Event{Key: event.Version, Type: string(EventIndexBuild), Value: event})
}

func (c *Collector) track(event kafka.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Dropped reports how many events were discarded.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the buffered ones to be
// published.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	if c.started.Load() {
		<-c.done
	}
}
