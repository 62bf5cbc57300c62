// Package publisher persists product documents to PostgreSQL and publishes
// ingest events to Kafka so the indexer schedules a rebuild.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/google/uuid"
)

// DocumentStore persists documents. *catalog.Repository implements it.
type DocumentStore interface {
	Upsert(ctx context.Context, doc catalog.Document) (inserted bool, err error)
}

// IngestObserver counts stored documents by operation. pkg/metrics
// implements it.
type IngestObserver interface {
	ObserveIngest(operation string)
}

// Publisher coordinates document persistence and Kafka event production.
type Publisher struct {
	store    DocumentStore
	producer kafka.Publisher
	observer IngestObserver
	logger   *slog.Logger
}

// New creates a Publisher. observer may be nil.
func New(store DocumentStore, producer kafka.Publisher, observer IngestObserver) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		observer: observer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Ingest stores docs as PENDING and publishes one IngestEvent naming them.
// A publish failure is logged and reported through Published=false; the
// documents stay PENDING and are picked up by the next rebuild.
func (p *Publisher) Ingest(ctx context.Context, docs []catalog.Document) (*ingestion.IngestResponse, error) {
	resp := &ingestion.IngestResponse{
		EventID:   uuid.NewString(),
		Documents: make([]ingestion.DocumentStatus, 0, len(docs)),
	}
	urls := make([]string, 0, len(docs))
	for _, doc := range docs {
		inserted, err := p.store.Upsert(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("storing %s: %w", doc.URL, err)
		}
		op := ingestion.OperationUpdate
		if inserted {
			op = ingestion.OperationInsert
		}
		if p.observer != nil {
			p.observer.ObserveIngest(string(op))
		}
		resp.Documents = append(resp.Documents, ingestion.DocumentStatus{
			URL:       doc.URL,
			Status:    catalog.StatusPending,
			Operation: op,
		})
		urls = append(urls, doc.URL)
	}
	resp.Accepted = len(resp.Documents)

	event := kafka.Event{
		Key:  resp.EventID,
		Type: ingestion.EventProductsUpserted,
		Value: ingestion.IngestEvent{
			EventID:    resp.EventID,
			URLs:       urls,
			Count:      len(urls),
			IngestedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish ingest event, documents stay PENDING",
			"event_id", resp.EventID,
			"count", len(urls),
			"error", err,
		)
		return resp, nil
	}
	resp.Published = true
	return resp, nil
}
