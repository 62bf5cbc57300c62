// Package ingestion defines the request/response types and Kafka event schemas
// used by the product ingestion pipeline.
package ingestion

import "time"

// EventProductsUpserted is the Event.Type of an IngestEvent.
const EventProductsUpserted = "products.upserted"

// Operation records whether an ingested url was new.
type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
)

// IngestResponse is returned to the caller once every document in the
// request is stored.
type IngestResponse struct {
	EventID   string           `json:"event_id"`
	Accepted  int              `json:"accepted"`
	Published bool             `json:"published"`
	Documents []DocumentStatus `json:"documents"`
}

type DocumentStatus struct {
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Operation Operation `json:"operation"`
}

// IngestEvent is the Kafka message produced after a batch of documents is
// persisted and waiting for the next index build.
type IngestEvent struct {
	EventID    string    `json:"event_id"`
	URLs       []string  `json:"urls"`
	Count      int       `json:"count"`
	IngestedAt time.Time `json:"ingested_at"`
}
