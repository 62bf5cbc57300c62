package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	docs map[string]catalog.Document
	fail error
}

func (m *memStore) Upsert(_ context.Context, doc catalog.Document) (bool, error) {
	if m.fail != nil {
		return false, m.fail
	}
	_, exists := m.docs[doc.URL]
	m.docs[doc.URL] = doc
	return !exists, nil
}

type memProducer struct {
	events []kafka.Event
	fail   error
}

func (m *memProducer) Publish(_ context.Context, e kafka.Event) error {
	if m.fail != nil {
		return m.fail
	}
	m.events = append(m.events, e)
	return nil
}

type countingObserver map[string]int

func (c countingObserver) ObserveIngest(op string) { c[op]++ }

func TestIngestStoresAndPublishes(t *testing.T) {
	store := &memStore{docs: map[string]catalog.Document{"https://shop.example/a": {}}}
	prod := &memProducer{}
	obs := countingObserver{}
	p := New(store, prod, obs)

	resp, err := p.Ingest(context.Background(), []catalog.Document{
		{URL: "https://shop.example/a", Title: "A"},
		{URL: "https://shop.example/b", Title: "B"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Published)
	assert.Equal(t, 2, resp.Accepted)
	assert.NotEmpty(t, resp.EventID)
	assert.Equal(t, ingestion.OperationUpdate, resp.Documents[0].Operation)
	assert.Equal(t, ingestion.OperationInsert, resp.Documents[1].Operation)
	assert.Equal(t, catalog.StatusPending, resp.Documents[1].Status)
	assert.Equal(t, countingObserver{"insert": 1, "update": 1}, obs)

	require.Len(t, prod.events, 1)
	assert.Equal(t, resp.EventID, prod.events[0].Key)
	assert.Equal(t, ingestion.EventProductsUpserted, prod.events[0].Type)
	event := prod.events[0].Value.(ingestion.IngestEvent)
	assert.Equal(t, []string{"https://shop.example/a", "https://shop.example/b"}, event.URLs)
	assert.Equal(t, 2, event.Count)
}

func TestIngestPublishFailureStillAccepts(t *testing.T) {
	p := New(&memStore{docs: map[string]catalog.Document{}}, &memProducer{fail: errors.New("no brokers")}, nil)
	resp, err := p.Ingest(context.Background(), []catalog.Document{{URL: "https://shop.example/a", Title: "A"}})
	require.NoError(t, err)
	assert.False(t, resp.Published)
	assert.Equal(t, 1, resp.Accepted)
}

func TestIngestStoreFailure(t *testing.T) {
	p := New(&memStore{fail: errors.New("db down")}, &memProducer{}, nil)
	_, err := p.Ingest(context.Background(), []catalog.Document{{URL: "https://shop.example/a", Title: "A"}})
	assert.ErrorContains(t, err, "db down")
}
