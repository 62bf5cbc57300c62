package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRebuilder struct {
	mu    sync.Mutex
	runs  int
	fail  bool
	ranCh chan struct{}
}

func (f *fakeRebuilder) Run(context.Context) (indexer.Result, error) {
	f.mu.Lock()
	f.runs++
	fail := f.fail
	f.mu.Unlock()
	defer func() { f.ranCh <- struct{}{} }()
	if fail {
		return indexer.Result{}, errors.New("empty corpus")
	}
	return indexer.Result{
		Manifest: store.Manifest{Version: "v1", Stats: index.Stats{Documents: 2}},
		URLs:     []string{"a", "b"},
		LoadedAt: time.Unix(100, 0),
	}, nil
}

func (f *fakeRebuilder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type fakeMarker struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeMarker) MarkIndexed(_ context.Context, urls []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, urls...)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (f *fakeNotifier) Publish(_ context.Context, e kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type fakeTracker struct {
	mu     sync.Mutex
	events []analytics.IndexEvent
}

func (f *fakeTracker) TrackIndex(e analytics.IndexEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func ingestMessage(t *testing.T, n int) []byte {
	t.Helper()
	b, err := json.Marshal(ingestion.IngestEvent{EventID: "e", Count: n})
	require.NoError(t, err)
	return b
}

func TestBurstCoalescesIntoOneRebuild(t *testing.T) {
	rb := &fakeRebuilder{ranCh: make(chan struct{}, 4)}
	marker := &fakeMarker{}
	notifier := &fakeNotifier{}
	tracker := &fakeTracker{}
	ic := New(Options{Rebuilder: rb, Marker: marker, Notifier: notifier, Tracker: tracker, Debounce: 30 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ic.Run(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, ic.HandleMessage(ctx, nil, ingestMessage(t, 1)))
	}
	select {
	case <-rb.ranCh:
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild did not run")
	}
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, rb.count())

	marker.mu.Lock()
	assert.Equal(t, []string{"a", "b"}, marker.urls)
	marker.mu.Unlock()

	notifier.mu.Lock()
	require.Len(t, notifier.events, 1)
	assert.Equal(t, indexer.EventIndexComplete, notifier.events[0].Type)
	assert.Equal(t, "v1", notifier.events[0].Value.(indexer.IndexCompleteEvent).Version)
	notifier.mu.Unlock()

	tracker.mu.Lock()
	assert.Len(t, tracker.events, 1)
	tracker.mu.Unlock()
}

func TestFailedRebuildKeepsPending(t *testing.T) {
	rb := &fakeRebuilder{fail: true, ranCh: make(chan struct{}, 4)}
	notifier := &fakeNotifier{}
	ic := New(Options{Rebuilder: rb, Notifier: notifier, Debounce: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ic.Run(ctx)

	ic.Schedule(3)
	<-rb.ranCh
	require.Eventually(t, func() bool {
		ic.mu.Lock()
		defer ic.mu.Unlock()
		return ic.pending == 3
	}, time.Second, 5*time.Millisecond)
	notifier.mu.Lock()
	assert.Empty(t, notifier.events)
	notifier.mu.Unlock()
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	ic := New(Options{Rebuilder: &fakeRebuilder{ranCh: make(chan struct{}, 1)}})
	assert.ErrorIs(t, ic.HandleMessage(context.Background(), nil, []byte("{")), kafka.ErrSkip)
}
