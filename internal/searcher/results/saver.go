package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/resilience"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// FileName is search_<slug>_<YYYYMMDD_HHMMSS>.json, where slug is the
// lowercased query with every run of other characters replaced by "_".
func FileName(query string, t time.Time) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(query), "_")
	return fmt.Sprintf("search_%s_%s.json", slug, t.Format("20060102_150405"))
}

// SaveObserver is notified of each save outcome.
type SaveObserver interface {
	ObserveSave(outcome string)
}

// Save outcomes reported to a SaveObserver.
const (
	SaveWritten = "written"
	SaveFailed  = "failed"
	SaveDropped = "dropped"
)

// Saver writes envelopes to a results directory from a background worker.
// Save never blocks; when the queue is full the envelope is dropped.
type Saver struct {
	dir      string
	timeout  time.Duration
	queue    chan Envelope
	observer SaveObserver
	logger   *slog.Logger
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool

	// writeFile is replaced in tests.
	writeFile func(path string, data []byte) error
}

func NewSaver(dir string, buffer int, timeout time.Duration) *Saver {
	if buffer <= 0 {
		buffer = 256
	}
	return &Saver{
		dir:       dir,
		timeout:   timeout,
		queue:     make(chan Envelope, buffer),
		logger:    slog.Default().With("component", "result-saver"),
		writeFile: writeResultFile,
	}
}

func writeResultFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}

func (s *Saver) WithObserver(o SaveObserver) *Saver {
	s.observer = o
	return s
}

// Start launches the worker. It exits when Close is called.
func (s *Saver) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for env := range s.queue {
			if _, err := s.Write(context.Background(), env); err != nil {
				s.logger.Error("saving search results failed",
					"query", env.Metadata.Query,
					"error", err,
				)
			}
		}
	}()
}

// Save queues env for writing.
func (s *Saver) Save(env Envelope) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.observe(SaveDropped)
		return
	}
	select {
	case s.queue <- env:
	default:
		s.observe(SaveDropped)
		s.logger.Warn("result save queue full, dropping", "query", env.Metadata.Query)
	}
}

// Close stops accepting envelopes and waits for queued ones to be written.
func (s *Saver) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Write stores env synchronously and returns the file path. The envelope
// is written to a temp file that is renamed into place only when the write
// finished within the save timeout, so a failed save never leaves a file
// behind, even if the slow write completes later.
func (s *Saver) Write(ctx context.Context, env Envelope) (string, error) {
	path := filepath.Join(s.dir, FileName(env.Metadata.Query, env.Metadata.Timestamp))
	tmpPath := path + ".tmp"
	err := resilience.WithTimeout(ctx, s.timeout, "save-results", func(ctx context.Context) error {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return fmt.Errorf("creating results directory: %w", err)
		}
		data, err := marshalEnvelope(env)
		if err != nil {
			return fmt.Errorf("encoding results: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeFile(tmpPath, data); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	}, func(error) {
		os.Remove(tmpPath)
	})
	if err == nil {
		if err = os.Rename(tmpPath, path); err != nil {
			os.Remove(tmpPath)
			err = fmt.Errorf("publishing %s: %w", path, err)
		}
	}
	if err != nil {
		s.observe(SaveFailed)
		return "", err
	}
	s.observe(SaveWritten)
	s.logger.Debug("search results saved", "path", path)
	return path, nil
}

func (s *Saver) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveSave(outcome)
	}
}

func marshalEnvelope(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
