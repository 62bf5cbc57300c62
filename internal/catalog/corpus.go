package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// maxLineSize bounds a single JSONL record. Product pages with long review
// lists run to a few hundred kilobytes.
const maxLineSize = 16 * 1024 * 1024

// LoadStats summarises a corpus read.
type LoadStats struct {
	Loaded     int `json:"loaded"`
	Malformed  int `json:"malformed"`
	MissingURL int `json:"missing_url"`
	Duplicates int `json:"duplicates"`
}

// Source produces the full corpus for a build.
type Source interface {
	Load(ctx context.Context) ([]Document, LoadStats, error)
}

// FileSource reads a corpus file from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]Document, LoadStats, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("opening corpus %s: %w", s.Path, err)
	}
	defer f.Close()
	docs, stats, err := ReadCorpus(f)
	if err != nil {
		return nil, stats, fmt.Errorf("reading corpus %s: %w", s.Path, err)
	}
	return docs, stats, nil
}

// ReadCorpus decodes documents from r. Input is JSON Lines, or a single JSON
// array as written by the crawler. Malformed records and records without a
// url are skipped; a repeated url replaces the earlier record in place.
func ReadCorpus(r io.Reader) ([]Document, LoadStats, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, LoadStats{}, nil
	}
	if err != nil {
		return nil, LoadStats{}, err
	}
	c := newCollector()
	if first == '[' {
		var records []json.RawMessage
		if err := json.NewDecoder(br).Decode(&records); err != nil {
			return nil, c.stats, fmt.Errorf("decoding corpus array: %w", err)
		}
		for i, raw := range records {
			c.add(raw, i+1)
		}
		return c.docs, c.stats, nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		c.add(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, c.stats, fmt.Errorf("scanning corpus at line %d: %w", line+1, err)
	}
	return c.docs, c.stats, nil
}

// WriteCorpus writes docs as JSON Lines without HTML escaping.
func WriteCorpus(w io.Writer, docs []Document) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range docs {
		if err := enc.Encode(&docs[i]); err != nil {
			return fmt.Errorf("encoding document %s: %w", docs[i].URL, err)
		}
	}
	return bw.Flush()
}

type collector struct {
	docs   []Document
	byURL  map[string]int
	stats  LoadStats
	logger *slog.Logger
}

func newCollector() *collector {
	return &collector{
		byURL:  make(map[string]int),
		logger: slog.Default().With("component", "corpus-reader"),
	}
}

func (c *collector) add(raw []byte, record int) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.stats.Malformed++
		c.logger.Warn("skipping malformed record", "record", record, "error", err)
		return
	}
	if doc.URL == "" {
		c.stats.MissingURL++
		c.logger.Warn("skipping record without url", "record", record)
		return
	}
	if idx, exists := c.byURL[doc.URL]; exists {
		c.stats.Duplicates++
		c.logger.Warn("duplicate url, keeping latest record", "url", doc.URL, "record", record)
		c.docs[idx] = doc
		return
	}
	c.byURL[doc.URL] = len(c.docs)
	c.docs = append(c.docs, doc)
	c.stats.Loaded++
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case 0xEF:
			// UTF-8 byte order mark.
			if next, err := br.Peek(2); err == nil && next[0] == 0xBB && next[1] == 0xBF {
				br.Discard(2)
				continue
			}
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
