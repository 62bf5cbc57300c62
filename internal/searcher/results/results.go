// Package results orders scored documents into the search response envelope
// and persists envelopes to disk in the background.
package results

import (
	"container/heap"
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/ranker"
)

type Metadata struct {
	Query             string     `json:"query"`
	SearchType        query.Mode `json:"search_type"`
	Timestamp         time.Time  `json:"timestamp"`
	TotalDocuments    int        `json:"total_documents"`
	FilteredDocuments int        `json:"filtered_documents"`
}

type Result struct {
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	Description string        `json:"description"`
	Scores      ranker.Scores `json:"scores"`
	Score       float64       `json:"score"`
}

// Envelope is the search response.
type Envelope struct {
	Metadata Metadata `json:"metadata"`
	Results  []Result `json:"results"`
}

// Request carries the query-level fields of an envelope.
type Request struct {
	Query          string
	Mode           query.Mode
	TotalDocuments int
	Limit          int
	Now            time.Time
}

// Assemble orders scored by final score descending, breaking ties by
// ascending url, and keeps the first req.Limit entries (all when Limit is
// 0). FilteredDocuments counts every candidate, not just those kept.
func Assemble(req Request, scored []ranker.ScoredDoc) Envelope {
	ordered := TopK(scored, req.Limit)
	out := make([]Result, len(ordered))
	for i, sd := range ordered {
		out[i] = Result{
			Title:       sd.Doc.Title,
			URL:         sd.Doc.URL,
			Description: sd.Doc.Description,
			Scores:      sd.Scores,
			Score:       Round3(sd.Scores.Final),
		}
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	return Envelope{
		Metadata: Metadata{
			Query:             req.Query,
			SearchType:        req.Mode,
			Timestamp:         now,
			TotalDocuments:    req.TotalDocuments,
			FilteredDocuments: len(scored),
		},
		Results: out,
	}
}

// Round3 rounds half away from zero to three decimals.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// less is the result order: higher final score first, then lower url.
func less(a, b ranker.ScoredDoc) bool {
	if a.Scores.Final != b.Scores.Final {
		return a.Scores.Final > b.Scores.Final
	}
	return a.Doc.URL < b.Doc.URL
}

// TopK returns the best k documents in result order without modifying
// scored. k <= 0 sorts everything.
func TopK(scored []ranker.ScoredDoc, k int) []ranker.ScoredDoc {
	if k <= 0 || k >= len(scored) {
		out := make([]ranker.ScoredDoc, len(scored))
		copy(out, scored)
		sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
		return out
	}
	h := &worstFirst{}
	heap.Init(h)
	for _, sd := range scored {
		if h.Len() < k {
			heap.Push(h, sd)
			continue
		}
		if less(sd, (*h)[0]) {
			(*h)[0] = sd
			heap.Fix(h, 0)
		}
	}
	out := make([]ranker.ScoredDoc, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return out
}

// worstFirst is a heap whose root is the lowest-ranked kept document.
type worstFirst []ranker.ScoredDoc

func (h worstFirst) Len() int { return len(h) }

func (h worstFirst) Less(i, j int) bool { return less(h[j], h[i]) }

func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *worstFirst) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
