// Package ranker scores candidate documents by blending BM25 over title and
// description with exact-match, review, title-overlap and origin signals.
package ranker

import (
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/config"
)

// Params are the ranking weights and BM25 constants.
type Params struct {
	K1               float64
	B                float64
	AvgDocLength     float64
	BM25Weight       float64
	ExactMatchBonus  float64
	ReviewWeight     float64
	TitleMatchWeight float64
	OriginMatchBonus float64
	// DedupeDocFreq counts a document once for df even when the term occurs
	// in both its title and description.
	DedupeDocFreq bool
}

func DefaultParams() Params {
	return Params{
		K1:               1.5,
		B:                0.75,
		AvgDocLength:     300,
		BM25Weight:       0.4,
		ExactMatchBonus:  2.0,
		ReviewWeight:     0.3,
		TitleMatchWeight: 0.2,
		OriginMatchBonus: 0.1,
	}
}

func ParamsFromConfig(c config.RankingConfig) Params {
	return Params{
		K1:               c.K1,
		B:                c.B,
		AvgDocLength:     c.AvgDocLength,
		BM25Weight:       c.BM25Weight,
		ExactMatchBonus:  c.ExactMatchBonus,
		ReviewWeight:     c.ReviewWeight,
		TitleMatchWeight: c.TitleMatchWeight,
		OriginMatchBonus: c.OriginMatchBonus,
		DedupeDocFreq:    c.DedupeDocFreq,
	}
}

// Scores is the per-document score breakdown.
type Scores struct {
	BM25        float64 `json:"bm25_score"`
	ExactMatch  float64 `json:"exact_match_score"`
	Review      float64 `json:"review_score"`
	TitleMatch  float64 `json:"title_match_score"`
	OriginMatch float64 `json:"origin_match_score"`
	Final       float64 `json:"final_score"`
}

type ScoredDoc struct {
	Doc    *catalog.Document
	Scores Scores
}

// docTerms is the query-tokenized view of a document, computed once per
// index set.
type docTerms struct {
	tf     map[string]int
	length int
	title  map[string]struct{}
}

// Ranker is bound to one index set and is safe for concurrent use.
type Ranker struct {
	params Params
	set    *index.Set
	terms  map[string]docTerms
}

func New(params Params, set *index.Set) *Ranker {
	r := &Ranker{
		params: params,
		set:    set,
		terms:  make(map[string]docTerms, len(set.Documents)),
	}
	for i := range set.Documents {
		doc := &set.Documents[i]
		tokens := tokenizer.QueryTokens(doc.Title + " " + doc.Description)
		dt := docTerms{
			tf:     make(map[string]int, len(tokens)),
			length: len(tokens),
			title:  make(map[string]struct{}),
		}
		for _, tok := range tokens {
			dt.tf[tok]++
		}
		for _, tok := range tokenizer.QueryTokens(doc.Title) {
			dt.title[tok] = struct{}{}
		}
		r.terms[doc.URL] = dt
	}
	return r
}

// Rank scores every document in docs. Order is preserved.
func (r *Ranker) Rank(docs []*catalog.Document, tokens []string, normalizedQuery string) []ScoredDoc {
	out := make([]ScoredDoc, len(docs))
	for i, doc := range docs {
		out[i] = ScoredDoc{Doc: doc, Scores: r.Score(doc, tokens, normalizedQuery)}
	}
	return out
}

// Score computes the breakdown for one document.
func (r *Ranker) Score(doc *catalog.Document, tokens []string, normalizedQuery string) Scores {
	dt := r.terms[doc.URL]
	s := Scores{
		BM25:        r.bm25(dt, tokens),
		ExactMatch:  r.exactMatch(doc, normalizedQuery),
		Review:      r.review(doc.URL),
		TitleMatch:  r.titleMatch(dt, tokens),
		OriginMatch: r.originMatch(doc, tokens),
	}
	s.Final = s.BM25 + s.ExactMatch + s.Review + s.TitleMatch + s.OriginMatch
	return s
}

func (r *Ranker) bm25(dt docTerms, tokens []string) float64 {
	if dt.length == 0 || r.params.AvgDocLength <= 0 {
		return 0
	}
	n := float64(len(r.set.Documents))
	lengthNorm := 1 - r.params.B + r.params.B*(float64(dt.length)/r.params.AvgDocLength)
	score := 0.0
	for _, tok := range tokens {
		tf := float64(dt.tf[tok])
		if tf == 0 {
			continue
		}
		df := r.docFreq(tok)
		if df == 0 {
			continue
		}
		score += IDF(n, float64(df)) * tf * (r.params.K1 + 1) / (tf + r.params.K1*lengthNorm)
	}
	return score * r.params.BM25Weight
}

// IDF is ln((n-df+0.5)/(df+0.5)). A non-positive ratio, possible when df is
// double counted across fields, yields 0.
func IDF(n, df float64) float64 {
	ratio := (n - df + 0.5) / (df + 0.5)
	if ratio <= 0 {
		return 0
	}
	return math.Log(ratio)
}

func (r *Ranker) docFreq(tok string) int {
	title, desc := r.set.Title[tok], r.set.Description[tok]
	if !r.params.DedupeDocFreq {
		return len(title) + len(desc)
	}
	df := len(title)
	for url := range desc {
		if _, ok := title[url]; !ok {
			df++
		}
	}
	return df
}

func (r *Ranker) exactMatch(doc *catalog.Document, normalizedQuery string) float64 {
	if normalizedQuery == "" {
		return 0
	}
	if tokenizer.Normalize(doc.Title) == normalizedQuery {
		return r.params.ExactMatchBonus
	}
	if doc.HasBrand() && tokenizer.Normalize(doc.Brand) == normalizedQuery {
		return r.params.ExactMatchBonus
	}
	if origin, ok := doc.Origin(); ok && tokenizer.Normalize(origin) == normalizedQuery {
		return r.params.ExactMatchBonus
	}
	return 0
}

// ReviewScore is (avg*0.3 + min(total,10)*0.1) scaled by weight.
func ReviewScore(stats index.ReviewStats, weight float64) float64 {
	if stats.TotalReviews <= 0 {
		return 0
	}
	total := math.Min(float64(stats.TotalReviews), 10)
	return (stats.AverageRating*0.3 + total*0.1) * weight
}

func (r *Ranker) review(url string) float64 {
	stats, ok := r.set.Reviews[url]
	if !ok {
		return 0
	}
	return ReviewScore(stats, r.params.ReviewWeight)
}

func (r *Ranker) titleMatch(dt docTerms, tokens []string) float64 {
	matched := 0
	for _, tok := range tokens {
		if _, ok := dt.title[tok]; ok {
			matched++
		}
	}
	return float64(matched) * r.params.TitleMatchWeight
}

func (r *Ranker) originMatch(doc *catalog.Document, tokens []string) float64 {
	origin, ok := doc.Origin()
	if !ok {
		return 0
	}
	origin = strings.ToLower(origin)
	for _, tok := range tokens {
		if tok == origin {
			return r.params.OriginMatchBonus
		}
	}
	return 0
}
