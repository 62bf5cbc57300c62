package ranker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(v float64) *float64 { return &v }

func build(t *testing.T, docs ...catalog.Document) *index.Set {
	t.Helper()
	set, err := indexer.NewBuilder(1).Build(context.Background(), docs)
	require.NoError(t, err)
	return set
}

func u1() catalog.Document {
	return catalog.Document{
		URL:         "u1",
		Title:       "Red T-Shirt",
		Description: "soft red shirt",
		Reviews:     []catalog.Review{{Rating: rating(5)}, {Rating: rating(3)}},
	}
}

func u2() catalog.Document {
	return catalog.Document{URL: "u2", Title: "Blue Jeans", Description: "denim jeans"}
}

func TestReviewComponent(t *testing.T) {
	set := build(t, u1(), u2())
	r := New(DefaultParams(), set)

	s := r.Score(&set.Documents[0], []string{"red", "shirt"}, "red shirt")
	assert.InDelta(t, 0.42, s.Review, 1e-9)

	s = r.Score(&set.Documents[1], []string{"red", "shirt"}, "red shirt")
	assert.Zero(t, s.Review)
}

func TestReviewScoreCapsTotal(t *testing.T) {
	stats := index.ReviewStats{TotalReviews: 50, AverageRating: 4}
	assert.InDelta(t, (4*0.3+10*0.1)*0.3, ReviewScore(stats, 0.3), 1e-9)
	assert.Zero(t, ReviewScore(index.ReviewStats{}, 0.3))
}

func TestIDF(t *testing.T) {
	assert.InDelta(t, math.Log((10-1+0.5)/(1+0.5)), IDF(10, 1), 1e-12)
	assert.Zero(t, IDF(2, 3))
	assert.False(t, math.IsNaN(IDF(1, 40)))
}

func TestBM25MonotoneInTermFrequency(t *testing.T) {
	const padding = "lorem ipsum dolor sit amet consectetur adipiscing elit sed do"
	docs := []catalog.Document{u2()}
	for i := 0; i < 30; i++ {
		docs = append(docs, catalog.Document{URL: fmt.Sprintf("filler-%02d", i), Title: "Filler", Description: padding})
	}
	for tf := 1; tf <= 5; tf++ {
		words := append(strings.Fields(padding)[:10-tf], strings.Fields(strings.Repeat("widget ", tf))...)
		docs = append(docs, catalog.Document{URL: fmt.Sprintf("tf-%d", tf), Title: "Item", Description: strings.Join(words, " ")})
	}
	set := build(t, docs...)
	r := New(DefaultParams(), set)

	prev := -1.0
	for tf := 1; tf <= 5; tf++ {
		url := fmt.Sprintf("tf-%d", tf)
		var doc *catalog.Document
		for i := range set.Documents {
			if set.Documents[i].URL == url {
				doc = &set.Documents[i]
			}
		}
		require.NotNil(t, doc)
		score := r.Score(doc, []string{"widget"}, "widget").BM25
		assert.GreaterOrEqual(t, score, prev, "tf=%d", tf)
		prev = score
	}
	assert.Positive(t, prev)
}

func TestBM25ZeroWhenTermAbsent(t *testing.T) {
	set := build(t, u1(), u2())
	r := New(DefaultParams(), set)
	s := r.Score(&set.Documents[1], []string{"red"}, "red")
	assert.Zero(t, s.BM25)
}

func TestBM25ZeroLengthDocument(t *testing.T) {
	set := build(t, catalog.Document{URL: "empty", Title: "123", Description: "!!"}, u2())
	r := New(DefaultParams(), set)
	assert.Zero(t, r.Score(&set.Documents[0], []string{"jeans"}, "jeans").BM25)
}

func TestDocFreqDoubleCounting(t *testing.T) {
	set := build(t, u1(), u2())
	assert.Equal(t, 2, New(DefaultParams(), set).docFreq("red"))

	p := DefaultParams()
	p.DedupeDocFreq = true
	assert.Equal(t, 1, New(p, set).docFreq("red"))
}

func TestExactMatchAndOverlap(t *testing.T) {
	doc := catalog.Document{
		URL:      "u3",
		Title:    "Red T-Shirt",
		Brand:    "Acme",
		Features: catalog.Features{"made in": "USA"},
	}
	set := build(t, doc, u2())
	r := New(DefaultParams(), set)
	d := &set.Documents[0]

	s := r.Score(d, []string{"red", "t-shirt"}, "red t-shirt")
	assert.Equal(t, 2.0, s.ExactMatch)
	assert.InDelta(t, 0.4, s.TitleMatch, 1e-9)
	assert.Zero(t, s.OriginMatch)

	s = r.Score(d, []string{"acme"}, "acme")
	assert.Equal(t, 2.0, s.ExactMatch)

	s = r.Score(d, []string{"america", "usa"}, "america")
	assert.Zero(t, s.ExactMatch)
	assert.InDelta(t, 0.1, s.OriginMatch, 1e-9)

	s = r.Score(d, nil, "")
	assert.Zero(t, s.Final)
}

func TestFinalIsSum(t *testing.T) {
	set := build(t, u1(), u2())
	r := New(DefaultParams(), set)
	scored := r.Rank([]*catalog.Document{&set.Documents[0], &set.Documents[1]}, []string{"red", "shirt"}, "red shirt")
	require.Len(t, scored, 2)
	s := scored[0].Scores
	assert.Equal(t, "u1", scored[0].Doc.URL)
	assert.InDelta(t, s.BM25+s.ExactMatch+s.Review+s.TitleMatch+s.OriginMatch, s.Final, 1e-12)
	assert.InDelta(t, 0.2, s.TitleMatch, 1e-9)
}

func TestParamsFromConfig(t *testing.T) {
	cfg := config.Default().Search.Ranking
	assert.Equal(t, DefaultParams(), ParamsFromConfig(cfg))
}
