package retrieval

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(v float64) *float64 { return &v }

func newRetriever(t *testing.T) (*Retriever, *query.Processor) {
	t.Helper()
	docs := []catalog.Document{
		{
			URL:         "u1",
			Title:       "Red T-Shirt",
			Description: "soft red shirt",
			Reviews:     []catalog.Review{{Rating: rating(5)}, {Rating: rating(3)}},
		},
		{URL: "u2", Title: "Blue Jeans", Description: "denim jeans"},
		{
			URL:         "u3",
			Title:       "Chocolate Box",
			Description: "assorted candy",
			Brand:       "Red Barn",
			Features:    catalog.Features{"made in": "USA"},
		},
		{URL: "u4", Title: "red t-shirt ", Description: "a second shirt"},
	}
	set, err := indexer.NewBuilder(2).Build(context.Background(), docs)
	require.NoError(t, err)
	return New(set), query.NewProcessor(query.DefaultStopwords, index.DefaultOriginSynonyms())
}

func TestAnyAndAll(t *testing.T) {
	r, p := newRetriever(t)
	tokens := p.Process("red shirt")

	all := r.All(tokens)
	assert.Equal(t, []string{"u1", "u4"}, all.Sorted())

	anySet := r.Any(tokens)
	assert.Equal(t, []string{"u1", "u3", "u4"}, anySet.Sorted())
	assert.NotContains(t, anySet, "u2")
}

func TestAllIsSubsetOfAny(t *testing.T) {
	r, p := newRetriever(t)
	for _, q := range []string{"red shirt", "chocolate candy", "american made", "jeans", "nothing here", ""} {
		tokens := p.Process(q)
		anySet := r.Any(tokens)
		for url := range r.All(tokens) {
			assert.Contains(t, anySet, url, "query %q", q)
		}
	}
}

func TestAllEmptyTokens(t *testing.T) {
	r, _ := newRetriever(t)
	assert.Empty(t, r.All(nil))
	assert.Empty(t, r.Any(nil))
}

func TestOriginSynonymsMatchFeatureIndex(t *testing.T) {
	r, p := newRetriever(t)
	assert.Equal(t, []string{"u3"}, r.Any(p.Process("american")).Sorted())
}

func TestExact(t *testing.T) {
	r, _ := newRetriever(t)
	assert.Equal(t, []string{"u1", "u4"}, r.Exact("red t-shirt").Sorted())
	assert.Equal(t, []string{"u3"}, r.Exact("red barn").Sorted())
	assert.Equal(t, []string{"u3"}, r.Exact("usa").Sorted())
	assert.Empty(t, r.Exact("red"))
	assert.Empty(t, r.Exact(""))
}

func TestRetrieveDispatch(t *testing.T) {
	r, p := newRetriever(t)
	plan, ok := p.Parse("  Red T-Shirt ", "exact")
	require.True(t, ok)
	assert.Equal(t, []string{"u1", "u4"}, r.Retrieve(plan).Sorted())

	plan, _ = p.Parse("red shirt", "all")
	assert.Equal(t, []string{"u1", "u4"}, r.Retrieve(plan).Sorted())

	plan, ok = p.Parse("red shirt", "unknown")
	assert.False(t, ok)
	assert.Equal(t, []string{"u1", "u3", "u4"}, r.Retrieve(plan).Sorted())
}
