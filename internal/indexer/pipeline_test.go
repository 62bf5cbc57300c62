package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	docs []catalog.Document
	err  error
}

func (s staticSource) Load(context.Context) ([]catalog.Document, catalog.LoadStats, error) {
	return s.docs, catalog.LoadStats{Loaded: len(s.docs)}, s.err
}

func TestPipelineRun(t *testing.T) {
	root := t.TempDir()
	src := staticSource{docs: []catalog.Document{
		{URL: "https://shop.example/product/1", Title: "Red Shirt", Description: "cotton"},
		{URL: "https://shop.example/product/2", Title: "Blue Shirt", Description: "linen"},
	}}
	p := NewPipeline(src, NewBuilder(2), store.NewWriter(root, 2), nil)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Manifest.Stats.Documents)
	assert.Equal(t, []string{"https://shop.example/product/1", "https://shop.example/product/2"}, res.URLs)
	assert.False(t, res.LoadedAt.IsZero())

	b, err := store.Open(root)
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.Version, b.Manifest.Version)
	assert.NotEmpty(t, b.Synonyms)
}

func TestPipelineErrors(t *testing.T) {
	root := t.TempDir()
	_, err := NewPipeline(staticSource{}, NewBuilder(1), store.NewWriter(root, 1), nil).Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrEmptyCorpus)
	assert.Equal(t, 1, strings.Count(err.Error(), "building index"))

	_, err = NewPipeline(staticSource{err: errors.New("db down")}, NewBuilder(1), store.NewWriter(root, 1), nil).Run(context.Background())
	assert.ErrorContains(t, err, "db down")
}
