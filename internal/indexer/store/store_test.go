package store_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(v float64) *float64 { return &v }

func buildSample(t *testing.T) *index.Set {
	t.Helper()
	docs := []catalog.Document{
		{
			URL:         "https://shop.example/product/1",
			Title:       "Crème Brûlée Kit",
			Description: "torch & ramekins <4 pcs>",
			Brand:       "Maison",
			Features:    catalog.Features{"made in": "France"},
			Reviews:     []catalog.Review{{Rating: rating(4)}, {}},
		},
		{URL: "https://shop.example/product/2?variant=b&size=m", Title: "Blue Jeans", Description: "denim jeans", Brand: "Levis"},
	}
	set, err := indexer.NewBuilder(2).Build(context.Background(), docs)
	require.NoError(t, err)
	return set
}

func TestWriteAndOpen(t *testing.T) {
	root := t.TempDir()
	set := buildSample(t)

	manifest, err := store.NewWriter(root, 3).Write(set, index.DefaultOriginSynonyms())
	require.NoError(t, err)
	assert.Equal(t, 2, manifest.Stats.Documents)

	current, err := os.ReadFile(filepath.Join(root, "CURRENT"))
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, strings.TrimSpace(string(current)))

	b, err := store.Open(root)
	require.NoError(t, err)
	assert.Equal(t, manifest.Version, b.Manifest.Version)
	assert.Zero(t, b.Skipped)
	assert.Equal(t, set.Title, b.Set.Title)
	assert.Equal(t, set.Description, b.Set.Description)
	assert.Equal(t, set.Brand, b.Set.Brand)
	assert.Equal(t, set.Origin, b.Set.Origin)
	assert.Equal(t, set.Reviews, b.Set.Reviews)
	assert.Equal(t, set.Documents, b.Set.Documents)
	assert.Equal(t, index.DefaultOriginSynonyms().Normalize(), b.Synonyms)
}

func TestWrittenFilesArePrettyAndUnescaped(t *testing.T) {
	root := t.TempDir()
	manifest, err := store.NewWriter(root, 0).Write(buildSample(t), index.DefaultOriginSynonyms())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, manifest.Version, store.TitleIndexFile))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "crème")
	assert.Contains(t, text, "\n  \"blue\": {\n")

	data, err = os.ReadFile(filepath.Join(root, manifest.Version, store.ReviewsIndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_rating": null`)

	for _, name := range []string{store.TitleIndexFile, store.BrandIndexFile} {
		data, err = os.ReadFile(filepath.Join(root, manifest.Version, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "variant=b&size=m", name)
		assert.NotContains(t, string(data), `\u0026`, name)
	}
}

func TestOpenMissingFile(t *testing.T) {
	root := t.TempDir()
	manifest, err := store.NewWriter(root, 0).Write(buildSample(t), nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, manifest.Version, store.OriginIndexFile)))

	_, err = store.Open(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrIndexMissing)
	assert.Contains(t, err.Error(), store.OriginIndexFile)
}

func TestOpenEmptyRoot(t *testing.T) {
	_, err := store.Open(t.TempDir())
	assert.ErrorIs(t, err, apperrors.ErrIndexMissing)
}

func TestOpenFlatDirectorySkipsMalformedEntries(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		store.ProductsFile:         "{\"url\":\"u1\",\"title\":\"Red Shirt\"}\nnot json\n",
		store.TitleIndexFile:       `{"red": {"u1": [0]}, "shirt": "broken", "ghost": {"u9": [0]}}`,
		store.DescriptionIndexFile: `{}`,
		store.BrandIndexFile:       `{"acme": ["u1"], "bad": 3}`,
		store.OriginIndexFile:      `{}`,
		store.ReviewsIndexFile:     `{"u1": {"total_reviews": 2, "mean_mark": 4.0, "last_rating": 3}, "u2": []}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	b, err := store.Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, b.Set.Title.Positions("red", "u1"))
	assert.NotContains(t, b.Set.Title, "shirt")
	assert.NotContains(t, b.Set.Title, "ghost")
	assert.True(t, b.Set.Brand.Has("acme", "u1"))
	assert.Equal(t, 4.0, b.Set.Reviews["u1"].AverageRating)
	assert.Equal(t, 5, b.Skipped)
	assert.Equal(t, index.DefaultOriginSynonyms(), b.Synonyms)
	assert.Empty(t, b.Manifest.Version)
}

func TestWriterPrunesOldBuilds(t *testing.T) {
	root := t.TempDir()
	w := store.NewWriter(root, 2)
	set := buildSample(t)
	var last store.Manifest
	for i := 0; i < 4; i++ {
		m, err := w.Write(set, nil)
		require.NoError(t, err)
		last = m
	}
	versions, err := store.ListBuilds(root)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
	assert.Contains(t, versions, last.Version)
}
