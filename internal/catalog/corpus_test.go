package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCorpusJSONL(t *testing.T) {
	input := strings.Join([]string{
		`{"url":"a","title":"First"}`,
		``,
		`{not json`,
		`{"title":"no url"}`,
		`{"url":"b","title":"Second"}`,
		`{"url":"a","title":"First again"}`,
	}, "\n")

	docs, stats, err := ReadCorpus(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].URL)
	assert.Equal(t, "First again", docs[0].Title)
	assert.Equal(t, "b", docs[1].URL)
	assert.Equal(t, LoadStats{Loaded: 2, Malformed: 1, MissingURL: 1, Duplicates: 1}, stats)
}

func TestReadCorpusJSONArray(t *testing.T) {
	input := "\ufeff  [ {\"url\":\"a\"}, {\"url\":\"b\"}, 5 ]"
	docs, stats, err := ReadCorpus(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, stats.Malformed)
}

func TestReadCorpusEmpty(t *testing.T) {
	docs, stats, err := ReadCorpus(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, stats.Loaded)
}

func TestWriteCorpusRoundTrip(t *testing.T) {
	docs := []Document{
		{URL: "https://shop.example/product/1?a=1&b=2", Title: "Salt & Pepper <Set>"},
		{URL: "https://shop.example/product/2", Title: "Mill", Features: Features{"made in": "Italy"}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCorpus(&buf, docs))
	assert.Contains(t, buf.String(), "Salt & Pepper <Set>")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	got, _, err := ReadCorpus(&buf)
	require.NoError(t, err)
	assert.Equal(t, docs, got)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"url":"a"}`+"\n"), 0o644))

	docs, _, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, _, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.jsonl")}.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
