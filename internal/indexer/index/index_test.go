package index

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(v float64) *float64 { return &v }

func TestPositionalAdd(t *testing.T) {
	p := make(Positional)
	p.Add("red", "u1", 0)
	p.Add("red", "u1", 3)
	p.Add("red", "u2", 1)

	assert.Equal(t, []int{0, 3}, p.Positions("red", "u1"))
	assert.Equal(t, 2, p.DocFreq("red"))
	assert.Equal(t, 0, p.DocFreq("blue"))
	assert.Equal(t, []string{"u1", "u2"}, p.URLs("red"))
	assert.Equal(t, 2, p.PostingCount())
}

func TestFeatureJSONIsSorted(t *testing.T) {
	f := make(Feature)
	f.Add("usa", "u3")
	f.Add("usa", "u1")
	f.Add("usa", "u1")
	f.Add("france", "u2")

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"france":["u2"],"usa":["u1","u3"]}`, string(data))
	assert.Equal(t, `{"france":["u2"],"usa":["u1","u3"]}`, string(data))

	var back Feature
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Has("usa", "u3"))
	assert.False(t, back.Has("france", "u1"))
}

func TestFeatureJSONKeepsAmpersand(t *testing.T) {
	f := make(Feature)
	f.Add("acme", "https://s/product/1?variant=a&size=m")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(f))
	assert.Contains(t, buf.String(), "variant=a&size=m")
	assert.NotContains(t, buf.String(), `\u0026`)
}

func TestNewReviewStats(t *testing.T) {
	stats, ok := NewReviewStats([]catalog.Review{{Rating: rating(5)}, {Rating: rating(3)}})
	require.True(t, ok)
	assert.Equal(t, 2, stats.TotalReviews)
	assert.Equal(t, 4.0, stats.AverageRating)
	require.NotNil(t, stats.LastRating)
	assert.Equal(t, 3.0, *stats.LastRating)

	stats, ok = NewReviewStats([]catalog.Review{{Rating: rating(4)}, {}})
	require.True(t, ok)
	assert.Equal(t, 2.0, stats.AverageRating)
	assert.Nil(t, stats.LastRating)

	_, ok = NewReviewStats(nil)
	assert.False(t, ok)
}

func TestReviewStatsMeanMarkAlias(t *testing.T) {
	var s ReviewStats
	require.NoError(t, json.Unmarshal([]byte(`{"total_reviews":3,"mean_mark":4.5,"last_rating":null}`), &s))
	assert.Equal(t, 4.5, s.AverageRating)
	assert.Nil(t, s.LastRating)

	require.NoError(t, json.Unmarshal([]byte(`{"total_reviews":3,"average_rating":2,"mean_mark":4.5}`), &s))
	assert.Equal(t, 2.0, s.AverageRating)
}

func TestSetMerge(t *testing.T) {
	a := NewSet()
	a.Title.Add("red", "u1", 0)
	a.Brand.Add("acme", "u1")
	a.Documents = []catalog.Document{{URL: "u1"}}

	b := NewSet()
	b.Title.Add("red", "u2", 2)
	b.Brand.Add("acme", "u2")
	b.Reviews["u2"] = ReviewStats{TotalReviews: 1}
	b.Documents = []catalog.Document{{URL: "u2"}}

	a.Merge(b)
	assert.Equal(t, []string{"u1", "u2"}, a.Title.URLs("red"))
	assert.Equal(t, []int{2}, a.Title.Positions("red", "u2"))
	assert.Equal(t, []string{"u1", "u2"}, a.Brand.URLs("acme"))
	assert.Len(t, a.Reviews, 1)
	assert.Equal(t, "u1", a.Documents[0].URL)
	assert.Equal(t, "u2", a.Documents[1].URL)

	stats := a.Stats()
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.TitlePostings)
}

func TestSynonymsNormalize(t *testing.T) {
	got := Synonyms{" USA ": {"America", "us", "america", "usa", ""}}.Normalize()
	assert.Equal(t, Synonyms{"usa": {"america", "us"}}, got)
}

func TestLoadSynonyms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Spain":["Spanish","espana"]}`), 0o644))

	syn, err := LoadSynonyms(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"espana", "spanish"}, syn["spain"])

	_, err = LoadSynonyms(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultOriginSynonymsIncludeAmerican(t *testing.T) {
	assert.Contains(t, DefaultOriginSynonyms()["usa"], "american")
}
