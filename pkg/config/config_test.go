package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Indexer.Source)
	assert.Equal(t, 1.5, cfg.Search.Ranking.K1)
	assert.Equal(t, 0.75, cfg.Search.Ranking.B)
	assert.Equal(t, 300.0, cfg.Search.Ranking.AvgDocLength)
	assert.Equal(t, 0.4, cfg.Search.Ranking.BM25Weight)
	assert.Equal(t, 2.0, cfg.Search.Ranking.ExactMatchBonus)
	assert.False(t, cfg.Search.Ranking.DedupeDocFreq)
	assert.Positive(t, cfg.Indexer.Workers)
}

func TestLoadYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	yml := `
indexer:
  source: postgres
  workers: 2
search:
  defaultLimit: 5
  ranking:
    avgDocLength: 120
rateLimit:
  requestsPerWindow: 10
  window: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("PS_SEARCH_RESULTS_DIR", "/tmp/results")
	t.Setenv("PS_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Indexer.Source)
	assert.Equal(t, 2, cfg.Indexer.Workers)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 120.0, cfg.Search.Ranking.AvgDocLength)
	// Untouched nested defaults survive a partial ranking block.
	assert.Equal(t, 1.5, cfg.Search.Ranking.K1)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "/tmp/results", cfg.Search.ResultsDir)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Indexer.Source = "s3" }},
		{"zero workers", func(c *Config) { c.Indexer.Workers = 0 }},
		{"zero avg length", func(c *Config) { c.Search.Ranking.AvgDocLength = 0 }},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	dsn := Default().Postgres.DSN()
	assert.Contains(t, dsn, "dbname=productsearch")
	assert.Contains(t, dsn, "sslmode=disable")
}
