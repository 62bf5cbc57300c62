// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, etc.).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest  string `yaml:"documentIngest"`
	IndexComplete   string `yaml:"indexComplete"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls where the corpus comes from, where builds are
// written and how the build is parallelised.
type IndexerConfig struct {
	// Source is "file" (CorpusPath) or "postgres" (products table).
	Source       string `yaml:"source"`
	CorpusPath   string `yaml:"corpusPath"`
	OutputDir    string `yaml:"outputDir"`
	SynonymsPath string `yaml:"synonymsPath"`
	Workers      int    `yaml:"workers"`
	// RetainBuilds is how many build directories survive pruning.
	RetainBuilds    int           `yaml:"retainBuilds"`
	RebuildDebounce time.Duration `yaml:"rebuildDebounce"`
}

// SearchConfig controls query execution, ranking and result persistence.
type SearchConfig struct {
	IndexDir        string        `yaml:"indexDir"`
	ResultsDir      string        `yaml:"resultsDir"`
	SaveResults     bool          `yaml:"saveResults"`
	SaveBuffer      int           `yaml:"saveBuffer"`
	SaveTimeout     time.Duration `yaml:"saveTimeout"`
	DefaultLimit    int           `yaml:"defaultLimit"`
	MaxResults      int           `yaml:"maxResults"`
	RPCPort         int           `yaml:"rpcPort"`
	Ranking         RankingConfig `yaml:"ranking"`
	AnalyticsBuffer int           `yaml:"analyticsBuffer"`
}

// RankingConfig exposes the ranking weights and BM25 parameters.
type RankingConfig struct {
	K1               float64 `yaml:"k1"`
	B                float64 `yaml:"b"`
	AvgDocLength     float64 `yaml:"avgDocLength"`
	BM25Weight       float64 `yaml:"bm25Weight"`
	ExactMatchBonus  float64 `yaml:"exactMatchBonus"`
	ReviewWeight     float64 `yaml:"reviewWeight"`
	TitleMatchWeight float64 `yaml:"titleMatchWeight"`
	OriginMatchBonus float64 `yaml:"originMatchBonus"`
	DedupeDocFreq    bool    `yaml:"dedupeDocFreq"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging for the query pipeline.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// RateLimitConfig controls per-client request limiting on the search API.
// A zero RequestsPerWindow disables limiting.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requestsPerWindow"`
	Window            time.Duration `yaml:"window"`
}

// IngestionConfig controls the document ingestion service.
type IngestionConfig struct {
	Port         int   `yaml:"port"`
	MaxBodyBytes int64 `yaml:"maxBodyBytes"`
	MaxBatchSize int   `yaml:"maxBatchSize"`
}

// AnalyticsConfig controls event batching and the aggregation service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	LatencySamples   int           `yaml:"latencySamples"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects values that would make the engine misbehave silently.
func (c *Config) Validate() error {
	switch c.Indexer.Source {
	case "file", "postgres":
	default:
		return fmt.Errorf("indexer.source must be \"file\" or \"postgres\", got %q", c.Indexer.Source)
	}
	if c.Indexer.Workers < 1 {
		return fmt.Errorf("indexer.workers must be positive, got %d", c.Indexer.Workers)
	}
	if c.Search.Ranking.AvgDocLength <= 0 {
		return fmt.Errorf("search.ranking.avgDocLength must be positive, got %v", c.Search.Ranking.AvgDocLength)
	}
	if c.Search.MaxResults > 0 && c.Search.DefaultLimit > c.Search.MaxResults {
		return fmt.Errorf("search.defaultLimit (%d) exceeds search.maxResults (%d)", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "productsearch",
			User:            "productsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "productsearch-group",
			Topics: KafkaTopics{
				DocumentIngest:  "product-ingest",
				IndexComplete:   "index.complete",
				CacheInvalidate: "cache-invalidate",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			Source:          "file",
			CorpusPath:      "data/products.jsonl",
			OutputDir:       "data/index",
			Workers:         runtime.NumCPU(),
			RetainBuilds:    3,
			RebuildDebounce: 30 * time.Second,
		},
		Search: SearchConfig{
			IndexDir:        "data/index",
			ResultsDir:      "data/search_results",
			SaveBuffer:      256,
			SaveTimeout:     5 * time.Second,
			DefaultLimit:    10,
			MaxResults:      100,
			AnalyticsBuffer: 10000,
			Ranking: RankingConfig{
				K1:               1.5,
				B:                0.75,
				AvgDocLength:     300,
				BM25Weight:       0.4,
				ExactMatchBonus:  2.0,
				ReviewWeight:     0.3,
				TitleMatchWeight: 0.2,
				OriginMatchBonus: 0.1,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		RateLimit: RateLimitConfig{
			Window: time.Minute,
		},
		Ingestion: IngestionConfig{
			Port:         8081,
			MaxBodyBytes: 10 << 20,
			MaxBatchSize: 1000,
		},
		Analytics: AnalyticsConfig{
			Port:             8082,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
			LatencySamples:   10000,
		},
	}
}

// applyEnvOverrides reads PS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PS_INDEXER_SOURCE"); v != "" {
		cfg.Indexer.Source = v
	}
	if v := os.Getenv("PS_INDEXER_CORPUS_PATH"); v != "" {
		cfg.Indexer.CorpusPath = v
	}
	if v := os.Getenv("PS_INDEXER_OUTPUT_DIR"); v != "" {
		cfg.Indexer.OutputDir = v
	}
	if v := os.Getenv("PS_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("PS_SEARCH_INDEX_DIR"); v != "" {
		cfg.Search.IndexDir = v
	}
	if v := os.Getenv("PS_SEARCH_RESULTS_DIR"); v != "" {
		cfg.Search.ResultsDir = v
	}
	if v := os.Getenv("PS_SEARCH_SAVE_RESULTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.SaveResults = b
		}
	}
	if v := os.Getenv("PS_SEARCH_AVG_DOC_LENGTH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.Ranking.AvgDocLength = f
		}
	}
	if v := os.Getenv("PS_INGESTION_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.Port = port
		}
	}
	if v := os.Getenv("PS_ANALYTICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Analytics.Port = port
		}
	}
	if v := os.Getenv("PS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
