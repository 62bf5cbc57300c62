package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
)

// EventIndexComplete is the Event.Type published after a build is live.
const EventIndexComplete = "index.complete"

// IndexCompleteEvent tells searchers a new build is current.
type IndexCompleteEvent struct {
	Version   string    `json:"version"`
	Documents int       `json:"documents"`
	CreatedAt time.Time `json:"created_at"`
}

// Pipeline runs one full rebuild: load the corpus, build, publish.
type Pipeline struct {
	source   catalog.Source
	builder  *Builder
	writer   *store.Writer
	synonyms index.Synonyms
	logger   *slog.Logger
}

// Result summarises a Run.
type Result struct {
	Manifest store.Manifest
	Load     catalog.LoadStats
	// LoadedAt is when the corpus was read. Rows changed later are not in
	// this build.
	LoadedAt time.Time
	URLs     []string
	Duration time.Duration
}

func NewPipeline(source catalog.Source, builder *Builder, writer *store.Writer, synonyms index.Synonyms) *Pipeline {
	if synonyms == nil {
		synonyms = index.DefaultOriginSynonyms()
	}
	return &Pipeline{
		source:   source,
		builder:  builder,
		writer:   writer,
		synonyms: synonyms,
		logger:   slog.Default().With("component", "index-pipeline"),
	}
}

func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	loadedAt := time.Now().UTC()
	docs, stats, err := p.source.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading corpus: %w", err)
	}
	p.logger.Info("corpus loaded",
		"documents", stats.Loaded,
		"malformed", stats.Malformed,
		"missing_url", stats.MissingURL,
		"duplicates", stats.Duplicates,
	)
	set, err := p.builder.Build(ctx, docs)
	if err != nil {
		return Result{}, err
	}
	manifest, err := p.writer.Write(set, p.synonyms)
	if err != nil {
		return Result{}, fmt.Errorf("writing index: %w", err)
	}
	urls := make([]string, len(set.Documents))
	for i, d := range set.Documents {
		urls[i] = d.URL
	}
	return Result{
		Manifest: manifest,
		Load:     stats,
		LoadedAt: loadedAt,
		URLs:     urls,
		Duration: time.Since(start),
	}, nil
}
