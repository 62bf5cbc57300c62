// Package indexer builds the product search indexes from a corpus.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// BuildObserver receives build timings. pkg/metrics implements it.
type BuildObserver interface {
	ObserveBuild(duration time.Duration, documents int, err error)
}

type Builder struct {
	workers  int
	observer BuildObserver
	logger   *slog.Logger
}

// NewBuilder returns a Builder running workers shards in parallel. A
// non-positive count uses one shard per CPU.
func NewBuilder(workers int) *Builder {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Builder{
		workers: workers,
		logger:  slog.Default().With("component", "index-builder"),
	}
}

func (b *Builder) WithObserver(o BuildObserver) *Builder {
	b.observer = o
	return b
}

// Build indexes docs in a single pass. URL metadata is merged into each
// document first. On error nothing is returned.
func (b *Builder) Build(ctx context.Context, docs []catalog.Document) (*index.Set, error) {
	start := time.Now()
	set, err := b.build(ctx, docs)
	if b.observer != nil {
		b.observer.ObserveBuild(time.Since(start), len(docs), err)
	}
	if err != nil {
		return nil, err
	}
	stats := set.Stats()
	b.logger.Info("index build complete",
		"documents", stats.Documents,
		"title_terms", stats.TitleTerms,
		"description_terms", stats.DescriptionTerms,
		"brand_terms", stats.BrandTerms,
		"origin_terms", stats.OriginTerms,
		"reviewed_documents", stats.ReviewedDocuments,
		"duration", time.Since(start),
	)
	return set, nil
}

func (b *Builder) build(ctx context.Context, docs []catalog.Document) (*index.Set, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("building index: %w", apperrors.ErrEmptyCorpus)
	}
	ranges := shard.Partition(len(docs), b.workers)
	partials := make([]*index.Set, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			partial, err := buildShard(gctx, docs[r.Start:r.End])
			if err != nil {
				return fmt.Errorf("shard %d: %w", r.ID, err)
			}
			partials[r.ID] = partial
			b.logger.Debug("shard built", "shard_id", r.ID, "documents", r.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	set := index.NewSet()
	set.Documents = make([]catalog.Document, 0, len(docs))
	for _, partial := range partials {
		set.Merge(partial)
	}
	return set, nil
}

// cancelCheckEvery bounds how many documents a shard indexes between
// context checks.
const cancelCheckEvery = 256

func buildShard(ctx context.Context, docs []catalog.Document) (*index.Set, error) {
	set := index.NewSet()
	set.Documents = make([]catalog.Document, 0, len(docs))
	for i, doc := range docs {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		doc = catalog.MergeURLInfo(doc)
		addDocument(set, doc)
		set.Documents = append(set.Documents, doc)
	}
	return set, nil
}

func addDocument(set *index.Set, doc catalog.Document) {
	for _, tok := range tokenizer.IndexTokens(doc.Title) {
		set.Title.Add(tok.Term, doc.URL, tok.Position)
	}
	for _, tok := range tokenizer.IndexTokens(doc.Description) {
		set.Description.Add(tok.Term, doc.URL, tok.Position)
	}
	if doc.HasBrand() {
		for _, term := range tokenizer.Terms(doc.Brand) {
			set.Brand.Add(term, doc.URL)
		}
	}
	if origin, ok := doc.Origin(); ok {
		for _, term := range tokenizer.Terms(origin) {
			set.Origin.Add(term, doc.URL)
		}
	}
	if stats, ok := index.NewReviewStats(doc.Reviews); ok {
		set.Reviews[doc.URL] = stats
	}
}
