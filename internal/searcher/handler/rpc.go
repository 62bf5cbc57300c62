package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/proto"
)

// RegisterRPC exposes the search service on s.
func (h *Handler) RegisterRPC(s *grpc.Server) {
	s.Register(proto.MethodSearch, h.rpcSearch)
	s.Register(proto.MethodStats, h.rpcStats)
	s.Register(proto.MethodReload, h.rpcReload)
	s.Register(proto.MethodHealth, h.rpcHealth)
}

func (h *Handler) rpcSearch(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.SearchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decoding search request: %w: %w", apperrors.ErrInvalidInput, err)
	}
	if req.Query == "" {
		return nil, fmt.Errorf("query is required: %w", apperrors.ErrInvalidInput)
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = -1
	}
	out, err := h.run(ctx, engine.Request{
		Query: req.Query,
		Type:  req.SearchType,
		Limit: limit,
		Save:  req.Save,
	})
	if err != nil {
		return nil, err
	}

	env := out.Envelope
	resp := &proto.SearchResponse{
		Metadata: proto.SearchMetadata{
			Query:             env.Metadata.Query,
			SearchType:        string(env.Metadata.SearchType),
			Timestamp:         env.Metadata.Timestamp.UTC().Format(time.RFC3339Nano),
			TotalDocuments:    int32(env.Metadata.TotalDocuments),
			FilteredDocuments: int32(env.Metadata.FilteredDocuments),
		},
		Results:   make([]proto.SearchResult, len(env.Results)),
		CacheHit:  out.CacheHit,
		LatencyMs: float64(out.Latency.Microseconds()) / 1000,
	}
	for i, r := range env.Results {
		resp.Results[i] = proto.SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
			Score:       r.Score,
			Scores: proto.ScoreDetail{
				BM25:        r.Scores.BM25,
				ExactMatch:  r.Scores.ExactMatch,
				Review:      r.Scores.Review,
				TitleMatch:  r.Scores.TitleMatch,
				OriginMatch: r.Scores.OriginMatch,
				Final:       r.Scores.Final,
			},
		}
	}
	return resp, nil
}

func (h *Handler) rpcStats(ctx context.Context, _ json.RawMessage) (any, error) {
	stats, err := h.engine.Stats()
	if err != nil {
		return nil, err
	}
	return &proto.StatsResponse{
		Version:             stats.Version,
		LoadedAt:            stats.LoadedAt.UTC().Format(time.RFC3339Nano),
		Documents:           int64(stats.Index.Documents),
		TitleTerms:          int64(stats.Index.TitleTerms),
		DescriptionTerms:    int64(stats.Index.DescriptionTerms),
		BrandTerms:          int64(stats.Index.BrandTerms),
		OriginTerms:         int64(stats.Index.OriginTerms),
		ReviewedDocuments:   int64(stats.Index.ReviewedDocuments),
		TitlePostings:       int64(stats.Index.TitlePostings),
		DescriptionPostings: int64(stats.Index.DescriptionPostings),
	}, nil
}

func (h *Handler) rpcReload(ctx context.Context, _ json.RawMessage) (any, error) {
	snap, err := h.reload(ctx)
	if err != nil {
		return nil, err
	}
	return &proto.ReloadResponse{Version: snap.Version, Documents: int64(len(snap.Set.Documents))}, nil
}

func (h *Handler) rpcHealth(ctx context.Context, _ json.RawMessage) (any, error) {
	if h.engine.Snapshot() == nil {
		return &proto.HealthCheckResponse{Status: "NOT_SERVING"}, nil
	}
	return &proto.HealthCheckResponse{Status: "SERVING"}, nil
}
