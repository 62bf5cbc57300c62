// Package proto defines the message types exchanged over the internal
// JSON-over-TCP RPC layer (see pkg/grpc). They carry JSON struct tags and
// have no dependencies so any service can import them.
package proto

// Method names served by the searcher.
const (
	MethodSearch = "SearchService.Search"
	MethodStats  = "SearchService.Stats"
	MethodReload = "SearchService.Reload"
	MethodHealth = "SearchService.Health"
)

// HealthCheckResponse mirrors the gRPC health checking protocol.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING
}

// SearchRequest is the input to the Search RPC. Limit 0 uses the server
// default.
type SearchRequest struct {
	Query      string `json:"query"`
	SearchType string `json:"search_type,omitempty"`
	Limit      int32  `json:"limit,omitempty"`
	Save       bool   `json:"save,omitempty"`
}

// SearchResponse is the output of the Search RPC.
type SearchResponse struct {
	Metadata  SearchMetadata `json:"metadata"`
	Results   []SearchResult `json:"results"`
	CacheHit  bool           `json:"cache_hit"`
	LatencyMs float64        `json:"latency_ms"`
}

type SearchMetadata struct {
	Query             string `json:"query"`
	SearchType        string `json:"search_type"`
	Timestamp         string `json:"timestamp"`
	TotalDocuments    int32  `json:"total_documents"`
	FilteredDocuments int32  `json:"filtered_documents"`
}

// SearchResult is a single scored product.
type SearchResult struct {
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Description string      `json:"description"`
	Scores      ScoreDetail `json:"scores"`
	Score       float64     `json:"score"`
}

// ScoreDetail breaks a result's score into its components.
type ScoreDetail struct {
	BM25        float64 `json:"bm25_score"`
	ExactMatch  float64 `json:"exact_match_score"`
	Review      float64 `json:"review_score"`
	TitleMatch  float64 `json:"title_match_score"`
	OriginMatch float64 `json:"origin_match_score"`
	Final       float64 `json:"final_score"`
}

// StatsRequest has no fields.
type StatsRequest struct{}

// StatsResponse describes the live index snapshot.
type StatsResponse struct {
	Version             string `json:"version"`
	LoadedAt            string `json:"loaded_at"`
	Documents           int64  `json:"documents"`
	TitleTerms          int64  `json:"title_terms"`
	DescriptionTerms    int64  `json:"description_terms"`
	BrandTerms          int64  `json:"brand_terms"`
	OriginTerms         int64  `json:"origin_terms"`
	ReviewedDocuments   int64  `json:"reviewed_documents"`
	TitlePostings       int64  `json:"title_postings"`
	DescriptionPostings int64  `json:"description_postings"`
}

// ReloadRequest has no fields.
type ReloadRequest struct{}

// ReloadResponse reports the snapshot live after a reload.
type ReloadResponse struct {
	Version   string `json:"version"`
	Documents int64  `json:"documents"`
}
