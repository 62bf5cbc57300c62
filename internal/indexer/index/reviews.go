package index

import (
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
)

// ReviewStats summarises a document's reviews. LastRating is nil when the
// final review carries no rating.
type ReviewStats struct {
	TotalReviews  int      `json:"total_reviews"`
	AverageRating float64  `json:"average_rating"`
	LastRating    *float64 `json:"last_rating"`
}

// NewReviewStats derives stats from reviews in document order. Unrated
// reviews count as 0 in the average. ok is false for an empty slice.
func NewReviewStats(reviews []catalog.Review) (ReviewStats, bool) {
	if len(reviews) == 0 {
		return ReviewStats{}, false
	}
	sum := 0.0
	for _, r := range reviews {
		sum += r.RatingOrZero()
	}
	stats := ReviewStats{
		TotalReviews:  len(reviews),
		AverageRating: sum / float64(len(reviews)),
	}
	if last := reviews[len(reviews)-1].Rating; last != nil {
		v := *last
		stats.LastRating = &v
	}
	return stats, true
}

// UnmarshalJSON also accepts the older mean_mark name for the average.
func (s *ReviewStats) UnmarshalJSON(data []byte) error {
	var raw struct {
		TotalReviews  int      `json:"total_reviews"`
		AverageRating *float64 `json:"average_rating"`
		MeanMark      *float64 `json:"mean_mark"`
		LastRating    *float64 `json:"last_rating"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ReviewStats{TotalReviews: raw.TotalReviews, LastRating: raw.LastRating}
	switch {
	case raw.AverageRating != nil:
		s.AverageRating = *raw.AverageRating
	case raw.MeanMark != nil:
		s.AverageRating = *raw.MeanMark
	}
	return nil
}

// Reviews maps a document url to its review stats. Documents without
// reviews are absent.
type Reviews map[string]ReviewStats
