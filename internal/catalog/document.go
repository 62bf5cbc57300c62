// Package catalog defines the product document record produced by the
// crawler, reads and writes corpus files, and persists documents in
// PostgreSQL for the ingestion pipeline.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OriginFeature is the product_features key holding the country of origin.
const OriginFeature = "made in"

// Document is a single crawled product page. URL is the identity.
type Document struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Brand       string   `json:"brand,omitempty"`
	Features    Features `json:"product_features,omitempty"`
	Reviews     []Review `json:"product_reviews,omitempty"`
	Links       []string `json:"links,omitempty"`
	ProductID   *string  `json:"product_id,omitempty"`
	Variant     *string  `json:"variant,omitempty"`
}

// Review is one customer review. A nil Rating means the crawler found no
// rating on the review.
type Review struct {
	Rating *float64 `json:"rating,omitempty"`
}

// Origin returns the "made in" feature value.
func (d *Document) Origin() (string, bool) {
	v, ok := d.Features[OriginFeature]
	return v, ok
}

// HasBrand reports whether the crawler captured a brand.
func (d *Document) HasBrand() bool {
	return d.Brand != ""
}

// Features maps feature names to values. Crawled pages sometimes carry
// numbers or booleans as feature values; those are kept as their JSON text.
type Features map[string]string

func (f *Features) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Features, len(raw))
	for key, value := range raw {
		text := strings.TrimSpace(string(value))
		if text == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			out[key] = s
			continue
		}
		if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
			return fmt.Errorf("feature %q: nested values are not supported", key)
		}
		out[key] = text
	}
	*f = out
	return nil
}

// RatingOrZero returns the review rating, or 0 when absent.
func (r Review) RatingOrZero() float64 {
	if r.Rating == nil {
		return 0
	}
	return *r.Rating
}

// UnmarshalJSON accepts ratings encoded as numbers or numeric strings.
func (r *Review) UnmarshalJSON(data []byte) error {
	var raw struct {
		Rating json.RawMessage `json:"rating"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Rating = nil
	text := strings.TrimSpace(string(raw.Rating))
	if text == "" || text == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw.Rating, &f); err == nil {
		r.Rating = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Rating, &s); err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("rating %q: %w", s, err)
	}
	r.Rating = &f
	return nil
}
