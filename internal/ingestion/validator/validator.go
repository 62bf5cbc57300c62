// Package validator provides input validation for ingested product
// documents and returns per-field error details.
package validator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
)

const (
	maxURLLength         = 2048
	maxTitleLength       = 1024
	maxDescriptionLength = 1 << 20
	maxFeatures          = 256
	maxReviews           = 10000
	maxRating            = 5
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument checks one product document. Field names in the returned
// ValidationError use the document's JSON names.
func ValidateDocument(doc *catalog.Document) error {
	errs := make(map[string]string)

	if msg := checkURL(doc.URL); msg != "" {
		errs["url"] = msg
	}
	title := strings.TrimSpace(doc.Title)
	switch {
	case title == "":
		errs["title"] = "title is required"
	case utf8.RuneCountInString(title) > maxTitleLength:
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	if len(doc.Description) > maxDescriptionLength {
		errs["description"] = fmt.Sprintf("description must be at most %d bytes", maxDescriptionLength)
	}
	if len(doc.Features) > maxFeatures {
		errs["product_features"] = fmt.Sprintf("at most %d features are allowed", maxFeatures)
	}
	for key := range doc.Features {
		if strings.TrimSpace(key) == "" {
			errs["product_features"] = "feature names must not be empty"
			break
		}
	}
	if len(doc.Reviews) > maxReviews {
		errs["product_reviews"] = fmt.Sprintf("at most %d reviews are allowed", maxReviews)
	}
	for i, r := range doc.Reviews {
		if r.Rating != nil && (*r.Rating < 0 || *r.Rating > maxRating) {
			errs["product_reviews"] = fmt.Sprintf("review %d: rating must be between 0 and %d", i, maxRating)
			break
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateBatch validates every document and keys failures by position, so
// fields read "documents[3].url".
func ValidateBatch(docs []catalog.Document, maxBatch int) error {
	errs := make(map[string]string)
	if len(docs) == 0 {
		errs["documents"] = "at least one document is required"
	}
	if maxBatch > 0 && len(docs) > maxBatch {
		errs["documents"] = fmt.Sprintf("at most %d documents per request", maxBatch)
	}
	seen := make(map[string]int, len(docs))
	for i := range docs {
		if err := ValidateDocument(&docs[i]); err != nil {
			for field, msg := range err.(*ValidationError).Fields {
				errs[fmt.Sprintf("documents[%d].%s", i, field)] = msg
			}
		}
		if first, dup := seen[docs[i].URL]; dup && docs[i].URL != "" {
			errs[fmt.Sprintf("documents[%d].url", i)] = fmt.Sprintf("duplicates documents[%d]", first)
		} else {
			seen[docs[i].URL] = i
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "url is required"
	}
	if len(raw) > maxURLLength {
		return fmt.Sprintf("url must be at most %d characters", maxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "url is not valid"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "url must be http or https"
	}
	if u.Host == "" {
		return "url must include a host"
	}
	return ""
}
