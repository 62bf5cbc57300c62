package index

import "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"

// Set is the complete output of one build.
type Set struct {
	Title       Positional
	Description Positional
	Brand       Feature
	Origin      Feature
	Reviews     Reviews
	Documents   []catalog.Document
}

func NewSet() *Set {
	return &Set{
		Title:       make(Positional),
		Description: make(Positional),
		Brand:       make(Feature),
		Origin:      make(Feature),
		Reviews:     make(Reviews),
	}
}

// Merge appends other's documents and folds in its indexes. Sets built from
// disjoint document ranges merge without conflicts.
func (s *Set) Merge(other *Set) {
	s.Title.merge(other.Title)
	s.Description.merge(other.Description)
	s.Brand.merge(other.Brand)
	s.Origin.merge(other.Origin)
	for url, stats := range other.Reviews {
		s.Reviews[url] = stats
	}
	s.Documents = append(s.Documents, other.Documents...)
}

// Stats describes the size of a Set.
type Stats struct {
	Documents           int `json:"documents"`
	TitleTerms          int `json:"title_terms"`
	DescriptionTerms    int `json:"description_terms"`
	TitlePostings       int `json:"title_postings"`
	DescriptionPostings int `json:"description_postings"`
	BrandTerms          int `json:"brand_terms"`
	OriginTerms         int `json:"origin_terms"`
	ReviewedDocuments   int `json:"reviewed_documents"`
}

func (s *Set) Stats() Stats {
	return Stats{
		Documents:           len(s.Documents),
		TitleTerms:          len(s.Title),
		DescriptionTerms:    len(s.Description),
		TitlePostings:       s.Title.PostingCount(),
		DescriptionPostings: s.Description.PostingCount(),
		BrandTerms:          len(s.Brand),
		OriginTerms:         len(s.Origin),
		ReviewedDocuments:   len(s.Reviews),
	}
}
