// Package index holds the in-memory index structures produced by a build:
// positional field indexes, feature indexes and per-document review stats.
// A built Set is never mutated.
package index

import "sort"

// Postings maps a document url to the ordered token positions within one
// field.
type Postings map[string][]int

// Positional is a field inverted index: term -> url -> positions.
type Positional map[string]Postings

// Add records one occurrence of term in url at pos.
func (p Positional) Add(term, url string, pos int) {
	postings, ok := p[term]
	if !ok {
		postings = make(Postings)
		p[term] = postings
	}
	postings[url] = append(postings[url], pos)
}

// DocFreq is the number of documents containing term.
func (p Positional) DocFreq(term string) int {
	return len(p[term])
}

// Positions returns the positions of term in url, or nil.
func (p Positional) Positions(term, url string) []int {
	return p[term][url]
}

// URLs returns the documents containing term, sorted.
func (p Positional) URLs(term string) []string {
	postings := p[term]
	urls := make([]string, 0, len(postings))
	for url := range postings {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// PostingCount is the total number of (term, url) pairs.
func (p Positional) PostingCount() int {
	n := 0
	for _, postings := range p {
		n += len(postings)
	}
	return n
}

// merge folds other into p. Callers guarantee that a url appears in only one
// of the two indexes.
func (p Positional) merge(other Positional) {
	for term, postings := range other {
		dst, ok := p[term]
		if !ok {
			p[term] = postings
			continue
		}
		for url, positions := range postings {
			dst[url] = positions
		}
	}
}
