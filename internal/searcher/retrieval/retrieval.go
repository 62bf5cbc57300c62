// Package retrieval selects candidate documents for a query using boolean
// matching over the field and feature indexes.
package retrieval

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
)

// DocSet is a set of document urls.
type DocSet map[string]struct{}

// Sorted returns the urls in ascending order.
func (s DocSet) Sorted() []string {
	urls := make([]string, 0, len(s))
	for url := range s {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

type exactKeys struct {
	url    string
	title  string
	brand  string
	origin string
}

// Retriever is bound to one index set and is safe for concurrent use.
type Retriever struct {
	set   *index.Set
	exact []exactKeys
}

func New(set *index.Set) *Retriever {
	r := &Retriever{
		set:   set,
		exact: make([]exactKeys, 0, len(set.Documents)),
	}
	for i := range set.Documents {
		doc := &set.Documents[i]
		keys := exactKeys{url: doc.URL, title: tokenizer.Normalize(doc.Title)}
		if doc.HasBrand() {
			keys.brand = tokenizer.Normalize(doc.Brand)
		}
		if origin, ok := doc.Origin(); ok {
			keys.origin = tokenizer.Normalize(origin)
		}
		r.exact = append(r.exact, keys)
	}
	return r
}

// Retrieve dispatches on the plan's mode.
func (r *Retriever) Retrieve(plan query.Plan) DocSet {
	switch plan.Mode {
	case query.ModeAll:
		return r.All(plan.Tokens)
	case query.ModeExact:
		return r.Exact(plan.Normalized)
	default:
		return r.Any(plan.Tokens)
	}
}

// Any returns documents matching at least one token in title, description,
// brand or origin.
func (r *Retriever) Any(tokens []string) DocSet {
	result := make(DocSet)
	for _, tok := range tokens {
		r.addMatches(result, tok)
	}
	return result
}

// All returns documents matching every token, each in any field. No tokens
// yields an empty set.
func (r *Retriever) All(tokens []string) DocSet {
	if len(tokens) == 0 {
		return make(DocSet)
	}
	perToken := make([]DocSet, 0, len(tokens))
	for _, tok := range tokens {
		matches := make(DocSet)
		r.addMatches(matches, tok)
		if len(matches) == 0 {
			return make(DocSet)
		}
		perToken = append(perToken, matches)
	}
	return intersect(perToken)
}

// Exact scans the corpus for documents whose title, brand or origin equals
// the normalized query. An empty query matches nothing.
func (r *Retriever) Exact(normalized string) DocSet {
	result := make(DocSet)
	if normalized == "" {
		return result
	}
	for _, keys := range r.exact {
		if keys.title == normalized || keys.brand == normalized || keys.origin == normalized {
			result[keys.url] = struct{}{}
		}
	}
	return result
}

func (r *Retriever) addMatches(dst DocSet, tok string) {
	for url := range r.set.Title[tok] {
		dst[url] = struct{}{}
	}
	for url := range r.set.Description[tok] {
		dst[url] = struct{}{}
	}
	for url := range r.set.Brand[tok] {
		dst[url] = struct{}{}
	}
	for url := range r.set.Origin[tok] {
		dst[url] = struct{}{}
	}
}

// intersect starts from the smallest set and filters it by the rest.
func intersect(sets []DocSet) DocSet {
	smallest := 0
	for i, s := range sets {
		if len(s) < len(sets[smallest]) {
			smallest = i
		}
	}
	result := make(DocSet, len(sets[smallest]))
	for url := range sets[smallest] {
		result[url] = struct{}{}
	}
	for i, s := range sets {
		if i == smallest {
			continue
		}
		for url := range result {
			if _, ok := s[url]; !ok {
				delete(result, url)
			}
		}
	}
	return result
}
