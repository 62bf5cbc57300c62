// Package query normalises raw search strings into expanded token sets.
package query

import (
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/tokenizer"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeAny   Mode = "any"
	ModeAll   Mode = "all"
	ModeExact Mode = "exact"
)

// ParseMode maps a search_type value to a Mode. Unknown values, including
// the empty string, fall back to ModeAny with ok=false.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAny:
		return ModeAny, true
	case ModeAll:
		return ModeAll, true
	case ModeExact:
		return ModeExact, true
	}
	return ModeAny, false
}

// Plan is a processed query.
type Plan struct {
	Raw string
	// Normalized is the lowercased, trimmed query used by exact matching.
	Normalized string
	Mode       Mode
	Tokens     []string
}

// Processor removes stopwords and expands origin synonyms. It is safe for
// concurrent use; its tables are never modified after construction.
type Processor struct {
	stopwords map[string]struct{}
	expansion map[string][]string
}

// NewProcessor builds a Processor. Synonym groups are made symmetric: any
// member of a group expands to the canonical key and every other member.
func NewProcessor(stopwords []string, synonyms index.Synonyms) *Processor {
	p := &Processor{
		stopwords: make(map[string]struct{}, len(stopwords)),
		expansion: make(map[string][]string),
	}
	for _, w := range stopwords {
		p.stopwords[strings.ToLower(w)] = struct{}{}
	}
	for key, values := range synonyms.Normalize() {
		group := append([]string{key}, values...)
		for _, member := range group {
			p.expansion[member] = appendUnique(p.expansion[member], group...)
		}
	}
	return p
}

// Process tokenizes raw with the query rules, drops stopwords and expands
// synonyms. The result is deduplicated and sorted.
func (p *Processor) Process(raw string) []string {
	seen := make(map[string]struct{})
	for _, tok := range tokenizer.QueryTokens(raw) {
		if _, stop := p.stopwords[tok]; stop {
			continue
		}
		seen[tok] = struct{}{}
		for _, syn := range p.expansion[tok] {
			seen[syn] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// Parse processes raw and resolves the mode. ok reports whether mode was
// recognised.
func (p *Processor) Parse(raw, mode string) (plan Plan, ok bool) {
	m, ok := ParseMode(mode)
	return Plan{
		Raw:        raw,
		Normalized: tokenizer.Normalize(raw),
		Mode:       m,
		Tokens:     p.Process(raw),
	}, ok
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
