package index

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Synonyms maps a canonical country name to its alternate spellings.
type Synonyms map[string][]string

// DefaultOriginSynonyms is used when no synonym file is configured.
func DefaultOriginSynonyms() Synonyms {
	return Synonyms{
		"usa":     {"america", "us", "united-states", "american"},
		"france":  {"french"},
		"china":   {"chinese", "prc"},
		"germany": {"german", "deutschland"},
		"uk":      {"england", "britain", "british", "united-kingdom"},
		"japan":   {"japanese"},
		"italy":   {"italian"},
	}
}

// LoadSynonyms reads a {canonical: [synonym, ...]} JSON file. Keys and
// values are lowercased.
func LoadSynonyms(path string) (Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading synonyms %s: %w", path, err)
	}
	var raw Synonyms
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding synonyms %s: %w", path, err)
	}
	return raw.Normalize(), nil
}

// Normalize returns a copy with lowercased, trimmed, deduplicated and
// sorted entries.
func (s Synonyms) Normalize() Synonyms {
	out := make(Synonyms, len(s))
	for key, values := range s {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		seen := make(map[string]struct{}, len(values))
		list := out[key]
		for _, v := range list {
			seen[v] = struct{}{}
		}
		for _, v := range values {
			v = strings.ToLower(strings.TrimSpace(v))
			if _, dup := seen[v]; dup || v == "" || v == key {
				continue
			}
			seen[v] = struct{}{}
			list = append(list, v)
		}
		sort.Strings(list)
		out[key] = list
	}
	return out
}
