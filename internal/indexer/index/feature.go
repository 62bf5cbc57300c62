package index

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Feature maps a feature token to the set of documents carrying it.
// It serialises as {token: [url, ...]} with sorted url lists.
type Feature map[string]map[string]struct{}

func (f Feature) Add(term, url string) {
	urls, ok := f[term]
	if !ok {
		urls = make(map[string]struct{})
		f[term] = urls
	}
	urls[url] = struct{}{}
}

func (f Feature) Has(term, url string) bool {
	_, ok := f[term][url]
	return ok
}

// URLs returns the documents carrying term, sorted.
func (f Feature) URLs(term string) []string {
	set := f[term]
	urls := make([]string, 0, len(set))
	for url := range set {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

func (f Feature) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(f))
	for term := range f {
		out[term] = f.URLs(term)
	}
	// urls keep their '&' literal, matching the positional index files.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Feature, len(raw))
	for term, urls := range raw {
		for _, url := range urls {
			out.Add(term, url)
		}
	}
	*f = out
	return nil
}

func (f Feature) merge(other Feature) {
	for term, urls := range other {
		for url := range urls {
			f.Add(term, url)
		}
	}
}
