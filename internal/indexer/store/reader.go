package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/errors"
)

// Build is a loaded index build.
type Build struct {
	Dir      string
	Manifest Manifest
	Set      *index.Set
	Synonyms index.Synonyms
	// Skipped counts malformed or dangling entries dropped while loading.
	Skipped int
}

// ResolveDir returns the directory holding the current build under root.
// Without a CURRENT pointer root itself is treated as a build directory.
func ResolveDir(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, currentFile))
	if errors.Is(err, os.ErrNotExist) {
		return root, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading current build pointer: %w", err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" || strings.ContainsAny(version, `/\`) {
		return "", fmt.Errorf("invalid current build pointer %q", version)
	}
	return filepath.Join(root, version), nil
}

// Open loads the current build under root. A missing or unreadable
// required file fails with an error wrapping apperrors.ErrIndexMissing.
// Malformed entries inside a file are skipped.
func Open(root string) (*Build, error) {
	dir, err := ResolveDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrIndexMissing, err)
	}
	return OpenDir(dir)
}

// OpenDir loads the build stored in dir.
func OpenDir(dir string) (*Build, error) {
	l := &loader{
		dir:    dir,
		logger: slog.Default().With("component", "index-loader", "dir", dir),
	}
	b := &Build{Dir: dir, Set: index.NewSet()}

	docs, err := l.products()
	if err != nil {
		return nil, err
	}
	b.Set.Documents = docs
	l.known = make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		l.known[doc.URL] = struct{}{}
	}

	if b.Set.Title, err = l.positional(TitleIndexFile); err != nil {
		return nil, err
	}
	if b.Set.Description, err = l.positional(DescriptionIndexFile); err != nil {
		return nil, err
	}
	if b.Set.Brand, err = l.feature(BrandIndexFile); err != nil {
		return nil, err
	}
	if b.Set.Origin, err = l.feature(OriginIndexFile); err != nil {
		return nil, err
	}
	if b.Set.Reviews, err = l.reviews(ReviewsIndexFile); err != nil {
		return nil, err
	}
	b.Synonyms = l.synonyms()
	b.Manifest = l.manifest()
	b.Skipped = l.skipped

	if l.skipped > 0 {
		l.logger.Warn("index loaded with skipped entries", "skipped", l.skipped)
	}
	l.logger.Info("index loaded",
		"version", b.Manifest.Version,
		"documents", len(docs),
		"title_terms", len(b.Set.Title),
		"description_terms", len(b.Set.Description),
	)
	return b, nil
}

type loader struct {
	dir     string
	known   map[string]struct{}
	skipped int
	logger  *slog.Logger
}

func (l *loader) read(name string) ([]byte, error) {
	path := filepath.Join(l.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrIndexMissing, path, err)
	}
	return data, nil
}

// entries decodes a top-level JSON object. The file must be an object; its
// values are decoded individually by the caller.
func (l *loader) entries(name string) (map[string]json.RawMessage, error) {
	data, err := l.read(name)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrIndexMissing, filepath.Join(l.dir, name), err)
	}
	return raw, nil
}

func (l *loader) skip(name, key string, err error) {
	l.skipped++
	l.logger.Warn("skipping malformed index entry", "file", name, "key", key, "error", err)
}

func (l *loader) isKnown(url string) bool {
	_, ok := l.known[url]
	return ok
}

func (l *loader) positional(name string) (index.Positional, error) {
	raw, err := l.entries(name)
	if err != nil {
		return nil, err
	}
	out := make(index.Positional, len(raw))
	for term, value := range raw {
		var postings index.Postings
		if err := json.Unmarshal(value, &postings); err != nil {
			l.skip(name, term, err)
			continue
		}
		for url := range postings {
			if !l.isKnown(url) {
				l.skip(name, term, fmt.Errorf("unknown document %s", url))
				delete(postings, url)
			}
		}
		if len(postings) > 0 {
			out[term] = postings
		}
	}
	return out, nil
}

func (l *loader) feature(name string) (index.Feature, error) {
	raw, err := l.entries(name)
	if err != nil {
		return nil, err
	}
	out := make(index.Feature, len(raw))
	for term, value := range raw {
		var urls []string
		if err := json.Unmarshal(value, &urls); err != nil {
			l.skip(name, term, err)
			continue
		}
		for _, url := range urls {
			if !l.isKnown(url) {
				l.skip(name, term, fmt.Errorf("unknown document %s", url))
				continue
			}
			out.Add(term, url)
		}
	}
	return out, nil
}

func (l *loader) reviews(name string) (index.Reviews, error) {
	raw, err := l.entries(name)
	if err != nil {
		return nil, err
	}
	out := make(index.Reviews, len(raw))
	for url, value := range raw {
		var stats index.ReviewStats
		if err := json.Unmarshal(value, &stats); err != nil {
			l.skip(name, url, err)
			continue
		}
		if !l.isKnown(url) {
			l.skip(name, url, fmt.Errorf("unknown document"))
			continue
		}
		out[url] = stats
	}
	return out, nil
}

func (l *loader) products() ([]catalog.Document, error) {
	path := filepath.Join(l.dir, ProductsFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrIndexMissing, path, err)
	}
	defer f.Close()
	docs, stats, err := catalog.ReadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrIndexMissing, path, err)
	}
	l.skipped += stats.Malformed + stats.MissingURL
	return docs, nil
}

// synonyms falls back to the built-in table when the file is absent or
// unreadable.
func (l *loader) synonyms() index.Synonyms {
	syn, err := index.LoadSynonyms(filepath.Join(l.dir, SynonymsFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("synonyms unreadable, using defaults", "error", err)
		}
		return index.DefaultOriginSynonyms()
	}
	return syn
}

// manifest is optional; builds written by older tooling have none.
func (l *loader) manifest() Manifest {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(l.dir, ManifestFile))
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		l.logger.Warn("manifest unreadable", "error", err)
	}
	return m
}
