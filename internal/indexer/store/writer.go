// Package store persists index builds as directories of JSON files and
// loads them back. Each build lives in its own versioned directory under a
// root; a CURRENT file names the live build and is replaced atomically.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/google/uuid"
)

// File names inside a build directory.
const (
	TitleIndexFile       = "title_index.json"
	DescriptionIndexFile = "description_index.json"
	BrandIndexFile       = "brand_index.json"
	OriginIndexFile      = "origin_index.json"
	ReviewsIndexFile     = "reviews_index.json"
	SynonymsFile         = "origin_synonyms.json"
	ProductsFile         = "products.jsonl"
	ManifestFile         = "manifest.json"

	currentFile = "CURRENT"
	tmpPrefix   = ".tmp-"
)

// Manifest describes a persisted build.
type Manifest struct {
	Version   string      `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	Stats     index.Stats `json:"stats"`
}

// Writer publishes builds under a root directory.
type Writer struct {
	root   string
	retain int
	logger *slog.Logger
}

// NewWriter keeps the newest retain builds; older ones are pruned after each
// publish. A non-positive retain keeps everything.
func NewWriter(root string, retain int) *Writer {
	return &Writer{
		root:   root,
		retain: retain,
		logger: slog.Default().With("component", "index-store"),
	}
}

// Write persists set and synonyms into a new build directory and makes it
// current. Readers see either the previous build or the new one in full.
func (w *Writer) Write(set *index.Set, synonyms index.Synonyms) (Manifest, error) {
	now := time.Now().UTC()
	manifest := Manifest{
		Version:   now.Format("20060102T150405.000Z") + "-" + uuid.NewString()[:8],
		CreatedAt: now,
		Stats:     set.Stats(),
	}
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return Manifest{}, fmt.Errorf("creating index root: %w", err)
	}
	tmpDir := filepath.Join(w.root, tmpPrefix+manifest.Version)
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return Manifest{}, fmt.Errorf("creating build directory: %w", err)
	}
	if err := writeBuild(tmpDir, set, synonyms, manifest); err != nil {
		os.RemoveAll(tmpDir)
		return Manifest{}, err
	}
	finalDir := filepath.Join(w.root, manifest.Version)
	if err := os.Rename(tmpDir, finalDir); err != nil {
		os.RemoveAll(tmpDir)
		return Manifest{}, fmt.Errorf("publishing build directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(w.root, currentFile), []byte(manifest.Version+"\n")); err != nil {
		return Manifest{}, fmt.Errorf("updating current build pointer: %w", err)
	}
	w.logger.Info("index build published",
		"version", manifest.Version,
		"dir", finalDir,
		"documents", manifest.Stats.Documents,
	)
	w.prune(manifest.Version)
	return manifest, nil
}

func writeBuild(dir string, set *index.Set, synonyms index.Synonyms, manifest Manifest) error {
	files := []struct {
		name  string
		value any
	}{
		{TitleIndexFile, set.Title},
		{DescriptionIndexFile, set.Description},
		{BrandIndexFile, set.Brand},
		{OriginIndexFile, set.Origin},
		{ReviewsIndexFile, set.Reviews},
		{SynonymsFile, synonyms},
		{ManifestFile, manifest},
	}
	for _, f := range files {
		data, err := MarshalIndent(f.value)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}
	var buf bytes.Buffer
	if err := catalog.WriteCorpus(&buf, set.Documents); err != nil {
		return fmt.Errorf("encoding %s: %w", ProductsFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ProductsFile), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", ProductsFile, err)
	}
	return nil
}

// MarshalIndent encodes v with two-space indentation, sorted map keys and
// no HTML or non-ASCII escaping.
func MarshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes to a temp file first and renames on success.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// prune removes old builds beyond the retention count and stale temp
// directories, never touching current.
func (w *Writer) prune(current string) {
	if w.retain <= 0 {
		return
	}
	versions, err := ListBuilds(w.root)
	if err != nil {
		w.logger.Warn("listing builds for pruning failed", "error", err)
		return
	}
	keep := make(map[string]struct{}, w.retain)
	keep[current] = struct{}{}
	for i := len(versions) - 1; i >= 0 && len(keep) < w.retain; i-- {
		keep[versions[i]] = struct{}{}
	}
	for _, v := range versions {
		if _, ok := keep[v]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.root, v)); err != nil {
			w.logger.Warn("removing old build failed", "version", v, "error", err)
			continue
		}
		w.logger.Info("old build removed", "version", v)
	}
}

// ListBuilds returns the build versions under root, oldest first.
func ListBuilds(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading index root: %w", err)
	}
	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, tmpPrefix) || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, name, ManifestFile)); err != nil {
			continue
		}
		versions = append(versions, name)
	}
	sort.Strings(versions)
	return versions, nil
}
