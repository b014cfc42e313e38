// Package store loads RAG evaluation run documents from a collections
// directory and caches both the raw and the derived form in bounded LRU
// caches. Collections are plain subdirectories holding .json run files;
// nothing is ever written back to disk.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/brunobiangulo/raglens/analysis"
)

var (
	// ErrRunNotFound is returned when a collection or run file does not exist.
	ErrRunNotFound = errors.New("store: run not found")

	// ErrInvalidName is returned for collection or run names that are
	// empty, contain path separators or traversal sequences, or do not
	// end in .json.
	ErrInvalidName = errors.New("store: invalid collection or run name")

	// ErrInvalidRun is returned when a run file is not valid JSON or its
	// top level is not an object.
	ErrInvalidRun = errors.New("store: run is not a JSON object")
)

// Key identifies one run file within the collections directory.
type Key struct {
	Collection string
	Run        string
}

// Store serves run documents with two independent LRU caches: one for raw
// parsed files and one for derived (enriched) documents. Cached documents
// are shared with callers; treat them as read-only.
type Store struct {
	dir     string
	raw     *lru.Cache[Key, map[string]any]
	derived *lru.Cache[Key, map[string]any]
}

// New creates a Store over dir. cacheSize bounds each cache; values below
// one fall back to a capacity of 3.
func New(dir string, cacheSize int) (*Store, error) {
	if cacheSize < 1 {
		cacheSize = 3
	}
	raw, err := lru.New[Key, map[string]any](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating raw cache: %w", err)
	}
	derived, err := lru.New[Key, map[string]any](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating derived cache: %w", err)
	}
	return &Store{dir: dir, raw: raw, derived: derived}, nil
}

// Collections lists every collection directory and its run files, sorted.
func (s *Store) Collections() (map[string][]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: collections directory %s", ErrRunNotFound, s.dir)
		}
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	collections := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(s.dir, entry.Name(), "*.json"))
		if err != nil {
			return nil, fmt.Errorf("listing runs in %s: %w", entry.Name(), err)
		}
		runs := make([]string, 0, len(files))
		for _, f := range files {
			runs = append(runs, filepath.Base(f))
		}
		sort.Strings(runs)
		collections[entry.Name()] = runs
	}
	return collections, nil
}

// Run loads a run document. With derived set, the engine's enrichment is
// computed on a deep copy of the raw document (so the raw cache entry
// stays pristine) and cached separately. Cache hits refresh recency.
func (s *Store) Run(collection, run string, derived bool) (map[string]any, error) {
	key := Key{Collection: collection, Run: run}

	if derived {
		if doc, ok := s.derived.Get(key); ok {
			slog.Info("cache hit (derived)", "collection", collection, "run", run)
			return doc, nil
		}
	} else {
		if doc, ok := s.raw.Get(key); ok {
			slog.Info("cache hit (raw)", "collection", collection, "run", run)
			return doc, nil
		}
	}

	raw, err := s.load(collection, run)
	if err != nil {
		return nil, err
	}
	s.raw.Add(key, raw)

	if !derived {
		return raw, nil
	}

	copied, err := deepCopy(raw)
	if err != nil {
		return nil, fmt.Errorf("copying run for derivation: %w", err)
	}
	enriched := analysis.Derive(copied)
	s.derived.Add(key, enriched)
	slog.Info("derived run cached", "collection", collection, "run", run)
	return enriched, nil
}

// load reads and parses one run file after validating the names.
func (s *Store) load(collection, run string) (map[string]any, error) {
	path, err := s.runPath(collection, run)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, collection, run)
		}
		return nil, fmt.Errorf("reading run %s/%s: %w", collection, run, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidRun, collection, run, err)
	}
	return doc, nil
}

// runPath resolves the on-disk path for a run, rejecting any name that
// could escape the collections directory.
func (s *Store) runPath(collection, run string) (string, error) {
	if !simpleName(collection) || !simpleName(run) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidName, collection, run)
	}
	if !strings.HasSuffix(strings.ToLower(run), ".json") {
		return "", fmt.Errorf("%w: only .json run files are allowed", ErrInvalidName)
	}
	return filepath.Join(s.dir, collection, run), nil
}

// simpleName reports whether s is a bare file or directory name: no
// separators, no traversal, no drive prefixes.
func simpleName(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, "..") {
		return false
	}
	return !strings.ContainsAny(s, `/\:`)
}

// deepCopy clones a document through a JSON round trip, matching the
// serializer used at the HTTP boundary so the copy is exactly what a
// caller would have received.
func deepCopy(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
