package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeRun(t *testing.T, dir, collection, name, content string) {
	t.Helper()
	path := filepath.Join(dir, collection)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("creating collection dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing run file: %v", err)
	}
}

const sampleRun = `{
	"results": [
		{"query_id": "q1", "retrieved_context": [{"doc_id": "d1", "text": "alpha beta"}]}
	]
}`

// ---------------------------------------------------------------------------
// Loading and caching
// ---------------------------------------------------------------------------

func TestRunLoadsRaw(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "demo", "run1.json", sampleRun)

	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc, err := s.Run("demo", "run1.json", false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	q := doc["results"].([]any)[0].(map[string]any)
	if q["query_id"] != "q1" {
		t.Errorf("query_id = %v, want q1", q["query_id"])
	}
	if _, present := q["context_length"]; present {
		t.Error("raw load must not carry derived fields")
	}
}

func TestRunDerivedKeepsRawPristine(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "demo", "run1.json", sampleRun)

	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	enriched, err := s.Run("demo", "run1.json", true)
	if err != nil {
		t.Fatalf("Run derived: %v", err)
	}
	eq := enriched["results"].([]any)[0].(map[string]any)
	if eq["num_chunks"] == nil {
		t.Error("derived load missing num_chunks")
	}

	raw, err := s.Run("demo", "run1.json", false)
	if err != nil {
		t.Fatalf("Run raw: %v", err)
	}
	rq := raw["results"].([]any)[0].(map[string]any)
	if _, present := rq["num_chunks"]; present {
		t.Error("deriving polluted the raw cache entry")
	}
}

func TestRunCacheHit(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "demo", "run1.json", sampleRun)

	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := s.Run("demo", "run1.json", false)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	// Remove the file: a second fetch must come from cache.
	if err := os.Remove(filepath.Join(dir, "demo", "run1.json")); err != nil {
		t.Fatalf("removing run file: %v", err)
	}
	second, err := s.Run("demo", "run1.json", false)
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if first == nil || second == nil {
		t.Fatal("unexpected nil document")
	}
}

func TestRunCacheEviction(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "demo", "a.json", sampleRun)
	writeRun(t, dir, "demo", "b.json", sampleRun)
	writeRun(t, dir, "demo", "c.json", sampleRun)

	s, err := New(dir, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, name := range []string{"a.json", "b.json", "c.json"} {
		if _, err := s.Run("demo", name, false); err != nil {
			t.Fatalf("loading %s: %v", name, err)
		}
	}

	// a.json was least recently used and must have been evicted.
	if err := os.Remove(filepath.Join(dir, "demo", "a.json")); err != nil {
		t.Fatalf("removing a.json: %v", err)
	}
	if _, err := s.Run("demo", "a.json", false); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected reload of evicted run to fail with ErrRunNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Name validation and errors
// ---------------------------------------------------------------------------

func TestRunPathSafety(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		collection string
		run        string
	}{
		{"", "run.json"},
		{"demo", ""},
		{"../demo", "run.json"},
		{"demo", "../run.json"},
		{"de/mo", "run.json"},
		{"demo", "run\\evil.json"},
		{"demo", "c:evil.json"},
		{"demo", "run.txt"},
	}
	for _, tc := range cases {
		if _, err := s.Run(tc.collection, tc.run, false); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Run(%q, %q): got %v, want ErrInvalidName", tc.collection, tc.run, err)
		}
	}
}

func TestRunMissingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Run("demo", "missing.json", false); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("got %v, want ErrRunNotFound", err)
	}
}

func TestRunInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "demo", "bad.json", "{not json")

	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := s.Run("demo", "bad.json", false); !errors.Is(err, ErrInvalidRun) {
		t.Errorf("got %v, want ErrInvalidRun", err)
	}
}

// ---------------------------------------------------------------------------
// Collections listing
// ---------------------------------------------------------------------------

func TestCollections(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir, "alpha", "b.json", sampleRun)
	writeRun(t, dir, "alpha", "a.json", sampleRun)
	writeRun(t, dir, "beta", "x.json", sampleRun)
	// Non-json files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "alpha", "notes.txt"), []byte("n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := s.Collections()
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("collections = %d, want 2", len(got))
	}
	alpha := got["alpha"]
	if len(alpha) != 2 || alpha[0] != "a.json" || alpha[1] != "b.json" {
		t.Errorf("alpha runs = %v, want sorted [a.json b.json]", alpha)
	}
}

func TestCollectionsMissingDir(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "nope"), 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Collections(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("got %v, want ErrRunNotFound", err)
	}
}
