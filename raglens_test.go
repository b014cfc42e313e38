package raglens

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/raglens/agent"
)

func testEngine(t *testing.T, cfg Config) Engine {
	t.Helper()
	if cfg.CollectionsDir == "" {
		cfg.CollectionsDir = t.TempDir()
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRequiresCollectionsDir(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestDeriveNilRun(t *testing.T) {
	e := testEngine(t, Config{})
	if _, err := e.Derive(nil); !errors.Is(err, ErrInvalidRun) {
		t.Errorf("got %v, want ErrInvalidRun", err)
	}
}

func TestDeriveEnriches(t *testing.T) {
	e := testEngine(t, Config{})
	run := map[string]any{
		"results": []any{
			map[string]any{
				"query_id": "q1",
				"retrieved_context": []any{
					map[string]any{"doc_id": "d1", "text": "alpha beta"},
				},
			},
		},
	}
	out, err := e.Derive(run)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	q := out["results"].([]any)[0].(map[string]any)
	if q["num_chunks"] != 1 {
		t.Errorf("num_chunks = %v, want 1", q["num_chunks"])
	}
	if q["context_length"] != 2 {
		t.Errorf("context_length = %v, want 2", q["context_length"])
	}
}

func TestRunLoadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"results": [{"query_id": "q1"}]}`
	if err := os.WriteFile(filepath.Join(dir, "demo", "run.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	e := testEngine(t, Config{CollectionsDir: dir})

	cols, err := e.Collections()
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(cols["demo"]) != 1 || cols["demo"][0] != "run.json" {
		t.Errorf("collections = %v", cols)
	}

	run, err := e.Run("demo", "run.json", false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, derived := run["results"].([]any)[0].(map[string]any)["local_analysis"]; derived {
		t.Error("raw run should not carry derived fields")
	}
}

func TestChatStreamUnconfigured(t *testing.T) {
	e := testEngine(t, Config{})
	err := e.ChatStream(context.Background(), agent.ChatRequest{}, func(agent.Event) error { return nil })
	if !errors.Is(err, ErrChatUnavailable) {
		t.Errorf("got %v, want ErrChatUnavailable", err)
	}
}

func TestChatStreamBadSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CollectionsDir = t.TempDir()
	cfg.Chat.Provider = "custom"
	cfg.Chat.Model = "m"
	cfg.Chat.BaseURL = "http://127.0.0.1:0"
	e := testEngine(t, cfg)

	err := e.ChatStream(context.Background(), agent.ChatRequest{
		Source: &agent.SourceSpec{Collection: "missing", RunFile: "run.json"},
	}, func(agent.Event) error { return nil })
	if !errors.Is(err, ErrSourceLoad) {
		t.Errorf("got %v, want ErrSourceLoad", err)
	}
}
