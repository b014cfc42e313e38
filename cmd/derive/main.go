// Command derive enriches run files offline, without starting the server.
//
// Single file:
//
//	go run ./cmd/derive --in collections/demo/run.json --out run_derived.json
//
// Whole collection (writes <name>_derived.json next to each run):
//
//	go run ./cmd/derive --collections ./collections --collection demo
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/raglens"
)

func main() {
	var (
		inPath         = flag.String("in", "", "Path to a single run JSON file")
		outPath        = flag.String("out", "", "Output path for --in (default: stdout)")
		collectionsDir = flag.String("collections", "", "Collections directory (batch mode)")
		collection     = flag.String("collection", "", "Collection name to derive (batch mode, default: all)")
		indent         = flag.Bool("indent", false, "Indent output JSON")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	switch {
	case *inPath != "":
		if err := deriveFile(*inPath, *outPath, *indent); err != nil {
			slog.Error("derive failed", "path", *inPath, "error", err)
			os.Exit(1)
		}
	case *collectionsDir != "":
		if err := deriveCollections(*collectionsDir, *collection, *indent); err != nil {
			slog.Error("derive failed", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "either --in or --collections is required")
		flag.Usage()
		os.Exit(2)
	}
}

func deriveFile(in, out string, indent bool) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	var run map[string]any
	if err := json.Unmarshal(data, &run); err != nil {
		return fmt.Errorf("parsing %s: %w", in, err)
	}

	cfg := raglens.DefaultConfig()
	cfg.CollectionsDir = filepath.Dir(in)
	engine, err := raglens.New(cfg)
	if err != nil {
		return err
	}
	enriched, err := engine.Derive(run)
	if err != nil {
		return err
	}

	encoded, err := marshal(enriched, indent)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	slog.Info("writing derived run", "in", in, "out", out)
	return os.WriteFile(out, encoded, 0o644)
}

func deriveCollections(dir, only string, indent bool) error {
	cfg := raglens.DefaultConfig()
	cfg.CollectionsDir = dir
	engine, err := raglens.New(cfg)
	if err != nil {
		return err
	}

	collections, err := engine.Collections()
	if err != nil {
		return err
	}

	derived := 0
	for name, runs := range collections {
		if only != "" && name != only {
			continue
		}
		for _, run := range runs {
			if strings.HasSuffix(run, "_derived.json") {
				continue
			}
			enriched, err := engine.Run(name, run, true)
			if err != nil {
				slog.Error("skipping run", "collection", name, "run", run, "error", err)
				continue
			}
			encoded, err := marshal(enriched, indent)
			if err != nil {
				return err
			}
			out := filepath.Join(dir, name, strings.TrimSuffix(run, ".json")+"_derived.json")
			if err := os.WriteFile(out, encoded, 0o644); err != nil {
				return err
			}
			slog.Info("derived", "collection", name, "run", run, "out", out)
			derived++
		}
	}
	if only != "" && derived == 0 {
		return fmt.Errorf("no runs derived for collection %q", only)
	}
	slog.Info("done", "runs", derived)
	return nil
}

func marshal(v any, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
