// Package raglens computes derived metrics over RAG evaluation runs and
// hosts a read-only analysis agent on top of them. A run is a schemaless
// JSON document of questions with claim-level entailment matrices; the
// engine layers per-chunk relation counts, cross-question frequency and
// effectiveness aggregates, and local relation breakdowns onto it without
// altering the original fields.
package raglens

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/raglens/agent"
	"github.com/brunobiangulo/raglens/analysis"
	"github.com/brunobiangulo/raglens/llm"
	"github.com/brunobiangulo/raglens/store"
)

// Engine is the main entry point.
type Engine interface {
	// Collections lists every collection and its run files.
	Collections() (map[string][]string, error)

	// Run loads a run by collection and filename. When derived is true
	// the result is the enriched document; either way the caller gets a
	// cached document it must not mutate.
	Run(collection, file string, derived bool) (map[string]any, error)

	// Derive enriches a run document in place and returns it. The engine
	// takes ownership of the input.
	Derive(run map[string]any) (map[string]any, error)

	// ChatStream runs one analysis agent session, delivering every
	// tool call, tool result, content delta, and the closing done marker
	// through emit.
	ChatStream(ctx context.Context, req agent.ChatRequest, emit agent.EmitFunc) error

	// Model reports the configured chat model, empty when chat is not
	// configured.
	Model() string
}

type engine struct {
	cfg   Config
	store *store.Store
	agent *agent.Agent
}

// New creates an engine from the given configuration. The chat provider is
// optional: when cfg.Chat.Provider is empty the engine works fully for
// derivation and ChatStream returns ErrChatUnavailable.
func New(cfg Config) (Engine, error) {
	if cfg.CollectionsDir == "" {
		return nil, fmt.Errorf("%w: collections dir is empty", ErrInvalidConfig)
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}

	s, err := store.New(cfg.CollectionsDir, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e := &engine{cfg: cfg, store: s}

	if cfg.Chat.Provider != "" {
		provider, err := llm.NewProvider(cfg.Chat)
		if err != nil {
			return nil, fmt.Errorf("creating chat provider: %w", err)
		}
		e.agent = agent.New(provider, agent.Config{
			MaxToolSteps:   cfg.Agent.MaxToolSteps,
			ToolTimeout:    time.Duration(cfg.Agent.ToolTimeoutMS) * time.Millisecond,
			ResultLimit:    cfg.Agent.ResultLimit,
			MaxResultLimit: cfg.Agent.MaxResultLimit,
			LLMTimeout:     time.Duration(cfg.Agent.LLMTimeoutSec) * time.Second,
		})
	} else {
		slog.Info("no chat provider configured, agent endpoints disabled")
	}

	return e, nil
}

func (e *engine) Collections() (map[string][]string, error) {
	return e.store.Collections()
}

func (e *engine) Run(collection, file string, derived bool) (map[string]any, error) {
	return e.store.Run(collection, file, derived)
}

func (e *engine) Derive(run map[string]any) (map[string]any, error) {
	if run == nil {
		return nil, ErrInvalidRun
	}
	return analysis.Derive(run), nil
}

func (e *engine) ChatStream(ctx context.Context, req agent.ChatRequest, emit agent.EmitFunc) error {
	if e.agent == nil {
		return ErrChatUnavailable
	}

	// The run handle is scoped to this request: the client names the
	// stored run it wants the session to see, and the store resolves it
	// through the usual caches.
	var run map[string]any
	if req.Source != nil {
		derived := req.Source.Derived == nil || *req.Source.Derived
		var err error
		run, err = e.store.Run(req.Source.Collection, req.Source.RunFile, derived)
		if err != nil {
			slog.Error("failed to load chat source run",
				"collection", req.Source.Collection,
				"run", req.Source.RunFile,
				"error", err,
			)
			return fmt.Errorf("%w: %v", ErrSourceLoad, err)
		}
		slog.Info("chat source run loaded",
			"collection", req.Source.Collection,
			"run", req.Source.RunFile,
			"derived", derived,
		)
	}

	return e.agent.ChatStream(ctx, run, req, emit)
}

func (e *engine) Model() string {
	return e.cfg.Chat.Model
}
