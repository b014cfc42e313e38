package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/raglens"
	"github.com/brunobiangulo/raglens/agent"
	"github.com/brunobiangulo/raglens/store"
)

type handler struct {
	engine    raglens.Engine
	staticDir string
}

func newHandler(e raglens.Engine, staticDir string) *handler {
	return &handler{engine: e, staticDir: staticDir}
}

// GET /
// Serves the frontend when a static dir is configured, with an index.html
// fallback for client-side routes; otherwise a plain liveness message.
func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if h.staticDir == "" {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "raglens backend is running",
		})
		return
	}

	// Reject traversal before touching the filesystem.
	clean := filepath.Clean(strings.TrimPrefix(r.URL.Path, "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	path := filepath.Join(h.staticDir, clean)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}

	// Client-side routing: unknown paths get index.html.
	index := filepath.Join(h.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, http.StatusNotFound, "frontend build not found")
		return
	}
	http.ServeFile(w, r, index)
}

// GET /collections
func (h *handler) handleCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.engine.Collections()
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "collections directory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list collections")
		slog.Error("list collections error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, collections)
}

// GET /collections/{collection}/runs/{run}?derived=true
func (h *handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	runFile := r.PathValue("run")
	derived := r.URL.Query().Get("derived") == "true"

	run, err := h.engine.Run(collection, runFile, derived)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidName):
			writeError(w, http.StatusBadRequest, "invalid collection or run name")
		case errors.Is(err, store.ErrRunNotFound):
			writeError(w, http.StatusNotFound, "run file not found")
		case errors.Is(err, store.ErrInvalidRun):
			writeError(w, http.StatusBadRequest, "invalid JSON file")
		default:
			writeError(w, http.StatusInternalServerError, "failed to load run")
			slog.Error("load run error", "collection", collection, "run", runFile, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// POST /derive
// Enriches the posted run document and returns it.
func (h *handler) handleDerive(w http.ResponseWriter, r *http.Request) {
	var run map[string]any
	if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	enriched, err := h.engine.Derive(run)
	if err != nil {
		if errors.Is(err, raglens.ErrInvalidRun) {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object")
			return
		}
		writeError(w, http.StatusInternalServerError, "derivation failed")
		slog.Error("derive error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, enriched)
}

// GET /agent/health
func (h *handler) handleAgentHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"model": h.engine.Model(),
	})
}

// POST /agent/chat/stream
// Runs one agent session, relaying its events as SSE frames.
func (h *handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req agent.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Source resolution happens before any bytes are written so load
	// failures can still use proper status codes.
	headersSent := false
	err := h.engine.ChatStream(r.Context(), req, func(e agent.Event) error {
		if !headersSent {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			headersSent = true
		}
		return writeSSE(w, flusher, e)
	})
	if err != nil && !headersSent {
		switch {
		case errors.Is(err, raglens.ErrChatUnavailable):
			writeError(w, http.StatusInternalServerError, "chat model is not configured")
		case errors.Is(err, raglens.ErrSourceLoad):
			writeError(w, http.StatusBadGateway, "failed to fetch run for chat session")
		default:
			writeError(w, http.StatusInternalServerError, "chat session failed")
			slog.Error("chat stream error", "error", err)
		}
		return
	}
	if err != nil {
		// Mid-stream failure, usually the client going away.
		slog.Warn("chat stream interrupted", "error", err)
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, e agent.Event) error {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if e.Name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", e.Name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
