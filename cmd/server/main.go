package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/raglens"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8000", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := raglens.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("RAGLENS_COLLECTIONS_DIR"); v != "" {
		cfg.CollectionsDir = v
	}
	if v := os.Getenv("RAGLENS_STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("RAGLENS_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("RAGLENS_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("RAGLENS_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("RAGLENS_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}

	// Fallback: check well-known provider env vars for API keys.
	if cfg.Chat.APIKey == "" {
		switch cfg.Chat.Provider {
		case "openai":
			cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			cfg.Chat.APIKey = os.Getenv("GROQ_API_KEY")
		}
	}

	// A provider without a model cannot serve chat; treat it as disabled
	// so the derive endpoints still work.
	if cfg.Chat.Model == "" {
		cfg.Chat.Provider = ""
	}

	apiKey := os.Getenv("RAGLENS_API_KEY")
	corsOrigins := os.Getenv("RAGLENS_CORS_ORIGINS")

	engine, err := raglens.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}

	h := newHandler(engine, cfg.StaticDir)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections", h.handleCollections)
	mux.HandleFunc("GET /collections/{collection}/runs/{run}", h.handleGetRun)
	mux.HandleFunc("POST /derive", h.handleDerive)
	mux.HandleFunc("GET /agent/health", h.handleAgentHealth)
	mux.HandleFunc("POST /agent/chat/stream", h.handleChatStream)
	mux.HandleFunc("GET /", h.handleRoot)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses (chat sessions can be long)
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "collections", cfg.CollectionsDir, "model", cfg.Chat.Model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
