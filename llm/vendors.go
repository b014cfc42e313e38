package llm

import "context"

// All hosted providers below speak the OpenAI-compatible chat API; they
// differ only in base URL and model defaults.

// openAIProvider implements Provider for the OpenAI API.
//
// API key: set via config, OPENAI_API_KEY env var, or the server's
// RAGLENS_CHAT_API_KEY env var.
type openAIProvider struct {
	base openAICompatClient
}

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &openAIProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *openAIProvider) ChatStream(ctx context.Context, req ChatRequest, fn func(StreamDelta) error) error {
	return p.base.chatStream(ctx, req, fn)
}

// groqProvider implements Provider for Groq's inference API, which
// provides fast inference for open-source models (Llama, Mixtral, Gemma).
//
// API key: set via config, GROQ_API_KEY env var, or the server's
// RAGLENS_CHAT_API_KEY env var.
type groqProvider struct {
	base openAICompatClient
}

// NewGroq creates a provider for Groq.
func NewGroq(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	return &groqProvider{base: newOpenAICompatClient(cfg)}
}

func (p *groqProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *groqProvider) ChatStream(ctx context.Context, req ChatRequest, fn func(StreamDelta) error) error {
	return p.base.chatStream(ctx, req, fn)
}

// openRouterProvider implements Provider for OpenRouter.
type openRouterProvider struct {
	base openAICompatClient
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api"
	}
	return &openRouterProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openRouterProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *openRouterProvider) ChatStream(ctx context.Context, req ChatRequest, fn func(StreamDelta) error) error {
	return p.base.chatStream(ctx, req, fn)
}

// xaiProvider implements Provider for xAI's Grok models.
type xaiProvider struct {
	base openAICompatClient
}

// NewXAI creates a provider for xAI.
func NewXAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai"
	}
	return &xaiProvider{base: newOpenAICompatClient(cfg)}
}

func (p *xaiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *xaiProvider) ChatStream(ctx context.Context, req ChatRequest, fn func(StreamDelta) error) error {
	return p.base.chatStream(ctx, req, fn)
}

// ollamaProvider implements Provider for Ollama through its
// OpenAI-compatible endpoint.
type ollamaProvider struct {
	base openAICompatClient
}

// NewOllama creates a provider for Ollama.
func NewOllama(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	return &ollamaProvider{base: newOpenAICompatClient(cfg)}
}

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *ollamaProvider) ChatStream(ctx context.Context, req ChatRequest, fn func(StreamDelta) error) error {
	return p.base.chatStream(ctx, req, fn)
}

// lmStudioProvider implements Provider for LM Studio's local server.
type lmStudioProvider struct {
	base openAICompatClient
}

// NewLMStudio creates a provider for LM Studio.
func NewLMStudio(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234"
	}
	return &lmStudioProvider{base: newOpenAICompatClient(cfg)}
}

func (p *lmStudioProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *lmStudioProvider) ChatStream(ctx context.Context, req ChatRequest, fn func(StreamDelta) error) error {
	return p.base.chatStream(ctx, req, fn)
}
