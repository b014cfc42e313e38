package raglens

import (
	"github.com/brunobiangulo/raglens/llm"
)

// Config holds all configuration for the raglens engine.
type Config struct {
	// CollectionsDir is the directory containing run collections. Each
	// subdirectory is a collection holding .json run files.
	CollectionsDir string `json:"collections_dir" yaml:"collections_dir"`

	// StaticDir, when set, is served as the frontend root with an
	// index.html fallback for client-side routes.
	StaticDir string `json:"static_dir" yaml:"static_dir"`

	// CacheSize bounds each of the raw and derived run caches.
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// Chat configures the LLM provider used by the analysis agent.
	Chat llm.Config `json:"chat" yaml:"chat"`

	// Agent tunes the chat/tool loop.
	Agent AgentConfig `json:"agent" yaml:"agent"`
}

// AgentConfig bounds the analysis agent's tool loop and query tool.
type AgentConfig struct {
	// MaxToolSteps caps dataset_query rounds before the final answer.
	MaxToolSteps int `json:"max_tool_steps" yaml:"max_tool_steps"`

	// ToolTimeoutMS caps a single dataset_query evaluation.
	ToolTimeoutMS int `json:"tool_timeout_ms" yaml:"tool_timeout_ms"`

	// ResultLimit is the default cap on list results returned by the
	// query tool; MaxResultLimit is the hard ceiling a caller may request.
	ResultLimit    int `json:"result_limit" yaml:"result_limit"`
	MaxResultLimit int `json:"max_result_limit" yaml:"max_result_limit"`

	// LLMTimeoutSec bounds each chat completion request.
	LLMTimeoutSec int `json:"llm_timeout_sec" yaml:"llm_timeout_sec"`
}

// DefaultConfig returns a Config with sensible local defaults.
func DefaultConfig() Config {
	return Config{
		CollectionsDir: "collections",
		CacheSize:      3,
		Chat: llm.Config{
			Provider: "openai",
			BaseURL:  "https://api.openai.com",
		},
		Agent: AgentConfig{
			MaxToolSteps:   7,
			ToolTimeoutMS:  400,
			ResultLimit:    50,
			MaxResultLimit: 200,
			LLMTimeoutSec:  100,
		},
	}
}
