// Package agent implements the read-only analysis agent: a chat loop that
// lets an LLM inspect an enriched evaluation run through a restricted CEL
// query tool, streaming tool activity and the final answer to the caller as
// server-sent events.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/brunobiangulo/raglens/llm"
)

// Config bounds a chat session.
type Config struct {
	// MaxToolSteps is the number of tool calls allowed before the final
	// answer; one extra step is granted after the first tool error.
	MaxToolSteps int
	// ToolTimeout bounds a single dataset query evaluation.
	ToolTimeout time.Duration
	// ResultLimit is the default row cap for list results; MaxResultLimit
	// is the largest the model may request.
	ResultLimit    int
	MaxResultLimit int
	// LLMTimeout bounds each individual completion call, streaming or not.
	LLMTimeout time.Duration
}

// DefaultConfig returns the session limits used when the caller does not
// override them.
func DefaultConfig() Config {
	return Config{
		MaxToolSteps:   7,
		ToolTimeout:    400 * time.Millisecond,
		ResultLimit:    50,
		MaxResultLimit: 200,
		LLMTimeout:     100 * time.Second,
	}
}

// ChatMessage is one turn of the conversation as sent by the client.
// Assistant messages may carry tool calls instead of content; tool messages
// carry the tool name and the id of the call they answer.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// SourceSpec references a stored run to load for the session.
type SourceSpec struct {
	Collection string `json:"collection"`
	RunFile    string `json:"run_file"`
	Derived    *bool  `json:"derived,omitempty"` // nil means derived
}

// ChatRequest is the body of a chat/stream call.
type ChatRequest struct {
	Messages    []ChatMessage  `json:"messages"`
	ActiveTab   string         `json:"active_tab,omitempty"` // overview | metrics | inspector | chunks
	ViewContext map[string]any `json:"view_context,omitempty"`
	Source      *SourceSpec    `json:"source,omitempty"`
}

// Event is one server-sent event produced during a session. Name is empty
// for plain content frames.
type Event struct {
	Name    string
	Payload any
}

// EmitFunc receives events as the session produces them. Returning an error
// stops the session; the error is propagated to the caller.
type EmitFunc func(Event) error

// Agent runs chat sessions against an LLM provider.
type Agent struct {
	provider llm.Provider
	cfg      Config
}

// New creates an agent. Zero fields in cfg fall back to DefaultConfig.
func New(provider llm.Provider, cfg Config) *Agent {
	def := DefaultConfig()
	if cfg.MaxToolSteps <= 0 {
		cfg.MaxToolSteps = def.MaxToolSteps
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = def.ToolTimeout
	}
	if cfg.ResultLimit <= 0 {
		cfg.ResultLimit = def.ResultLimit
	}
	if cfg.MaxResultLimit <= 0 {
		cfg.MaxResultLimit = def.MaxResultLimit
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = def.LLMTimeout
	}
	return &Agent{provider: provider, cfg: cfg}
}

const toolName = "dataset_query"

// datasetQueryTools is the tool schema advertised to the model.
var datasetQueryTools = []llm.Tool{{
	Type: "function",
	Function: llm.ToolFunction{
		Name: toolName,
		Description: "Evaluate ONE CEL expression over the current run (read-only).\n" +
			"Variables: data (enhanced run), questions (the run's results list).\n" +
			"Supported: field selection, indexing, list/map literals, size(), arithmetic, comparisons, ternary, and the map/filter/exists/all macros.\n" +
			"Rules: SINGLE expression only; no assignments, no statements.\n" +
			"Examples: questions.map(q, q.query_id) | {'n': size(questions)} | questions.filter(q, q.metrics.f1 < 0.5)\n" +
			"Keep results small; use 'limit' and 'char_limit'.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expr": map[string]any{
					"type":        "string",
					"description": "CEL expression returning a JSON-serializable value.",
				},
				"limit": map[string]any{
					"type":    "integer",
					"minimum": 1,
					"maximum": 200,
				},
				"char_limit": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"description": "Optional max characters per string in result; omit to disable char truncation.",
				},
			},
			"required":             []string{"expr"},
			"additionalProperties": false,
		},
	},
}}

// ChatStream runs one chat session: an iterative tool loop followed by a
// streamed final answer. The run is the session's dataset, already resolved
// by the caller (nil when no run is loaded, in which case tool calls fail
// with an explanatory tool error). Every tool call, tool result, content
// delta, and the closing done marker is delivered through emit. LLM failures
// are reported as error frames rather than returned; emit errors stop the
// session and propagate.
func (a *Agent) ChatStream(ctx context.Context, run map[string]any, req ChatRequest, emit EmitFunc) error {
	messages := a.buildMessages(req)

	steps := 0
	maxSteps := a.cfg.MaxToolSteps
	graceUsed := false
	for steps < maxSteps {
		resp, err := a.chatWithTimeout(ctx, llm.ChatRequest{
			Messages:   messages,
			Tools:      datasetQueryTools,
			ToolChoice: "auto",
		})
		if err != nil {
			slog.Error("agent: chat call failed during tool loop", "step", steps+1, "error", err)
			return emit(Event{Payload: map[string]any{"error": fmt.Sprintf("LLM call failed during tool loop: %v", err)}})
		}
		if len(resp.ToolCalls) == 0 {
			break
		}

		call := resp.ToolCalls[0]
		if call.Function.Name != toolName {
			slog.Warn("agent: unknown tool requested, stopping tool loop", "tool", call.Function.Name)
			break
		}

		var args queryArgs
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			slog.Error("agent: invalid tool arguments", "error", err, "arguments", call.Function.Arguments)
			return emit(Event{Payload: map[string]any{"error": fmt.Sprintf("Invalid tool arguments: %v", err)}})
		}

		callID := call.ID
		if callID == "" {
			callID = "call_" + uuid.NewString()
		}
		assistantMsg := llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       callID,
				Type:     "function",
				Function: call.Function,
			}},
		}
		messages = append(messages, assistantMsg)
		if err := emit(Event{Name: "tool_call", Payload: assistantMsg}); err != nil {
			return err
		}

		slog.Info("agent: tool call", "step", steps+1, "expr", args.Expr)
		result, queryErr := datasetQuery(ctx, run, args, queryOptions{
			Timeout:      a.cfg.ToolTimeout,
			DefaultLimit: a.cfg.ResultLimit,
			MaxLimit:     a.cfg.MaxResultLimit,
		})

		var content []byte
		if queryErr != nil {
			slog.Warn("agent: tool error", "step", steps+1, "error", queryErr)
			content, _ = json.Marshal(map[string]any{
				"error": queryErr.Error(),
				"hint":  "Write ONE CEL expression over data/questions; no assignments or statements.",
			})
			if !graceUsed {
				graceUsed = true
				maxSteps++
			}
		} else {
			content, _ = json.Marshal(result)
		}

		toolMsg := llm.Message{
			Role:       "tool",
			Name:       toolName,
			ToolCallID: callID,
			Content:    string(content),
		}
		messages = append(messages, toolMsg)
		if err := emit(Event{Name: "tool_result", Payload: toolMsg}); err != nil {
			return err
		}
		steps++
	}

	// Final answer: stream with tool calls disabled so the model cannot
	// reopen the loop.
	streamCtx, cancel := context.WithTimeout(ctx, a.cfg.LLMTimeout)
	defer cancel()
	streamed := false
	var emitErr error
	err := a.provider.ChatStream(streamCtx, llm.ChatRequest{
		Messages:   messages,
		Tools:      datasetQueryTools,
		ToolChoice: "none",
	}, func(d llm.StreamDelta) error {
		streamed = true
		if emitErr = emit(Event{Payload: map[string]any{"content": d.Content}}); emitErr != nil {
			return emitErr
		}
		return nil
	})
	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		slog.Error("agent: final stream failed", "streamed", streamed, "error", err)
		if !streamed {
			if emitErr := emit(Event{Payload: map[string]any{"error": "Final LLM call failed"}}); emitErr != nil {
				return emitErr
			}
			return nil
		}
	}
	return emit(Event{Name: "done", Payload: map[string]any{}})
}

func (a *Agent) chatWithTimeout(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.LLMTimeout)
	defer cancel()
	return a.provider.Chat(callCtx, req)
}

// buildMessages assembles the provider message list: the system prompt
// followed by the client's conversation history.
func (a *Agent) buildMessages(req ChatRequest) []llm.Message {
	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: buildPrompt(req.ActiveTab, req.ViewContext),
	})
	for _, m := range req.Messages {
		switch {
		case m.Role == "assistant" && len(m.ToolCalls) > 0:
			calls := make([]llm.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				if tc.ID == "" {
					tc.ID = fmt.Sprintf("call_%d", i+1)
				}
				if tc.Type == "" {
					tc.Type = "function"
				}
				calls[i] = tc
			}
			messages = append(messages, llm.Message{Role: "assistant", ToolCalls: calls})
		case m.Role == "tool":
			messages = append(messages, llm.Message{
				Role:       "tool",
				Name:       m.Name,
				ToolCallID: m.ToolCallID,
				Content:    m.Content,
			})
		case m.Role == "user" || m.Role == "assistant":
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	return messages
}
