package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"

	"github.com/brunobiangulo/raglens/analysis"
)

// Errors returned by the dataset query tool. The chat loop converts these
// into tool error payloads rather than failing the whole request.
var (
	ErrNoRunLoaded   = errors.New("agent: no run loaded, include a source in the request after loading a run")
	ErrInvalidExpr   = errors.New("agent: invalid query expression")
	ErrInvalidLimit  = errors.New("agent: limit out of range")
	ErrQueryTimedOut = errors.New("agent: query evaluation timed out")
)

// queryEnv is the restricted CEL environment the tool evaluates in. Only two
// variables are exposed; CEL itself has no assignment, I/O, or mutation, so
// the environment needs no further lockdown.
var queryEnv = mustQueryEnv()

func mustQueryEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.DynType),
		cel.Variable("questions", cel.DynType),
	)
	if err != nil {
		panic(fmt.Sprintf("agent: building query environment: %v", err))
	}
	return env
}

// queryArgs are the arguments of a dataset_query tool call as produced by
// the model.
type queryArgs struct {
	Expr string `json:"expr"`
	// Limit caps the number of rows when the result is a list.
	Limit *int `json:"limit,omitempty"`
	// CharLimit caps the length of every string in the result; nil
	// disables string truncation.
	CharLimit *int `json:"char_limit,omitempty"`
}

// queryResult is the tool's response payload, serialized back to the model
// as the tool message content.
type queryResult struct {
	Result        any  `json:"result"`
	Truncated     bool `json:"truncated"`
	CharTruncated bool `json:"char_truncated"`
}

// queryOptions bound a single evaluation.
type queryOptions struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

// datasetQuery evaluates one CEL expression against the run held by the
// session. Evaluation is bounded by opts.Timeout; list results are capped at
// the requested limit and strings optionally capped at char_limit characters.
func datasetQuery(ctx context.Context, run map[string]any, args queryArgs, opts queryOptions) (*queryResult, error) {
	if run == nil {
		return nil, ErrNoRunLoaded
	}
	if args.Expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpr)
	}
	if args.Limit != nil && (*args.Limit < 1 || *args.Limit > opts.MaxLimit) {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidLimit, opts.MaxLimit)
	}
	if args.CharLimit != nil && *args.CharLimit < 1 {
		return nil, fmt.Errorf("%w: char_limit must be at least 1", ErrInvalidLimit)
	}

	ast, issues := queryEnv.Compile(args.Expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpr, issues.Err())
	}
	prg, err := queryEnv.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpr, err)
	}

	evalCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	out, _, err := prg.ContextEval(evalCtx, map[string]any{
		"data":      run,
		"questions": analysis.Questions(run),
	})
	if err != nil {
		if evalCtx.Err() != nil {
			return nil, fmt.Errorf("%w after %v", ErrQueryTimedOut, opts.Timeout)
		}
		return nil, fmt.Errorf("agent: query failed: %w", err)
	}

	value := normalizeValue(out)

	limit := opts.DefaultLimit
	if args.Limit != nil {
		limit = *args.Limit
	}
	truncated := false
	if list, ok := value.([]any); ok && len(list) > limit {
		value = list[:limit]
		truncated = true
	}

	charTruncated := false
	if args.CharLimit != nil {
		value, charTruncated = truncateStrings(value, *args.CharLimit)
	}

	// The tool contract is JSON; anything CEL produced that still is not
	// representable gets stringified rather than failing the call.
	if _, err := json.Marshal(value); err != nil {
		value = fmt.Sprint(value)
	}

	return &queryResult{Result: value, Truncated: truncated, CharTruncated: charTruncated}, nil
}

// normalizeValue converts a CEL evaluation result into JSON-friendly Go
// values: ref.Val wrappers are unwrapped, map keys become strings, and
// nested maps/slices are normalized recursively.
func normalizeValue(v any) any {
	if rv, ok := v.(ref.Val); ok {
		return normalizeValue(rv.Value())
	}
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(normalizeValue(iter.Key().Interface()))
			out[key] = normalizeValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// truncateStrings caps every string in value at charLimit characters,
// recursing through lists and maps. The second return reports whether any
// string was cut.
func truncateStrings(value any, charLimit int) (any, bool) {
	switch v := value.(type) {
	case string:
		if len(v) > charLimit {
			return v[:charLimit], true
		}
		return v, false
	case []any:
		out := make([]any, len(v))
		cutAny := false
		for i, item := range v {
			item, cut := truncateStrings(item, charLimit)
			out[i] = item
			cutAny = cutAny || cut
		}
		return out, cutAny
	case map[string]any:
		out := make(map[string]any, len(v))
		cutAny := false
		for k, item := range v {
			item, cut := truncateStrings(item, charLimit)
			out[k] = item
			cutAny = cutAny || cut
		}
		return out, cutAny
	default:
		return value, false
	}
}
