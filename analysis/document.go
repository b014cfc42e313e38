// Package analysis computes derived metrics for RAG evaluation runs.
//
// A run is a schemaless JSON document: nested maps and slices as produced
// by encoding/json. The package annotates questions and chunks in place
// with frequency, entailment, and importance data; it never removes or
// reorders existing fields. Every malformed sub-structure degrades to
// zeroed output instead of failing the run-wide pass.
package analysis

// asMap returns v as a JSON object, or nil/false when it is anything else.
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asSlice returns v as a JSON array, or nil/false when it is anything else.
func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// asString returns v as a string, or "" when it is anything else.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Questions extracts the question list from a run document. Some producers
// nest the list one level deeper ({"results": {"results": [...]}}); that
// wrapping is unwrapped transparently. Anything that is not a list after
// unwrapping yields zero questions.
func Questions(run map[string]any) []any {
	results := run["results"]
	if inner, ok := asMap(results); ok {
		results = inner["results"]
	}
	questions, _ := asSlice(results)
	return questions
}
