package analysis

import (
	"log/slog"
	"strings"
)

// Derive annotates a run document with derived metrics, mutating it in
// place and returning it. For each question carrying a retrieved_context
// key it writes context_length (whitespace word count of all chunk texts
// joined by single spaces) and num_chunks, then attaches to every chunk an
// effectiveness_analysis (only when the chunk key exists in the global
// lookup) and a local_analysis (explicit zeros when no local data exists).
//
// Questions without retrieved_context are left untouched rather than
// skipped with an error, and a run whose results cannot be interpreted as
// a question list degrades to zero questions. The pass is deterministic:
// the same raw input always yields byte-identical derived fields.
//
// The caller owns the document; when a pristine copy of the raw run must
// be retained (for example next to a read-only cache entry), deep-copy
// before calling.
func Derive(run map[string]any) map[string]any {
	questions := Questions(run)
	slog.Debug("computing derived metrics", "questions", len(questions))

	lookup := EffectivenessLookup(questions)

	for _, qv := range questions {
		question, ok := asMap(qv)
		if !ok {
			continue
		}
		if _, present := question["retrieved_context"]; !present {
			continue
		}
		chunks, _ := asSlice(question["retrieved_context"])

		texts := make([]string, 0, len(chunks))
		for _, cv := range chunks {
			chunk, _ := asMap(cv)
			texts = append(texts, asString(chunk["text"]))
		}
		question["context_length"] = len(strings.Fields(strings.Join(texts, " ")))
		question["num_chunks"] = len(chunks)

		local := LocalRelations(question)

		for i, cv := range chunks {
			chunk, ok := asMap(cv)
			if !ok {
				continue
			}
			key := ChunkKey(asString(chunk["doc_id"]), asString(chunk["text"]))
			if record, ok := lookup[key]; ok {
				chunk["effectiveness_analysis"] = record
			}
			if counts, ok := local[i]; ok {
				chunk["local_analysis"] = counts.asDocument()
			} else {
				chunk["local_analysis"] = LocalCounts{}.asDocument()
			}
		}

		slog.Debug("annotated question",
			"query_id", asString(question["query_id"]),
			"chunks", len(chunks),
		)
	}

	return run
}
