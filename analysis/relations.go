package analysis

import "log/slog"

// Entailment labels. Any other value, including empty or missing cells,
// means "no relation" and is excluded from all counts.
const (
	LabelEntailment    = "Entailment"
	LabelNeutral       = "Neutral"
	LabelContradiction = "Contradiction"
)

// RelationCounts tallies the entailment labels observed for one chunk.
type RelationCounts struct {
	Entailments    int `json:"entailments"`
	Neutrals       int `json:"neutrals"`
	Contradictions int `json:"contradictions"`
	Total          int `json:"total"`
}

// AnalyzeRelations classifies an entailment-label matrix into per-chunk
// label counts. The matrix orientation (rows-are-chunks vs rows-are-claims)
// is not guaranteed by the input format and is inferred per call:
//
//  1. rows == chunkCount        -> rows are chunks, claims along columns
//  2. cols == chunkCount        -> rows are claims, chunks along columns
//  3. neither matches: when cols >= chunkCount and (rows < chunkCount or
//     rows == 0) rows are claims; otherwise rows are chunks.
//
// Every chunk index in [0, chunkCount) gets an entry. Irregular row
// lengths, non-list rows, and non-string cells are skipped, so a malformed
// matrix degrades to zero counts rather than aborting the caller's pass.
//
// This full heuristic is deliberately distinct from LocalRelations, which
// assumes a fixed orientation; see that function's note.
func AnalyzeRelations(matrix any, chunkCount int) map[int]RelationCounts {
	relations := make(map[int]RelationCounts, chunkCount)

	outer, isList := asSlice(matrix)
	if matrix != nil && !isList {
		slog.Debug("relations matrix is not a list, counting zeros", "chunk_count", chunkCount)
	}

	rows := len(outer)
	cols := 0
	for _, r := range outer {
		if inner, ok := asSlice(r); ok && len(inner) > cols {
			cols = len(inner)
		}
	}

	rowsAreChunks := true
	claimCount := cols
	switch {
	case rows == chunkCount:
		// keep defaults
	case cols == chunkCount:
		rowsAreChunks = false
		claimCount = rows
	case cols >= chunkCount && (rows < chunkCount || rows == 0):
		rowsAreChunks = false
		claimCount = rows
	}

	cell := func(r, c int) string {
		if r < 0 || r >= len(outer) {
			return ""
		}
		row, ok := asSlice(outer[r])
		if !ok || c < 0 || c >= len(row) {
			return ""
		}
		return asString(row[c])
	}

	for chunkIdx := 0; chunkIdx < chunkCount; chunkIdx++ {
		var counts RelationCounts
		for claimIdx := 0; claimIdx < claimCount; claimIdx++ {
			var rel string
			if rowsAreChunks {
				rel = cell(chunkIdx, claimIdx)
			} else {
				rel = cell(claimIdx, chunkIdx)
			}
			switch rel {
			case LabelEntailment:
				counts.Entailments++
				counts.Total++
			case LabelNeutral:
				counts.Neutrals++
				counts.Total++
			case LabelContradiction:
				counts.Contradictions++
				counts.Total++
			}
		}
		relations[chunkIdx] = counts
	}

	return relations
}
