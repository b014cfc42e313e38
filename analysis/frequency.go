package analysis

import "sort"

// ChunkFrequency records how often one unique chunk appears across a run.
type ChunkFrequency struct {
	DocID             string   `json:"doc_id"`
	Text              string   `json:"text"`
	TotalAppearances  int      `json:"total_appearances"`
	QuestionsAppeared []string `json:"questions_appeared"`
	FrequencyRank     int      `json:"frequency_rank"`
	TotalUniqueChunks int      `json:"total_unique_chunks"`
}

// ChunkKey is the cross-question identity of a chunk: doc_id and text
// joined by "::". Two chunks are the same logical chunk iff both fields
// match exactly. A doc_id that itself contains "::" can alias a different
// chunk's key; the delimiter is part of the output contract, so this edge
// is documented rather than fixed.
func ChunkKey(docID, text string) string {
	return docID + "::" + text
}

// ChunkFrequencies deduplicates retrieved chunks across all questions and
// ranks them by appearance count. A chunk appearing twice in one question
// counts twice in TotalAppearances, but each query_id is recorded once in
// QuestionsAppeared (insertion order, "unknown" when absent).
//
// FrequencyRank is 1-based, ordered by TotalAppearances descending with
// ties broken by first-encounter order over the questions as given. The
// ranking is deterministic: re-running on the same input assigns identical
// ranks.
func ChunkFrequencies(questions []any) map[string]*ChunkFrequency {
	stats := make(map[string]*ChunkFrequency)
	var order []string // keys in first-encounter order, the rank tie-break

	for _, qv := range questions {
		question, ok := asMap(qv)
		if !ok {
			continue
		}
		if _, present := question["retrieved_context"]; !present {
			continue
		}

		queryID := "unknown"
		if v, present := question["query_id"]; present {
			queryID = asString(v)
		}

		chunks, _ := asSlice(question["retrieved_context"])
		for _, cv := range chunks {
			chunk, ok := asMap(cv)
			if !ok {
				continue
			}
			docID := asString(chunk["doc_id"])
			text := asString(chunk["text"])
			key := ChunkKey(docID, text)

			entry := stats[key]
			if entry == nil {
				entry = &ChunkFrequency{DocID: docID, Text: text}
				stats[key] = entry
				order = append(order, key)
			}
			entry.TotalAppearances++

			seen := false
			for _, id := range entry.QuestionsAppeared {
				if id == queryID {
					seen = true
					break
				}
			}
			if !seen {
				entry.QuestionsAppeared = append(entry.QuestionsAppeared, queryID)
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return stats[order[i]].TotalAppearances > stats[order[j]].TotalAppearances
	})
	for rank, key := range order {
		stats[key].FrequencyRank = rank + 1
		stats[key].TotalUniqueChunks = len(order)
	}

	return stats
}
