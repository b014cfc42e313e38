package analysis

import "math"

// relationAccumulator sums entailment counts for one unique chunk across
// every question it appears in.
type relationAccumulator struct {
	gtEntailments    int
	gtNeutrals       int
	gtContradictions int
	totalGT          int

	responseEntailments    int
	responseNeutrals       int
	responseContradictions int
	totalResponse          int
}

// round3 rounds to three decimal places, half away from zero.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// importanceMetrics derives entailment rates from accumulated counts. The
// denominator is floored at 1, so a chunk with zero relations gets rate 0
// rather than an undefined value; this policy is part of the contract.
func importanceMetrics(acc relationAccumulator) (gtRate, responseRate float64) {
	gtRate = round3(float64(acc.gtEntailments) / float64(max(acc.totalGT, 1)))
	responseRate = round3(float64(acc.responseEntailments) / float64(max(acc.totalResponse, 1)))
	return gtRate, responseRate
}

// EffectivenessLookup builds the global per-chunk effectiveness records
// for a run: frequency statistics merged with entailment counts summed
// across all questions sharing the chunk key, plus importance rates.
//
// The entailment side runs AnalyzeRelations twice per question (once for
// retrieved2answer, once for retrieved2response) with full orientation
// inference. Keys with frequency data but no entailment data keep all-zero
// accumulators.
func EffectivenessLookup(questions []any) map[string]map[string]any {
	frequencies := ChunkFrequencies(questions)

	accumulators := make(map[string]*relationAccumulator)
	for _, qv := range questions {
		question, ok := asMap(qv)
		if !ok {
			continue
		}
		if _, present := question["retrieved_context"]; !present {
			continue
		}

		chunks, _ := asSlice(question["retrieved_context"])
		gtRelations := AnalyzeRelations(question["retrieved2answer"], len(chunks))
		responseRelations := AnalyzeRelations(question["retrieved2response"], len(chunks))

		for i, cv := range chunks {
			chunk, ok := asMap(cv)
			if !ok {
				continue
			}
			key := ChunkKey(asString(chunk["doc_id"]), asString(chunk["text"]))

			acc := accumulators[key]
			if acc == nil {
				acc = &relationAccumulator{}
				accumulators[key] = acc
			}
			if gt, ok := gtRelations[i]; ok {
				acc.gtEntailments += gt.Entailments
				acc.gtNeutrals += gt.Neutrals
				acc.gtContradictions += gt.Contradictions
				acc.totalGT += gt.Total
			}
			if resp, ok := responseRelations[i]; ok {
				acc.responseEntailments += resp.Entailments
				acc.responseNeutrals += resp.Neutrals
				acc.responseContradictions += resp.Contradictions
				acc.totalResponse += resp.Total
			}
		}
	}

	lookup := make(map[string]map[string]any, len(frequencies))
	for key, freq := range frequencies {
		acc := relationAccumulator{}
		if a := accumulators[key]; a != nil {
			acc = *a
		}
		gtRate, responseRate := importanceMetrics(acc)

		lookup[key] = map[string]any{
			"doc_id":                   freq.DocID,
			"text":                     freq.Text,
			"total_appearances":        freq.TotalAppearances,
			"questions_appeared":       freq.QuestionsAppeared,
			"frequency_rank":           freq.FrequencyRank,
			"total_unique_chunks":      freq.TotalUniqueChunks,
			"gt_entailments":           acc.gtEntailments,
			"gt_neutrals":              acc.gtNeutrals,
			"gt_contradictions":        acc.gtContradictions,
			"total_gt_relations":       acc.totalGT,
			"response_entailments":     acc.responseEntailments,
			"response_neutrals":        acc.responseNeutrals,
			"response_contradictions":  acc.responseContradictions,
			"total_response_relations": acc.totalResponse,
			"gt_entailment_rate":       gtRate,
			"response_entailment_rate": responseRate,
		}
	}

	return lookup
}
