package analysis

// LocalCounts holds per-question entailment counts for one chunk, split by
// the ground-truth and response matrices. Field names are part of the
// enriched-run schema.
type LocalCounts struct {
	GTEntailments    int `json:"local_gt_entailments"`
	GTNeutrals       int `json:"local_gt_neutrals"`
	GTContradictions int `json:"local_gt_contradictions"`
	GTTotal          int `json:"local_gt_total"`

	ResponseEntailments    int `json:"local_response_entailments"`
	ResponseNeutrals       int `json:"local_response_neutrals"`
	ResponseContradictions int `json:"local_response_contradictions"`
	ResponseTotal          int `json:"local_response_total"`
}

// asDocument converts the counts to a plain JSON object so they can be
// attached to a schemaless chunk and queried by the analysis agent.
func (c LocalCounts) asDocument() map[string]any {
	return map[string]any{
		"local_gt_entailments":          c.GTEntailments,
		"local_gt_neutrals":             c.GTNeutrals,
		"local_gt_contradictions":       c.GTContradictions,
		"local_gt_total":                c.GTTotal,
		"local_response_entailments":    c.ResponseEntailments,
		"local_response_neutrals":       c.ResponseNeutrals,
		"local_response_contradictions": c.ResponseContradictions,
		"local_response_total":          c.ResponseTotal,
	}
}

// LocalRelations computes per-chunk entailment counts for one question
// without mixing data across questions.
//
// Unlike AnalyzeRelations, no orientation inference happens here:
// retrieved2answer[i] and retrieved2response[i] are taken to be the
// per-claim label sequences for chunk i (rows-are-chunks, fixed). The
// asymmetry matches the reference behavior of the local and global passes
// and must not be unified without a product decision; indices beyond the
// matrix length yield all-zero entries.
func LocalRelations(question map[string]any) map[int]LocalCounts {
	chunks, _ := asSlice(question["retrieved_context"])
	gtMatrix, _ := asSlice(question["retrieved2answer"])
	respMatrix, _ := asSlice(question["retrieved2response"])

	local := make(map[int]LocalCounts, len(chunks))
	for i := range chunks {
		var counts LocalCounts

		if i < len(gtMatrix) {
			row, _ := asSlice(gtMatrix[i])
			for _, rv := range row {
				switch asString(rv) {
				case LabelEntailment:
					counts.GTEntailments++
				case LabelNeutral:
					counts.GTNeutrals++
				case LabelContradiction:
					counts.GTContradictions++
				}
			}
		}
		if i < len(respMatrix) {
			row, _ := asSlice(respMatrix[i])
			for _, rv := range row {
				switch asString(rv) {
				case LabelEntailment:
					counts.ResponseEntailments++
				case LabelNeutral:
					counts.ResponseNeutrals++
				case LabelContradiction:
					counts.ResponseContradictions++
				}
			}
		}

		counts.GTTotal = counts.GTEntailments + counts.GTNeutrals + counts.GTContradictions
		counts.ResponseTotal = counts.ResponseEntailments + counts.ResponseNeutrals + counts.ResponseContradictions
		local[i] = counts
	}

	return local
}
