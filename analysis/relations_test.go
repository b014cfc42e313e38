package analysis

import "testing"

func labels(rows ...[]string) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

// ---------------------------------------------------------------------------
// Orientation inference
// ---------------------------------------------------------------------------

func TestAnalyzeRelationsRowsAreChunks(t *testing.T) {
	// rows == chunkCount wins regardless of cols.
	matrix := labels(
		[]string{"Entailment", "Neutral", "Neutral"},
		[]string{"Contradiction", "Entailment", "Neutral"},
	)

	got := AnalyzeRelations(matrix, 2)

	if got[0].Entailments != 1 || got[0].Neutrals != 2 || got[0].Contradictions != 0 {
		t.Errorf("chunk 0 = %+v, want 1 entailment, 2 neutrals", got[0])
	}
	if got[1].Contradictions != 1 || got[1].Entailments != 1 || got[1].Neutrals != 1 {
		t.Errorf("chunk 1 = %+v, want 1 of each label", got[1])
	}
}

func TestAnalyzeRelationsRowsAreClaims(t *testing.T) {
	// cols == chunkCount and rows != chunkCount: rows are claims, so each
	// chunk's labels are read down a column.
	matrix := labels(
		[]string{"Entailment", "Neutral"},
		[]string{"Entailment", "Contradiction"},
		[]string{"Neutral", "Neutral"},
	)

	got := AnalyzeRelations(matrix, 2)

	if got[0].Entailments != 2 || got[0].Neutrals != 1 {
		t.Errorf("chunk 0 = %+v, want 2 entailments, 1 neutral", got[0])
	}
	if got[1].Neutrals != 2 || got[1].Contradictions != 1 {
		t.Errorf("chunk 1 = %+v, want 2 neutrals, 1 contradiction", got[1])
	}
}

func TestAnalyzeRelationsSquareMatrixPrefersRows(t *testing.T) {
	// When both dimensions equal chunkCount, the rows-are-chunks branch
	// must win (it is checked first).
	matrix := labels(
		[]string{"Entailment", "Entailment"},
		[]string{"Neutral", "Neutral"},
	)

	got := AnalyzeRelations(matrix, 2)

	if got[0].Entailments != 2 {
		t.Errorf("chunk 0 entailments = %d, want 2 (rows-are-chunks)", got[0].Entailments)
	}
	if got[1].Neutrals != 2 {
		t.Errorf("chunk 1 neutrals = %d, want 2 (rows-are-chunks)", got[1].Neutrals)
	}
}

func TestAnalyzeRelationsAmbiguousWideMatrix(t *testing.T) {
	// Neither dimension matches chunkCount=3; cols(4) >= 3 and rows(2) < 3,
	// so rows are treated as claims.
	matrix := labels(
		[]string{"Entailment", "Neutral", "Contradiction", "Neutral"},
		[]string{"Neutral", "Entailment", "Neutral", "Entailment"},
	)

	got := AnalyzeRelations(matrix, 3)

	if len(got) != 3 {
		t.Fatalf("len(got) = %d, want 3", len(got))
	}
	if got[0].Entailments != 1 || got[0].Neutrals != 1 {
		t.Errorf("chunk 0 = %+v, want column 0 counts", got[0])
	}
	if got[2].Contradictions != 1 || got[2].Neutrals != 1 {
		t.Errorf("chunk 2 = %+v, want column 2 counts", got[2])
	}
}

func TestAnalyzeRelationsAmbiguousTallMatrix(t *testing.T) {
	// rows(4) > chunkCount(2) and cols(1) < 2: falls through to
	// rows-are-chunks, so only the first two rows are scanned.
	matrix := labels(
		[]string{"Entailment"},
		[]string{"Neutral"},
		[]string{"Entailment"},
		[]string{"Entailment"},
	)

	got := AnalyzeRelations(matrix, 2)

	if got[0].Entailments != 1 || got[0].Total != 1 {
		t.Errorf("chunk 0 = %+v, want single entailment", got[0])
	}
	if got[1].Neutrals != 1 || got[1].Total != 1 {
		t.Errorf("chunk 1 = %+v, want single neutral", got[1])
	}
}

// ---------------------------------------------------------------------------
// Degradation and counting invariants
// ---------------------------------------------------------------------------

func TestAnalyzeRelationsMalformedInputs(t *testing.T) {
	cases := []struct {
		name   string
		matrix any
	}{
		{"nil matrix", nil},
		{"not a list", "bogus"},
		{"empty matrix", []any{}},
		{"rows not lists", []any{"Entailment", 42}},
	}

	for _, tc := range cases {
		got := AnalyzeRelations(tc.matrix, 3)
		if len(got) != 3 {
			t.Errorf("%s: len = %d, want 3 entries", tc.name, len(got))
		}
		for i := 0; i < 3; i++ {
			if got[i] != (RelationCounts{}) {
				t.Errorf("%s: chunk %d = %+v, want zeros", tc.name, i, got[i])
			}
		}
	}
}

func TestAnalyzeRelationsIrregularRows(t *testing.T) {
	// Short rows and non-string cells are skipped, not counted.
	matrix := []any{
		[]any{"Entailment", "Neutral"},
		[]any{"Contradiction"},
		[]any{nil, 7, "Entailment"},
	}

	got := AnalyzeRelations(matrix, 3)

	if got[1].Total != 1 || got[1].Contradictions != 1 {
		t.Errorf("chunk 1 = %+v, want only the contradiction", got[1])
	}
	if got[2].Total != 1 || got[2].Entailments != 1 {
		t.Errorf("chunk 2 = %+v, want only the trailing entailment", got[2])
	}
}

func TestAnalyzeRelationsUnknownLabelsExcluded(t *testing.T) {
	matrix := labels(
		[]string{"Entailment", "maybe", "", "Neutral"},
	)

	got := AnalyzeRelations(matrix, 1)

	if got[0].Total != 2 {
		t.Errorf("total = %d, want 2 (unknown and empty labels excluded)", got[0].Total)
	}
}

func TestAnalyzeRelationsCountsSumToTotal(t *testing.T) {
	matrix := labels(
		[]string{"Entailment", "Neutral", "junk", "Contradiction"},
		[]string{"Neutral", "", "Neutral", "Entailment"},
	)

	got := AnalyzeRelations(matrix, 2)

	for i, counts := range got {
		sum := counts.Entailments + counts.Neutrals + counts.Contradictions
		if sum != counts.Total {
			t.Errorf("chunk %d: sum %d != total %d", i, sum, counts.Total)
		}
		if counts.Total > 4 {
			t.Errorf("chunk %d: total %d exceeds claim count", i, counts.Total)
		}
	}
}

func TestAnalyzeRelationsZeroChunks(t *testing.T) {
	got := AnalyzeRelations(labels([]string{"Entailment"}), 0)
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 entries for zero chunks", len(got))
	}
}
