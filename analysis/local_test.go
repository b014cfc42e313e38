package analysis

import "testing"

// ---------------------------------------------------------------------------
// Fixed rows-are-chunks indexing
// ---------------------------------------------------------------------------

func TestLocalRelationsCounts(t *testing.T) {
	q := question("q1", chunk("d1", "t1"), chunk("d2", "t2"))
	q["retrieved2answer"] = labels(
		[]string{"Entailment", "Neutral"},
		[]string{"Contradiction", "Entailment"},
	)
	q["retrieved2response"] = labels(
		[]string{"Neutral"},
		[]string{"Entailment", "Entailment"},
	)

	got := LocalRelations(q)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	c0 := got[0]
	if c0.GTEntailments != 1 || c0.GTNeutrals != 1 || c0.GTTotal != 2 {
		t.Errorf("chunk 0 GT = %+v, want 1 entailment, 1 neutral, total 2", c0)
	}
	if c0.ResponseNeutrals != 1 || c0.ResponseTotal != 1 {
		t.Errorf("chunk 0 response = %+v, want 1 neutral, total 1", c0)
	}
	c1 := got[1]
	if c1.GTContradictions != 1 || c1.GTEntailments != 1 || c1.GTTotal != 2 {
		t.Errorf("chunk 1 GT = %+v, want 1 contradiction, 1 entailment, total 2", c1)
	}
	if c1.ResponseEntailments != 2 || c1.ResponseTotal != 2 {
		t.Errorf("chunk 1 response = %+v, want 2 entailments", c1)
	}
}

func TestLocalRelationsNoOrientationInference(t *testing.T) {
	// 3 claim rows for 2 chunks: AnalyzeRelations would flip to
	// rows-are-claims here, but the local pass must keep reading row i as
	// chunk i's labels. Row 2 is simply never consulted.
	q := question("q1", chunk("d1", "t1"), chunk("d2", "t2"))
	q["retrieved2answer"] = labels(
		[]string{"Entailment", "Entailment"},
		[]string{"Neutral", "Neutral"},
		[]string{"Contradiction", "Contradiction"},
	)

	got := LocalRelations(q)

	if got[0].GTEntailments != 2 || got[0].GTTotal != 2 {
		t.Errorf("chunk 0 = %+v, want row 0 counts (2 entailments)", got[0])
	}
	if got[1].GTNeutrals != 2 || got[1].GTTotal != 2 {
		t.Errorf("chunk 1 = %+v, want row 1 counts (2 neutrals)", got[1])
	}
}

func TestLocalRelationsIndexBeyondMatrix(t *testing.T) {
	q := question("q1", chunk("d1", "t1"), chunk("d2", "t2"))
	q["retrieved2answer"] = labels([]string{"Entailment"})

	got := LocalRelations(q)

	if got[0].GTEntailments != 1 {
		t.Errorf("chunk 0 = %+v, want 1 entailment", got[0])
	}
	if got[1] != (LocalCounts{}) {
		t.Errorf("chunk 1 = %+v, want all zeros (no matrix row)", got[1])
	}
}

func TestLocalRelationsMissingMatrices(t *testing.T) {
	q := question("q1", chunk("d1", "t1"))

	got := LocalRelations(q)

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0] != (LocalCounts{}) {
		t.Errorf("chunk 0 = %+v, want zeros with both matrices absent", got[0])
	}
}

func TestLocalRelationsMalformedRows(t *testing.T) {
	q := question("q1", chunk("d1", "t1"), chunk("d2", "t2"))
	q["retrieved2answer"] = []any{"Entailment", []any{"Neutral", 3, "bogus"}}

	got := LocalRelations(q)

	// Row 0 is a bare string, not a label list: zero counts.
	if got[0].GTTotal != 0 {
		t.Errorf("chunk 0 total = %d, want 0 for non-list row", got[0].GTTotal)
	}
	// Row 1 counts only the recognized label.
	if got[1].GTNeutrals != 1 || got[1].GTTotal != 1 {
		t.Errorf("chunk 1 = %+v, want single neutral", got[1])
	}
}
