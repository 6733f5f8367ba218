package hybridindex

import "testing"

func TestPmiGraphExpandRespectsThresholdAndLimit(t *testing.T) {
	g := NewPmiGraph()
	// "b" only ever appears alongside "a"; "c" appears with "a" once and
	// otherwise with "d". ln(pair/(term*neighbor)) is never positive, so
	// PMI(a,b) = ln(10/110) ≈ -2.40 and PMI(a,c) = ln(1/66) ≈ -4.19: a
	// threshold of -3 keeps b and drops c.
	for i := 0; i < 10; i++ {
		g.Update([]string{"a", "b"})
	}
	g.Update([]string{"a", "c"})
	for i := 0; i < 5; i++ {
		g.Update([]string{"c", "d"})
	}

	expansions := g.Expand("a", -3.0, 5)
	if len(expansions) == 0 {
		t.Fatal("expected at least one expansion")
	}
	if expansions[0].Term != "b" {
		t.Fatalf("expected b to rank first (stronger co-occurrence), got %s", expansions[0].Term)
	}
}

func TestPmiGraphExpandUnknownTermIsEmpty(t *testing.T) {
	g := NewPmiGraph()
	g.Update([]string{"a", "b"})

	if exp := g.Expand("unknown", 0.0, 5); exp != nil {
		t.Fatalf("expected nil expansions for unknown term, got %v", exp)
	}
}

func TestPmiGraphSnapshotRoundTrip(t *testing.T) {
	g := NewPmiGraph()
	g.Update([]string{"x", "y", "z"})

	snap := g.snapshot()
	restored := pmiFromSnapshot(snap)

	original := g.Expand("x", -10, 10)
	after := restored.Expand("x", -10, 10)
	if len(original) != len(after) {
		t.Fatalf("expected same expansion count, got %d vs %d", len(original), len(after))
	}
}
