package hybridindex

import "testing"

func TestBM25SearchRanksExactMatchHigher(t *testing.T) {
	chunks := []Chunk{
		NewChunk(1, "a.go", "go", 1, 5, "func parseConfig(path string) error { return nil }"),
		NewChunk(2, "b.go", "go", 1, 5, "func writeFile(name string, data []byte) error { return nil }"),
	}
	idx := NewBM25Index(chunks)

	hits := idx.Search("parseConfig", 10)
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].ChunkID != 1 {
		t.Fatalf("expected chunk 1 to rank first, got %d", hits[0].ChunkID)
	}
}

func TestBM25SearchNoMatchesIsEmpty(t *testing.T) {
	chunks := []Chunk{NewChunk(1, "a.go", "go", 1, 1, "func foo() {}")}
	idx := NewBM25Index(chunks)

	hits := idx.Search("nonexistentterm", 10)
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestBM25SearchRespectsLimit(t *testing.T) {
	var chunks []Chunk
	for i := uint64(1); i <= 5; i++ {
		chunks = append(chunks, NewChunk(i, "a.go", "go", 1, 1, "common term shared across chunks"))
	}
	idx := NewBM25Index(chunks)

	hits := idx.Search("common", 2)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}
