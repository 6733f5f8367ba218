package hybridindex

import (
	"os"
	"testing"
)

func stubChunk(id uint64, text string, identifiers []string) Chunk {
	return Chunk{
		ID:               id,
		FilePath:         "test.go",
		Language:         "go",
		StartLine:        1,
		EndLine:          1,
		Text:             text,
		Identifiers:      identifiers,
		IdentifierTokens: identifiers,
		TokenCount:       4,
		Checksum:         "abc",
	}
}

func TestNGramSimilarityBehaves(t *testing.T) {
	a := NGramVectorFromText("normalize_json")
	b := NGramVectorFromText("normalize_json")
	c := NGramVectorFromText("parse_http")

	if sim := a.CosineSimilarity(b); sim <= 0.9 {
		t.Fatalf("expected near-identical similarity, got %f", sim)
	}
	if sim := a.CosineSimilarity(c); sim >= 0.5 {
		t.Fatalf("expected low similarity for distinct text, got %f", sim)
	}
}

func TestRerankScoresIdentifierOverlap(t *testing.T) {
	artifacts := NewFallbackArtifacts(nil)
	chunk := stubChunk(1, "fn test() {}", []string{"normalize", "json", "file"})
	artifacts.RecordChunk(chunk, NGramVectorFromText(chunk.Text))

	engine := NewFallbackEngine(artifacts, DefaultWeights())
	hits := []LexicalHit{{ChunkID: 1, FilePath: "test.go", Language: "go", Score: 1.0}}

	result := engine.Rerank("normalize json", hits, 10)
	if len(result.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(result.Hits))
	}
	if result.Hits[0].IdentifierScore <= 0 {
		t.Fatalf("expected positive identifier score, got %f", result.Hits[0].IdentifierScore)
	}
}

func TestFallbackTelemetryReportsLatencies(t *testing.T) {
	artifacts := NewFallbackArtifacts(nil)
	chunk := stubChunk(2, "async runtime", []string{"async", "runtime"})
	artifacts.RecordChunk(chunk, NGramVectorFromText(chunk.Text))

	engine := NewFallbackEngine(artifacts, DefaultWeights())
	hits := []LexicalHit{{ChunkID: 2, FilePath: "async.go", Language: "go", Score: 1.0}}

	result := engine.Rerank("async runtime", hits, 5)
	if result.Telemetry.TotalLatencyMs < result.Telemetry.PMILatencyMs {
		t.Fatal("total latency should be >= pmi latency")
	}
	if result.Telemetry.TotalLatencyMs < result.Telemetry.NGramLatencyMs {
		t.Fatal("total latency should be >= ngram latency")
	}
	if result.Telemetry.PMILatencyMs < 0 || result.Telemetry.NGramLatencyMs < 0 {
		t.Fatal("latencies must be non-negative")
	}
}

func TestPersistenceRoundTripRestoresData(t *testing.T) {
	artifacts := NewFallbackArtifacts(nil)
	chunk := stubChunk(5, "persistence text", []string{"persist"})
	artifacts.RecordChunk(chunk, NGramVectorFromText(chunk.Text))

	dir, err := os.MkdirTemp("", "hybridindex-fallback-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	if err := artifacts.Persist(dir); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded, err := LoadFallbackArtifacts(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	restoredNgram, ok := loaded.ngram(chunk.ID)
	if !ok {
		t.Fatal("expected ngram restored")
	}
	if sim := restoredNgram.CosineSimilarity(NGramVectorFromText(chunk.Text)); sim <= 0.9 {
		t.Fatalf("expected near-identical restored ngram similarity, got %f", sim)
	}

	identifier := loaded.identifier(chunk.ID)
	if identifier.ScoreOverlap([]string{"persist"}) <= 0 {
		t.Fatal("expected identifier overlap restored")
	}
}

func TestLoadFallbackArtifactsMissingFilesIsGraceful(t *testing.T) {
	dir, err := os.MkdirTemp("", "hybridindex-empty-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	artifacts, err := LoadFallbackArtifacts(dir)
	if err != nil {
		t.Fatalf("expected graceful load of missing files, got %v", err)
	}
	if _, ok := artifacts.ngram(1); ok {
		t.Fatal("expected empty ngram set")
	}
}
