package hybridindex

import "context"

// Index is the top-level Hybrid Index: a BM25 lexical layer over a fixed
// corpus of chunks, reranked by the fallback engine's identifier/PMI/
// n-gram signals. Construction is not incremental by design (the spec
// fixes chunking as an external, out-of-scope concern); callers rebuild
// an Index whenever the underlying corpus changes.
type Index struct {
	bm25      *BM25Index
	artifacts *FallbackArtifacts
	engine    *FallbackEngine
	vectors   VectorStore
	weights   Weights
}

// Option configures an Index at construction time.
type Option func(*Index)

// WithVectorStore attaches an optional dense-retrieval seeding backend.
func WithVectorStore(store VectorStore) Option {
	return func(i *Index) { i.vectors = store }
}

// WithWeights overrides the default fallback rerank weights.
func WithWeights(w Weights) Option {
	return func(i *Index) { i.weights = w }
}

// WithArtifacts seeds the index from previously persisted fallback
// artifacts (e.g. loaded via LoadFallbackArtifacts) instead of building
// them fresh from chunks.
func WithArtifacts(artifacts *FallbackArtifacts) Option {
	return func(i *Index) { i.artifacts = artifacts }
}

// New builds a Hybrid Index over chunks: a BM25 postings table plus
// fallback artifacts (PMI graph, n-gram vectors, identifier profiles)
// derived from each chunk's text and identifier tokens.
func New(chunks []Chunk, opts ...Option) *Index {
	idx := &Index{
		bm25:    NewBM25Index(chunks),
		weights: DefaultWeights(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.artifacts == nil {
		idx.artifacts = NewFallbackArtifacts(nil)
	}
	// Only populate artifacts not already present (so a preloaded
	// artifact set via WithArtifacts is preserved rather than recomputed).
	for _, c := range chunks {
		if _, ok := idx.artifacts.ngram(c.ID); ok {
			continue
		}
		idx.artifacts.RecordChunk(c, NGramVectorFromText(c.Text))
	}
	idx.engine = NewFallbackEngine(idx.artifacts, idx.weights)
	return idx
}

// Search runs the BM25 lexical layer followed by the fallback rerank,
// returning at most limit hits sorted by descending final score.
func (i *Index) Search(query string, limit int) FallbackResult {
	return i.engine.Rerank(query, i.candidateHits(query, limit), limit)
}

// SearchWithEmbedding behaves like Search, but when a VectorStore is
// configured (via WithVectorStore) it additionally queries it with
// queryEmbedding and unions the nearest chunks into the BM25 candidate
// set before reranking, so dense hits the lexical layer missed still
// get an identifier/PMI/n-gram score and a chance to surface. With no
// VectorStore configured, or an empty queryEmbedding, this is equivalent
// to Search.
func (i *Index) SearchWithEmbedding(ctx context.Context, query string, queryEmbedding []float32, limit int) (FallbackResult, error) {
	hits := i.candidateHits(query, limit)
	if i.vectors != nil && len(queryEmbedding) > 0 {
		bm25Limit := searchCandidateLimit(limit)
		vecHits, err := i.vectors.Query(ctx, queryEmbedding, bm25Limit)
		if err != nil {
			return FallbackResult{}, err
		}
		for idx := range vecHits {
			vecHits[idx].Score *= i.weights.VectorSeed
		}
		hits = unionLexicalHits(hits, vecHits)
	}
	return i.engine.Rerank(query, hits, limit), nil
}

func (i *Index) candidateHits(query string, limit int) []LexicalHit {
	return i.bm25.Search(query, searchCandidateLimit(limit))
}

// searchCandidateLimit widens a caller-facing result limit into a BM25
// candidate-set size, so the rerank signals have something to work with
// beyond the top few lexical matches.
func searchCandidateLimit(limit int) int {
	if limit <= 0 || limit < 50 {
		return 50
	}
	return limit
}

// unionLexicalHits merges b into a by ChunkID, keeping the higher score
// for chunks present in both sets.
func unionLexicalHits(a, b []LexicalHit) []LexicalHit {
	index := make(map[uint64]int, len(a))
	out := append([]LexicalHit(nil), a...)
	for pos, h := range out {
		index[h.ChunkID] = pos
	}
	for _, h := range b {
		if pos, ok := index[h.ChunkID]; ok {
			if h.Score > out[pos].Score {
				out[pos].Score = h.Score
			}
			continue
		}
		index[h.ChunkID] = len(out)
		out = append(out, h)
	}
	return out
}

// Artifacts exposes the underlying fallback artifacts, e.g. for
// Persist/LoadFallbackArtifacts round-tripping.
func (i *Index) Artifacts() *FallbackArtifacts { return i.artifacts }
