package hybridindex

import (
	"math"
	"sort"
	"strings"
)

// BM25 parameters following Robertson/Sparck-Jones defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BM25Index is a lexical index over a corpus of Chunks, scoring queries
// with Okapi BM25.
type BM25Index struct {
	chunks    map[uint64]Chunk
	postings  map[string]map[uint64]int // term -> chunkID -> term frequency
	docLen    map[uint64]int
	avgDocLen float64
	order     []uint64 // insertion order, for deterministic iteration
}

// NewBM25Index builds an index over the given chunks.
func NewBM25Index(chunks []Chunk) *BM25Index {
	idx := &BM25Index{
		chunks:   make(map[uint64]Chunk, len(chunks)),
		postings: make(map[string]map[uint64]int),
		docLen:   make(map[uint64]int, len(chunks)),
	}
	var totalLen int
	for _, c := range chunks {
		idx.chunks[c.ID] = c
		idx.order = append(idx.order, c.ID)
		terms := tokenize(c.Text)
		idx.docLen[c.ID] = len(terms)
		totalLen += len(terms)
		for _, term := range terms {
			bucket, ok := idx.postings[term]
			if !ok {
				bucket = make(map[uint64]int)
				idx.postings[term] = bucket
			}
			bucket[c.ID]++
		}
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}
	return idx
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'))
	})
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

// Search scores every chunk containing at least one query term and
// returns hits sorted by descending BM25 score, truncated to limit.
func (idx *BM25Index) Search(query string, limit int) []LexicalHit {
	queryTerms := tokenize(query)
	n := float64(len(idx.chunks))
	scores := make(map[uint64]float64)

	for _, term := range queryTerms {
		bucket, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(bucket))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for chunkID, tf := range bucket {
			dl := float64(idx.docLen[chunkID])
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*dl/zeroSafe(idx.avgDocLen))
			scores[chunkID] += idf * (float64(tf) * (bm25K1 + 1)) / zeroSafe(denom)
		}
	}

	hits := make([]LexicalHit, 0, len(scores))
	for _, chunkID := range idx.order {
		score, ok := scores[chunkID]
		if !ok {
			continue
		}
		c := idx.chunks[chunkID]
		hits = append(hits, LexicalHit{
			ChunkID:  chunkID,
			FilePath: c.FilePath,
			Language: c.Language,
			Score:    score,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func zeroSafe(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
