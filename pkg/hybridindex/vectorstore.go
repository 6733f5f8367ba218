package hybridindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"
)

// VectorStore is an optional port for seeding an additional LexicalHit-
// shaped candidate set from dense embeddings. Index.SearchWithEmbedding
// unions its Query results into the BM25 candidate set by ChunkID before
// reranking; Search itself never consults it, so a kernel embedding a
// plain Index without a configured VectorStore sees identical behavior
// to before one was wired in.
type VectorStore interface {
	// Upsert stores or replaces the embedding for a chunk.
	Upsert(ctx context.Context, chunkID uint64, embedding []float32) error
	// Query returns up to topK chunk IDs nearest to embedding, each with
	// a similarity score usable directly as a LexicalHit.Score.
	Query(ctx context.Context, embedding []float32, topK int) ([]LexicalHit, error)
}

// ChromemVectorStore implements VectorStore over an embedded, in-process
// chromem-go collection. It is the default seeding backend; networked
// deployments swap in an adapter over qdrant-go-client or
// pinecone-io/go-pinecone behind the same VectorStore port.
type ChromemVectorStore struct {
	db         *chromem.DB
	dbPath     string // empty when in-memory only
	compress   bool
	collection *chromem.Collection
	chunks     map[string]uint64 // chromem doc id -> chunk id
	docCount   int
}

// identityEmbeddingFunc is used because the kernel always supplies
// pre-computed embeddings; it must never be invoked by chromem itself.
func identityEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("hybridindex: embedding function invoked, vectors must be pre-computed")
}

// NewChromemVectorStore opens (or creates) collection within db.
func NewChromemVectorStore(db *chromem.DB, collectionName string) (*ChromemVectorStore, error) {
	collection, err := db.GetOrCreateCollection(collectionName, nil, identityEmbeddingFunc)
	if err != nil {
		return nil, err
	}
	return &ChromemVectorStore{db: db, collection: collection, chunks: make(map[string]uint64)}, nil
}

// OpenChromemVectorStore opens a ChromemVectorStore backed by dbPath. An
// empty dbPath yields an in-memory-only database; a non-empty one is
// loaded if it already exists (gzip-compressed when compress is true) or
// created fresh otherwise.
func OpenChromemVectorStore(dbPath string, compress bool, collectionName string) (*ChromemVectorStore, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("hybridindex: create vector db dir: %w", err)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			loaded, loadErr := chromem.NewPersistentDB(dbPath, compress)
			if loadErr != nil {
				return nil, fmt.Errorf("hybridindex: load vector db %q: %w", dbPath, loadErr)
			}
			db = loaded
		} else {
			db = chromem.NewDB()
		}
	}
	store, err := NewChromemVectorStore(db, collectionName)
	if err != nil {
		return nil, err
	}
	store.dbPath = dbPath
	store.compress = compress
	return store, nil
}

// Persist writes the vector database to its backing dbPath, a no-op for
// an in-memory-only store (one opened with an empty dbPath).
func (s *ChromemVectorStore) Persist() error {
	if s.dbPath == "" {
		return nil
	}
	//nolint:staticcheck // Export is the documented way to snapshot a chromem-go DB to disk.
	if err := s.db.Export(s.dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("hybridindex: persist vector db %q: %w", s.dbPath, err)
	}
	return nil
}

func (s *ChromemVectorStore) docID(chunkID uint64) string {
	return chunkDocIDPrefix + uintToString(chunkID)
}

func (s *ChromemVectorStore) Upsert(ctx context.Context, chunkID uint64, embedding []float32) error {
	id := s.docID(chunkID)
	_, replacing := s.chunks[id]
	s.chunks[id] = chunkID
	doc := chromem.Document{ID: id, Embedding: embedding}
	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return err
	}
	if !replacing {
		s.docCount++
	}
	return nil
}

func (s *ChromemVectorStore) Query(ctx context.Context, embedding []float32, topK int) ([]LexicalHit, error) {
	if topK <= 0 || s.docCount == 0 {
		return nil, nil
	}
	n := topK
	if s.docCount < n {
		n = s.docCount
	}
	results, err := s.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]LexicalHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, LexicalHit{
			ChunkID: s.chunks[r.ID],
			Score:   float64(r.Similarity),
		})
	}
	return hits, nil
}

const chunkDocIDPrefix = "chunk-"

func uintToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
