// Package hybridindex implements the Hybrid Index retrieval ranker: a
// BM25 lexical layer plus a fallback rerank combining identifier overlap,
// PMI-based query expansion, and character n-gram cosine similarity.
package hybridindex

import (
	"regexp"
	"strings"

	"github.com/kadirpekel/coderkernel/pkg/id"
)

// Chunk is one unit of the indexed corpus, as fixed by the data model.
type Chunk struct {
	ID                uint64
	FilePath          string
	Language          string
	StartLine         int
	EndLine           int
	Text              string
	Identifiers       []string
	IdentifierTokens  []string
	TokenCount        int
	Checksum          string
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// NewChunk builds a Chunk from raw text, deriving its identifier token set
// and checksum. Callers that already have identifiers from a language-
// specific extractor should populate Chunk directly instead.
func NewChunk(chunkID uint64, filePath, language string, startLine, endLine int, text string) Chunk {
	idents := identifierPattern.FindAllString(text, -1)
	tokens := make([]string, 0, len(idents))
	for _, ident := range idents {
		tokens = append(tokens, strings.ToLower(ident))
	}
	return Chunk{
		ID:               chunkID,
		FilePath:         filePath,
		Language:         language,
		StartLine:        startLine,
		EndLine:          endLine,
		Text:             text,
		Identifiers:      idents,
		IdentifierTokens: tokens,
		TokenCount:       len(strings.Fields(text)),
		Checksum:         id.FingerprintString(text),
	}
}

// LexicalHit is the output of the BM25 lexical layer before reranking.
type LexicalHit struct {
	ChunkID  uint64
	FilePath string
	Language string
	Score    float64
}
