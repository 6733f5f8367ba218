package hybridindex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// Weights configures the contribution of each rerank signal, plus the
// PMI expansion thresholds.
type Weights struct {
	BM25           float64
	Identifier     float64
	PMI            float64
	NGram          float64
	PMIThreshold   float64
	ExpansionLimit int
	// VectorSeed scales a VectorStore hit's similarity score before it is
	// unioned into the BM25 candidate set in SearchWithEmbedding. It has
	// no effect on Search, which never consults a VectorStore.
	VectorSeed float64
}

// DefaultWeights mirrors the reference tuning: BM25 dominant, identifier
// overlap a strong secondary signal, PMI and n-gram similarity as lighter
// corrective terms.
func DefaultWeights() Weights {
	return Weights{
		BM25:           1.0,
		Identifier:     0.5,
		PMI:            0.35,
		NGram:          0.3,
		PMIThreshold:   2.0,
		ExpansionLimit: 5,
		VectorSeed:     1.0,
	}
}

// FallbackArtifacts holds the per-chunk identifier and n-gram profiles
// plus the shared PMI co-occurrence graph, all persistable to a
// directory of three independently-optional JSON files.
type FallbackArtifacts struct {
	mu          sync.RWMutex
	pmi         *PmiGraph
	ngrams      map[uint64]NGramVector
	identifiers map[uint64]IdentifierProfile
}

// NewFallbackArtifacts constructs an empty artifact set backed by pmi (or
// a fresh graph if nil).
func NewFallbackArtifacts(pmi *PmiGraph) *FallbackArtifacts {
	if pmi == nil {
		pmi = NewPmiGraph()
	}
	return &FallbackArtifacts{
		pmi:         pmi,
		ngrams:      make(map[uint64]NGramVector),
		identifiers: make(map[uint64]IdentifierProfile),
	}
}

// RecordChunk folds a chunk's identifier tokens into the PMI graph and
// stores its n-gram and identifier profiles for later lookup.
func (a *FallbackArtifacts) RecordChunk(c Chunk, ngram NGramVector) {
	a.pmi.Update(c.IdentifierTokens)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ngrams[c.ID] = ngram
	a.identifiers[c.ID] = IdentifierProfileFromChunk(c)
}

func (a *FallbackArtifacts) ngram(chunkID uint64) (NGramVector, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.ngrams[chunkID]
	return v, ok
}

func (a *FallbackArtifacts) identifier(chunkID uint64) IdentifierProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.identifiers[chunkID]
}

type ngramRecord struct {
	ChunkID uint64      `json:"chunk_id"`
	Vector  NGramVector `json:"vector"`
}

type identifierRecord struct {
	ChunkID uint64   `json:"chunk_id"`
	Tokens  []string `json:"tokens"`
}

// Persist writes pmi_graph.json, ngrams.json, and identifiers.json into
// dir, creating it if necessary.
func (a *FallbackArtifacts) Persist(dir string) error {
	const op = "hybridindex.FallbackArtifacts.Persist"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	if err := writeJSON(filepath.Join(dir, "pmi_graph.json"), a.pmi.snapshot()); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	a.mu.RLock()
	var ngramRecords []ngramRecord
	for id, v := range a.ngrams {
		ngramRecords = append(ngramRecords, ngramRecord{ChunkID: id, Vector: v})
	}
	var identifierRecords []identifierRecord
	for id, p := range a.identifiers {
		identifierRecords = append(identifierRecords, identifierRecord{ChunkID: id, Tokens: p.Tokens})
	}
	a.mu.RUnlock()

	if err := writeJSON(filepath.Join(dir, "ngrams.json"), ngramRecords); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	if err := writeJSON(filepath.Join(dir, "identifiers.json"), identifierRecords); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFallbackArtifacts restores artifacts from dir. Each of the three
// files is independently optional: a missing file yields the
// corresponding empty structure rather than an error.
func LoadFallbackArtifacts(dir string) (*FallbackArtifacts, error) {
	const op = "hybridindex.LoadFallbackArtifacts"

	var snap pmiSnapshot
	if err := readJSONIfExists(filepath.Join(dir, "pmi_graph.json"), &snap); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	artifacts := NewFallbackArtifacts(pmiFromSnapshot(snap))

	var ngramRecords []ngramRecord
	if err := readJSONIfExists(filepath.Join(dir, "ngrams.json"), &ngramRecords); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	for _, r := range ngramRecords {
		artifacts.ngrams[r.ChunkID] = r.Vector
	}

	var identifierRecords []identifierRecord
	if err := readJSONIfExists(filepath.Join(dir, "identifiers.json"), &identifierRecords); err != nil {
		return nil, kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	for _, r := range identifierRecords {
		artifacts.identifiers[r.ChunkID] = IdentifierProfile{Tokens: r.Tokens}
	}

	return artifacts, nil
}

func readJSONIfExists(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// FallbackHit is one reranked result, carrying each signal's raw
// contribution alongside the final blended score.
type FallbackHit struct {
	ChunkID         uint64
	FilePath        string
	Language        string
	BM25Score       float64
	IdentifierScore float64
	PMIScore        float64
	NGramScore      float64
	FinalScore      float64
}

// FallbackTelemetry reports the wall-clock cost of the PMI and n-gram
// stages of a single rerank call.
type FallbackTelemetry struct {
	PMILatencyMs   float64
	NGramLatencyMs float64
	TotalLatencyMs float64
}

// FallbackResult is the output of one Rerank call.
type FallbackResult struct {
	Hits      []FallbackHit
	Telemetry FallbackTelemetry
}

// FallbackEngine combines BM25 hits with identifier overlap, PMI
// expansion, and n-gram cosine similarity into a single reranked result.
type FallbackEngine struct {
	artifacts *FallbackArtifacts
	weights   Weights
}

// NewFallbackEngine constructs an engine over the given artifacts and
// weights.
func NewFallbackEngine(artifacts *FallbackArtifacts, weights Weights) *FallbackEngine {
	return &FallbackEngine{artifacts: artifacts, weights: weights}
}

// Rerank augments hits with identifier/PMI/n-gram signals, blends them
// with the BM25 score per the spec's formula, sorts by final score
// descending, and truncates to limit.
func (e *FallbackEngine) Rerank(query string, hits []LexicalHit, limit int) FallbackResult {
	overallStart := time.Now()
	queryTerms := queryTokens(query)

	pmiStart := time.Now()
	expansions := e.expandTerms(queryTerms)
	pmiLatency := time.Since(pmiStart)

	queryNGrams := NGramVectorFromText(query)

	ngramStart := time.Now()
	rescored := make([]FallbackHit, 0, len(hits))
	for _, hit := range hits {
		profile := e.artifacts.identifier(hit.ChunkID)
		identifierScore := profile.ScoreOverlap(queryTerms) * e.weights.Identifier
		pmiScore := e.scorePMI(profile, expansions)

		var ngramScore float64
		if v, ok := e.artifacts.ngram(hit.ChunkID); ok {
			ngramScore = v.CosineSimilarity(queryNGrams)
		}

		final := e.weights.BM25*hit.Score + identifierScore + e.weights.PMI*pmiScore + e.weights.NGram*ngramScore
		rescored = append(rescored, FallbackHit{
			ChunkID:         hit.ChunkID,
			FilePath:        hit.FilePath,
			Language:        hit.Language,
			BM25Score:       hit.Score,
			IdentifierScore: identifierScore,
			PMIScore:        pmiScore,
			NGramScore:      ngramScore,
			FinalScore:      final,
		})
	}
	ngramLatency := time.Since(ngramStart)

	sort.SliceStable(rescored, func(i, j int) bool { return rescored[i].FinalScore > rescored[j].FinalScore })
	if limit > 0 && len(rescored) > limit {
		rescored = rescored[:limit]
	}

	return FallbackResult{
		Hits: rescored,
		Telemetry: FallbackTelemetry{
			PMILatencyMs:   msF(pmiLatency),
			NGramLatencyMs: msF(ngramLatency),
			TotalLatencyMs: msF(time.Since(overallStart)),
		},
	}
}

func msF(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

func queryTokens(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = strings.ToLower(f)
	}
	return terms
}

func (e *FallbackEngine) expandTerms(queryTerms []string) []expansionTerm {
	var expanded []expansionTerm
	for _, term := range queryTerms {
		expanded = append(expanded, e.artifacts.pmi.Expand(term, e.weights.PMIThreshold, e.weights.ExpansionLimit)...)
	}
	return expanded
}

// scorePMI sums the weights of the expansion terms present in the chunk's
// identifier profile and divides by the total number of expansion terms,
// present or not.
func (e *FallbackEngine) scorePMI(profile IdentifierProfile, expansions []expansionTerm) float64 {
	if len(expansions) == 0 {
		return 0
	}
	var sum float64
	for _, exp := range expansions {
		if profile.containsTerm(exp.Term) {
			sum += exp.Weight
		}
	}
	return sum / float64(len(expansions))
}
