package hybridindex

import (
	"math"
	"sort"
	"sync"
)

// pmiEdge is an ordered co-occurrence count between two identifier terms.
type pmiEdge struct {
	Term     string
	Neighbor string
	Count    uint64
}

// PmiGraph accumulates co-occurrence counts over identifier tokens and
// answers pointwise-mutual-information expansion queries.
type PmiGraph struct {
	mu            sync.RWMutex
	cooccurrences map[string]map[string]uint64
	marginals     map[string]uint64
}

// NewPmiGraph constructs an empty graph.
func NewPmiGraph() *PmiGraph {
	return &PmiGraph{
		cooccurrences: make(map[string]map[string]uint64),
		marginals:     make(map[string]uint64),
	}
}

// Update records one co-occurrence observation (e.g. the identifier
// tokens of a single chunk).
func (g *PmiGraph) Update(tokens []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, t1 := range tokens {
		g.marginals[t1]++
		for _, t2 := range tokens[i+1:] {
			bucket, ok := g.cooccurrences[t1]
			if !ok {
				bucket = make(map[string]uint64)
				g.cooccurrences[t1] = bucket
			}
			bucket[t2]++
		}
	}
}

// expansionTerm is a candidate query-expansion term with its PMI score.
type expansionTerm struct {
	Term   string
	Weight float64
}

// Expand returns, for a given term, every neighbor whose PMI exceeds
// threshold, sorted by descending PMI and truncated to limit.
func (g *PmiGraph) Expand(term string, threshold float64, limit int) []expansionTerm {
	g.mu.RLock()
	defer g.mu.RUnlock()

	termCount := float64(g.marginals[term])
	if termCount == 0 {
		return nil
	}
	var out []expansionTerm
	for neighbor, count := range g.cooccurrences[term] {
		neighborCount := float64(g.marginals[neighbor])
		if neighborCount == 0 {
			continue
		}
		pmi := math.Log(float64(count) / (termCount * neighborCount))
		if pmi > threshold {
			out = append(out, expansionTerm{Term: neighbor, Weight: pmi})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type pmiSnapshot struct {
	Edges     []pmiEdge         `json:"edges"`
	Marginals map[string]uint64 `json:"marginals"`
}

func (g *PmiGraph) snapshot() pmiSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var edges []pmiEdge
	for term, neighbors := range g.cooccurrences {
		for neighbor, count := range neighbors {
			edges = append(edges, pmiEdge{Term: term, Neighbor: neighbor, Count: count})
		}
	}
	marginals := make(map[string]uint64, len(g.marginals))
	for k, v := range g.marginals {
		marginals[k] = v
	}
	return pmiSnapshot{Edges: edges, Marginals: marginals}
}

func pmiFromSnapshot(s pmiSnapshot) *PmiGraph {
	g := NewPmiGraph()
	for term, count := range s.Marginals {
		g.marginals[term] = count
	}
	for _, e := range s.Edges {
		bucket, ok := g.cooccurrences[e.Term]
		if !ok {
			bucket = make(map[string]uint64)
			g.cooccurrences[e.Term] = bucket
		}
		bucket[e.Neighbor] = e.Count
	}
	return g
}
