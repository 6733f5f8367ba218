// Package depgraph implements the project dependency graph: cycle
// detection, deterministic topological sort, and dependent/dependency
// queries, backed by adjacency maps keyed by project name plus a reverse
// index for dependents.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// DependencyType classifies a ProjectDependency edge.
type DependencyType string

const (
	Direct     DependencyType = "direct"
	Dev        DependencyType = "dev"
	Build      DependencyType = "build"
	Transitive DependencyType = "transitive"
)

// ProjectStatus is a closed enumeration of project lifecycle states.
type ProjectStatus string

const (
	StatusActive     ProjectStatus = "active"
	StatusDeprecated ProjectStatus = "deprecated"
	StatusArchived   ProjectStatus = "archived"
)

// Project is a workspace member, keyed uniquely by Name.
type Project struct {
	Path        string
	Name        string
	ProjectType string
	Version     string
	Status      ProjectStatus
}

// Dependency is a typed, constrained edge from From to To.
type Dependency struct {
	From              string
	To                string
	Type              DependencyType
	VersionConstraint string
}

// edgeKey identifies an edge for duplicate-merge purposes: (from, to,
// type) per spec §4.2 ("duplicate (from,to,type) merges by replacing
// constraint").
type edgeKey struct {
	from, to string
	typ      DependencyType
}

// Graph holds projects and their typed dependency edges.
type Graph struct {
	projects map[string]Project
	// edges[from] -> edge keyed by (from,to,type) -> Dependency
	edges map[string]map[edgeKey]Dependency
	// reverse[to] -> set of "from" project names depending on it
	reverse map[string]map[string]bool
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		projects: make(map[string]Project),
		edges:    make(map[string]map[edgeKey]Dependency),
		reverse:  make(map[string]map[string]bool),
	}
}

// AddProject registers a project. Fails if a project with the same name
// already exists.
func (g *Graph) AddProject(p Project) error {
	const op = "depgraph.AddProject"
	if _, exists := g.projects[p.Name]; exists {
		return kernelerr.New(op, kernelerr.AlreadyExists)
	}
	g.projects[p.Name] = p
	return nil
}

// GetProject returns the named project.
func (g *Graph) GetProject(name string) (Project, bool) {
	p, ok := g.projects[name]
	return p, ok
}

// AllProjects returns every registered project, sorted by name for
// determinism.
func (g *Graph) AllProjects() []Project {
	names := make([]string, 0, len(g.projects))
	for n := range g.projects {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Project, 0, len(names))
	for _, n := range names {
		out = append(out, g.projects[n])
	}
	return out
}

// AddDependency registers an edge. Fails if From or To is unknown.
// Re-adding the same (from,to,type) replaces its version constraint
// rather than erroring, per spec §4.2.
func (g *Graph) AddDependency(d Dependency) error {
	const op = "depgraph.AddDependency"
	if _, ok := g.projects[d.From]; !ok {
		return kernelerr.Wrap(op, kernelerr.NotFound, fmt.Errorf("unknown project %q", d.From))
	}
	if _, ok := g.projects[d.To]; !ok {
		return kernelerr.Wrap(op, kernelerr.NotFound, fmt.Errorf("unknown project %q", d.To))
	}
	if g.edges[d.From] == nil {
		g.edges[d.From] = make(map[edgeKey]Dependency)
	}
	g.edges[d.From][edgeKey{d.From, d.To, d.Type}] = d
	if g.reverse[d.To] == nil {
		g.reverse[d.To] = make(map[string]bool)
	}
	g.reverse[d.To][d.From] = true
	return nil
}

// DownstreamDependencies returns the one-hop set of projects that p
// directly depends on.
func (g *Graph) DownstreamDependencies(p string) []string {
	set := make(map[string]bool)
	for _, d := range g.edges[p] {
		set[d.To] = true
	}
	return sortedKeys(set)
}

// UpstreamDependents returns the one-hop set of projects that directly
// depend on p.
func (g *Graph) UpstreamDependents(p string) []string {
	return sortedKeys(g.reverse[p])
}

// TransitiveDependencies returns every project reachable from p via
// dependency edges, excluding p's direct dependencies (§4.2: transitive
// dependencies exclude direct ones).
func (g *Graph) TransitiveDependencies(p string) []string {
	direct := make(map[string]bool)
	for _, d := range g.edges[p] {
		direct[d.To] = true
	}
	visited := make(map[string]bool)
	var walk func(cur string)
	walk = func(cur string) {
		for _, d := range g.edges[cur] {
			if visited[d.To] {
				continue
			}
			visited[d.To] = true
			walk(d.To)
		}
	}
	walk(p)
	out := make(map[string]bool)
	for n := range visited {
		if !direct[n] {
			out[n] = true
		}
	}
	return sortedKeys(out)
}

// AllDependents returns every project that transitively depends on p
// (walking the reverse index), used by the version coordinator to compute
// the affected-projects set for a breaking change.
func (g *Graph) AllDependents(p string) []string {
	visited := make(map[string]bool)
	var walk func(cur string)
	walk = func(cur string) {
		for from := range g.reverse[cur] {
			if visited[from] {
				continue
			}
			visited[from] = true
			walk(from)
		}
	}
	walk(p)
	return sortedKeys(visited)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// color marks colored-DFS node state for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// DetectCycles returns an error enumerating the offending cycle if the
// graph contains one, via colored DFS.
func (g *Graph) DetectCycles() error {
	const op = "depgraph.DetectCycles"
	colors := make(map[string]color)
	var path []string
	var cycleErr error

	names := make([]string, 0, len(g.projects))
	for n := range g.projects {
		names = append(names, n)
	}
	sort.Strings(names)

	var visit func(n string)
	visit = func(n string) {
		if cycleErr != nil {
			return
		}
		colors[n] = gray
		path = append(path, n)
		deps := g.edges[n]
		depNames := make([]string, 0, len(deps))
		for _, d := range deps {
			depNames = append(depNames, d.To)
		}
		sort.Strings(depNames)
		for _, to := range depNames {
			switch colors[to] {
			case white:
				visit(to)
				if cycleErr != nil {
					return
				}
			case gray:
				cycleErr = kernelerr.Wrap(op, kernelerr.Cycle, fmt.Errorf("cycle detected: %s -> %s", joinPath(path), to))
				return
			}
		}
		path = path[:len(path)-1]
		colors[n] = black
	}

	for _, n := range names {
		if colors[n] == white {
			visit(n)
			if cycleErr != nil {
				return cycleErr
			}
		}
	}
	return nil
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}

// TopologicalSort returns a total order over projects such that for every
// edge from->to, to precedes from. Uses Kahn's algorithm; ties (multiple
// runnable nodes) are broken by project name ascending for determinism.
// Fails if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	const op = "depgraph.TopologicalSort"

	// inDegree counts remaining unresolved dependencies (edges from n to
	// something not yet emitted); since "to precedes from", we emit nodes
	// with no outstanding dependencies first.
	inDegree := make(map[string]int)
	for n := range g.projects {
		inDegree[n] = 0
	}
	for from, deps := range g.edges {
		// edge from -> to means "from depends on to", i.e. from has an
		// outstanding dependency on to until to is emitted. Edges of
		// different types to the same target count once, matching the
		// single decrement per dependent below.
		targets := make(map[string]bool, len(deps))
		for _, d := range deps {
			targets[d.To] = true
		}
		inDegree[from] += len(targets)
	}

	ready := make([]string, 0)
	for n, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		// Resolving n means: for every project p that depends on n
		// (g.reverse[n]), decrement p's remaining count.
		deps := sortedKeys(g.reverse[n])
		for _, p := range deps {
			remaining[p]--
			if remaining[p] == 0 {
				ready = append(ready, p)
			}
		}
	}

	if len(order) != len(g.projects) {
		return nil, kernelerr.Wrap(op, kernelerr.Cycle, fmt.Errorf("graph has a cycle: only %d/%d projects orderable", len(order), len(g.projects)))
	}
	return order, nil
}

// TopologicalSortSubset returns a total order over exactly the named
// projects, using only dependency edges between members of the subset
// (edges leaving the subset are ignored). Used by the batch executor to
// order a restricted set of projects without requiring the whole graph be
// acyclic. Fails if the induced subgraph contains a cycle, or subset names
// an unregistered project.
func (g *Graph) TopologicalSortSubset(subset []string) ([]string, error) {
	const op = "depgraph.TopologicalSortSubset"

	members := make(map[string]bool, len(subset))
	for _, n := range subset {
		if _, ok := g.projects[n]; !ok {
			return nil, kernelerr.Wrap(op, kernelerr.NotFound, fmt.Errorf("unknown project %q", n))
		}
		members[n] = true
	}

	inDegree := make(map[string]int, len(members))
	for n := range members {
		inDegree[n] = 0
	}
	for from := range members {
		targets := make(map[string]bool)
		for _, d := range g.edges[from] {
			if members[d.To] {
				targets[d.To] = true
			}
		}
		inDegree[from] = len(targets)
	}

	ready := make([]string, 0)
	for n, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, n)
		}
	}

	var order []string
	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for from := range g.reverse[n] {
			if !members[from] || remaining[from] == 0 {
				continue
			}
			remaining[from]--
			if remaining[from] == 0 {
				ready = append(ready, from)
			}
		}
	}

	if len(order) != len(members) {
		return nil, kernelerr.Wrap(op, kernelerr.Cycle, fmt.Errorf("subgraph has a cycle: only %d/%d projects orderable", len(order), len(members)))
	}
	return order, nil
}

// DependsWithin reports whether project p has a dependency that is a
// member of subset but not yet in the completed set. Used by the batch
// executor to determine which projects in an independent antichain are
// ready to run concurrently.
func (g *Graph) DependsWithin(p string, subset map[string]bool, completed map[string]bool) bool {
	for _, d := range g.edges[p] {
		if subset[d.To] && !completed[d.To] {
			return true
		}
	}
	return false
}
