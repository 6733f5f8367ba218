package depgraph_test

import (
	"reflect"
	"testing"

	"github.com/kadirpekel/coderkernel/pkg/depgraph"
)

func build3(t *testing.T) *depgraph.Graph {
	t.Helper()
	g := depgraph.New()
	for _, name := range []string{"core", "storage", "cli"} {
		if err := g.AddProject(depgraph.Project{Name: name, Status: depgraph.StatusActive}); err != nil {
			t.Fatalf("AddProject(%s): %v", name, err)
		}
	}
	edges := []depgraph.Dependency{
		{From: "storage", To: "core", Type: depgraph.Direct},
		{From: "cli", To: "core", Type: depgraph.Direct},
		{From: "cli", To: "storage", Type: depgraph.Direct},
	}
	for _, e := range edges {
		if err := g.AddDependency(e); err != nil {
			t.Fatalf("AddDependency(%+v): %v", e, err)
		}
	}
	return g
}

func TestAddProjectRejectsDuplicate(t *testing.T) {
	g := depgraph.New()
	if err := g.AddProject(depgraph.Project{Name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddProject(depgraph.Project{Name: "a"}); err == nil {
		t.Fatalf("expected error re-adding project a")
	}
}

func TestAddDependencyUnknownProject(t *testing.T) {
	g := depgraph.New()
	_ = g.AddProject(depgraph.Project{Name: "a"})
	if err := g.AddDependency(depgraph.Dependency{From: "a", To: "b", Type: depgraph.Direct}); err == nil {
		t.Fatalf("expected error for unknown dependency target")
	}
}

func TestTopologicalSortS3(t *testing.T) {
	g := build3(t)
	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx := make(map[string]int, len(order))
	for i, n := range order {
		idx[n] = i
	}
	if idx["core"] >= idx["storage"] {
		t.Errorf("core must precede storage, got order %v", order)
	}
	if idx["core"] >= idx["cli"] {
		t.Errorf("core must precede cli, got order %v", order)
	}
	if idx["storage"] >= idx["cli"] {
		t.Errorf("storage must precede cli, got order %v", order)
	}
}

func TestDetectCyclesFindsCycle(t *testing.T) {
	g := depgraph.New()
	_ = g.AddProject(depgraph.Project{Name: "a"})
	_ = g.AddProject(depgraph.Project{Name: "b"})
	_ = g.AddDependency(depgraph.Dependency{From: "a", To: "b", Type: depgraph.Direct})
	_ = g.AddDependency(depgraph.Dependency{From: "b", To: "a", Type: depgraph.Direct})
	if err := g.DetectCycles(); err == nil {
		t.Fatalf("expected cycle error")
	}
	if _, err := g.TopologicalSort(); err == nil {
		t.Fatalf("expected TopologicalSort to fail on cycle")
	}
}

func TestTransitiveExcludesDirect(t *testing.T) {
	g := build3(t)
	transitive := g.TransitiveDependencies("cli")
	if reflect.DeepEqual(transitive, []string{"core", "storage"}) {
		t.Fatalf("transitive dependencies should exclude direct deps, got %v", transitive)
	}
	if len(transitive) != 0 {
		t.Fatalf("cli has no transitive (indirect) dependencies beyond its direct ones, got %v", transitive)
	}
}

func TestUpstreamAndDownstream(t *testing.T) {
	g := build3(t)
	down := g.DownstreamDependencies("cli")
	if !reflect.DeepEqual(down, []string{"core", "storage"}) {
		t.Fatalf("unexpected downstream deps: %v", down)
	}
	up := g.UpstreamDependents("core")
	if !reflect.DeepEqual(up, []string{"cli", "storage"}) {
		t.Fatalf("unexpected upstream dependents: %v", up)
	}
}
