package versioncoord_test

import (
	"testing"

	"github.com/kadirpekel/coderkernel/pkg/depgraph"
	"github.com/kadirpekel/coderkernel/pkg/version"
	"github.com/kadirpekel/coderkernel/pkg/versioncoord"
)

func buildGraph(t *testing.T) *depgraph.Graph {
	t.Helper()
	g := depgraph.New()
	if err := g.AddProject(depgraph.Project{Name: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddProject(depgraph.Project{Name: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddDependency(depgraph.Dependency{From: "B", To: "A", Type: depgraph.Direct}); err != nil {
		t.Fatal(err)
	}
	return g
}

// TestS4VersionPropagation mirrors spec scenario S4.
func TestS4VersionPropagation(t *testing.T) {
	g := buildGraph(t)
	c := versioncoord.New(g)
	c.RegisterProject("A", version.MustParse("1.0.0"))
	c.RegisterProject("B", version.MustParse("1.0.0"))
	c.RegisterConstraint("B", "^1.0.0")

	plan := c.PlanVersionUpdates([]versioncoord.Update{{Project: "A", NewVersion: version.MustParse("1.1.0")}})
	if !plan.IsValid || len(plan.Updates) != 1 || plan.Updates[0].IsBreaking {
		t.Fatalf("expected valid non-breaking plan, got %+v", plan)
	}
	if len(plan.Updates[0].Dependents) != 1 || plan.Updates[0].Dependents[0] != "B" {
		t.Fatalf("expected B listed as dependent, got %v", plan.Updates[0].Dependents)
	}

	planBreaking := c.PlanVersionUpdates([]versioncoord.Update{{Project: "A", NewVersion: version.MustParse("2.0.0")}})
	if !planBreaking.Updates[0].IsBreaking {
		t.Fatalf("expected breaking change flagged")
	}

	if err := c.ValidateNoBreakingChanges("A", version.MustParse("2.0.0")); err == nil {
		t.Fatalf("expected validation to fail: B's ^1.0.0 constraint rejects 2.0.0")
	}
}

func TestUpdateVersionAppliesAndReturnsAffected(t *testing.T) {
	g := buildGraph(t)
	c := versioncoord.New(g)
	c.RegisterProject("A", version.MustParse("1.0.0"))
	c.RegisterProject("B", version.MustParse("1.0.0"))

	result, err := c.UpdateVersion("A", version.MustParse("1.1.0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OldVersion.String() != "1.0.0" || result.NewVersion.String() != "1.1.0" {
		t.Fatalf("unexpected versions: %+v", result)
	}
	if len(result.AffectedProjects) != 1 || result.AffectedProjects[0] != "B" {
		t.Fatalf("expected B affected, got %v", result.AffectedProjects)
	}
	got, _ := c.GetVersion("A")
	if got.String() != "1.1.0" {
		t.Fatalf("expected version applied, got %s", got)
	}
}

func TestUpdateVersionRejectsConstraintViolation(t *testing.T) {
	g := buildGraph(t)
	c := versioncoord.New(g)
	c.RegisterProject("A", version.MustParse("1.0.0"))
	c.RegisterConstraint("A", "^1.0.0")

	_, err := c.UpdateVersion("A", version.MustParse("2.0.0"))
	if err == nil {
		t.Fatalf("expected constraint violation error")
	}
}

func TestUpdateVersionUnknownProject(t *testing.T) {
	c := versioncoord.New(depgraph.New())
	_, err := c.UpdateVersion("missing", version.MustParse("1.0.0"))
	if err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestPlanVersionUpdatesAccumulatesErrors(t *testing.T) {
	g := buildGraph(t)
	c := versioncoord.New(g)
	c.RegisterProject("A", version.MustParse("1.0.0"))

	plan := c.PlanVersionUpdates([]versioncoord.Update{
		{Project: "A", NewVersion: version.MustParse("1.1.0")},
		{Project: "missing", NewVersion: version.MustParse("1.0.0")},
	})
	if plan.IsValid {
		t.Fatalf("expected plan invalid due to unknown project")
	}
	if len(plan.ValidationErrors) != 1 {
		t.Fatalf("expected 1 validation error, got %v", plan.ValidationErrors)
	}
	if len(plan.Updates) != 1 {
		t.Fatalf("expected the valid update to still be recorded, got %v", plan.Updates)
	}
}
