package agentkernel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kadirpekel/coderkernel/pkg/agentkernel"
)

type stubAgent struct {
	id       string
	supports map[agentkernel.TaskType]bool
	output   agentkernel.AgentOutput
	err      error
}

func (s stubAgent) ID() string          { return s.id }
func (s stubAgent) Name() string        { return s.id }
func (s stubAgent) Description() string { return "" }
func (s stubAgent) Supports(t agentkernel.TaskType) bool {
	return s.supports[t]
}
func (s stubAgent) Execute(ctx context.Context, input agentkernel.Input) (agentkernel.AgentOutput, error) {
	return s.output, s.err
}

// TestS1AggregationAndConflict mirrors spec scenario S1.
func TestS1AggregationAndConflict(t *testing.T) {
	a1 := agentkernel.AgentOutput{
		Findings: []agentkernel.Finding{{Severity: agentkernel.Warning, Category: "quality", Message: "naming issue"}},
		Metadata: agentkernel.OutputMetadata{AgentID: "A1"},
	}
	a2 := agentkernel.AgentOutput{
		Findings: []agentkernel.Finding{{Severity: agentkernel.Warning, Category: "quality", Message: "naming issue"}},
		Metadata: agentkernel.OutputMetadata{AgentID: "A2"},
	}
	a3 := agentkernel.AgentOutput{
		Findings: []agentkernel.Finding{{Severity: agentkernel.Critical, Category: "security", Message: "sqli"}},
		Metadata: agentkernel.OutputMetadata{AgentID: "A3"},
	}

	agg := agentkernel.Aggregate([]agentkernel.AgentOutput{a1, a2, a3})
	if len(agg.Findings) != 2 {
		t.Fatalf("expected 2 findings after dedup, got %d", len(agg.Findings))
	}
	if agg.Findings[0].Category != "security" || agg.Findings[0].Severity != agentkernel.Critical {
		t.Fatalf("expected critical finding first, got %+v", agg.Findings[0])
	}
	dedup := agg.Findings[1]
	if dedup.Category != "quality" || dedup.Message != "naming issue" {
		t.Fatalf("unexpected dedup finding: %+v", dedup)
	}
	if len(dedup.ContributingAgents) != 2 {
		t.Fatalf("expected 2 contributing agents, got %v", dedup.ContributingAgents)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	outputs := []agentkernel.AgentOutput{
		{Findings: []agentkernel.Finding{{Severity: agentkernel.Info, Category: "c1", Message: "m1"}}, Metadata: agentkernel.OutputMetadata{AgentID: "A1"}},
		{Findings: []agentkernel.Finding{{Severity: agentkernel.Critical, Category: "c2", Message: "m2"}}, Metadata: agentkernel.OutputMetadata{AgentID: "A2"}},
	}
	first := agentkernel.Aggregate(outputs)
	second := agentkernel.Aggregate(outputs)
	if len(first.Findings) != len(second.Findings) {
		t.Fatalf("non-deterministic finding count")
	}
	for i := range first.Findings {
		if first.Findings[i].Category != second.Findings[i].Category || first.Findings[i].Message != second.Findings[i].Message {
			t.Fatalf("non-deterministic ordering at index %d", i)
		}
	}
}

func TestResolveConflictsKeepsTiesAtMaxSeverity(t *testing.T) {
	loc := &agentkernel.Location{File: "a.go", Line: 1, Column: 1}
	findings := []agentkernel.Finding{
		{Severity: agentkernel.Warning, Category: "x", Message: "one", Location: loc},
		{Severity: agentkernel.Critical, Category: "y", Message: "two", Location: loc},
		{Severity: agentkernel.Critical, Category: "z", Message: "three", Location: loc},
	}
	resolved := agentkernel.ResolveConflicts(findings)
	if len(resolved) != 2 {
		t.Fatalf("expected 2 tied critical findings retained, got %d", len(resolved))
	}
	for _, f := range resolved {
		if f.Severity != agentkernel.Critical {
			t.Fatalf("expected only critical findings retained, got %+v", f)
		}
	}
}

func TestPrioritizeStableSortsBySeverityDescending(t *testing.T) {
	findings := []agentkernel.Finding{
		{Severity: agentkernel.Info, Message: "a"},
		{Severity: agentkernel.Critical, Message: "b"},
		{Severity: agentkernel.Warning, Message: "c"},
	}
	out := agentkernel.Prioritize(findings)
	if out[0].Message != "b" || out[1].Message != "c" || out[2].Message != "a" {
		t.Fatalf("unexpected order: %+v", out)
	}
}

func TestRegistryIndexesByIDAndTaskType(t *testing.T) {
	r := agentkernel.NewRegistry()
	r.Register(stubAgent{id: "reviewer", supports: map[agentkernel.TaskType]bool{agentkernel.CodeReview: true}})
	r.Register(stubAgent{id: "sec", supports: map[agentkernel.TaskType]bool{agentkernel.SecurityAnalysis: true, agentkernel.CodeReview: true}})

	agents := r.FindAgentsByTaskType(agentkernel.CodeReview)
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents supporting CodeReview, got %d", len(agents))
	}
	if _, err := r.FindAgent("missing"); err == nil {
		t.Fatalf("expected NotFound error")
	}
	types := r.SupportedTaskTypes()
	if len(types) != 2 {
		t.Fatalf("expected 2 supported task types, got %v", types)
	}
	if err := r.Register(stubAgent{id: "reviewer"}); err == nil {
		t.Fatalf("expected AlreadyExists error re-registering id %q", "reviewer")
	}
}

func TestCoordinatorExecuteTeratesPartialFailure(t *testing.T) {
	r := agentkernel.NewRegistry()
	r.Register(stubAgent{
		id:       "ok",
		supports: map[agentkernel.TaskType]bool{agentkernel.CodeReview: true},
		output: agentkernel.AgentOutput{
			Findings: []agentkernel.Finding{{Severity: agentkernel.Warning, Category: "c", Message: "m"}},
			Metadata: agentkernel.OutputMetadata{AgentID: "ok"},
		},
	})
	r.Register(stubAgent{
		id:       "broken",
		supports: map[agentkernel.TaskType]bool{agentkernel.CodeReview: true},
		err:      errors.New("boom"),
	})

	c := agentkernel.NewCoordinator(r, 0)
	out, err := c.Execute(context.Background(), agentkernel.Input{TaskType: agentkernel.CodeReview})
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if len(out.Findings) != 1 {
		t.Fatalf("expected 1 finding from the successful agent, got %d", len(out.Findings))
	}
	if out.Metadata.FailedAgents["broken"] == "" {
		t.Fatalf("expected broken agent's failure recorded in metadata")
	}
}
