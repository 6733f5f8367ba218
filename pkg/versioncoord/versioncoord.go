// Package versioncoord implements the Version Coordinator: propagating a
// project version update to its dependents, planning multi-project
// updates without mutating state, and validating that a prospective
// update would not break any dependent's constraints.
package versioncoord

import (
	"fmt"

	"github.com/kadirpekel/coderkernel/pkg/depgraph"
	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/version"
)

// UpdateResult is returned by UpdateVersion.
type UpdateResult struct {
	Project          string
	OldVersion       version.Version
	NewVersion       version.Version
	AffectedProjects []string
}

// PlanStep is one project's prospective update within a Plan.
type PlanStep struct {
	Project    string
	NewVersion version.Version
	Dependents []string
	IsBreaking bool
}

// Plan is the result of PlanVersionUpdates: a dry-run over a batch of
// proposed updates.
type Plan struct {
	Updates          []PlanStep
	TotalAffected    int
	IsValid          bool
	ValidationErrors []string
}

// Coordinator maintains the current version and constraint set for each
// known project and propagates updates through a dependency graph.
type Coordinator struct {
	graph       *depgraph.Graph
	versions    map[string]version.Version
	constraints map[string][]string
}

// New returns a Coordinator backed by graph for dependent lookups.
func New(graph *depgraph.Graph) *Coordinator {
	return &Coordinator{
		graph:       graph,
		versions:    make(map[string]version.Version),
		constraints: make(map[string][]string),
	}
}

// RegisterProject records project's current version.
func (c *Coordinator) RegisterProject(project string, v version.Version) {
	c.versions[project] = v
}

// RegisterConstraint appends a version constraint string (as parsed by
// version.ParseConstraint) that project's dependents require of it.
func (c *Coordinator) RegisterConstraint(project string, constraint string) {
	c.constraints[project] = append(c.constraints[project], constraint)
}

// GetVersion returns project's current version.
func (c *Coordinator) GetVersion(project string) (version.Version, bool) {
	v, ok := c.versions[project]
	return v, ok
}

// GetConstraints returns project's registered constraints.
func (c *Coordinator) GetConstraints(project string) []string {
	return append([]string(nil), c.constraints[project]...)
}

// GetAffectedProjects returns the projects that directly depend on
// project (i.e. would need to consider updating as a result of its
// version changing).
func (c *Coordinator) GetAffectedProjects(project string) []string {
	return c.graph.UpstreamDependents(project)
}

// UpdateVersion validates newVersion against project's registered
// constraints, applies the update, and returns the affected dependents.
func (c *Coordinator) UpdateVersion(project string, newVersion version.Version) (UpdateResult, error) {
	const op = "versioncoord.UpdateVersion"

	oldVersion, ok := c.versions[project]
	if !ok {
		return UpdateResult{}, kernelerr.Wrap(op, kernelerr.NotFound, fmt.Errorf("unknown project %q", project))
	}

	if constraints := c.constraints[project]; len(constraints) > 0 {
		if !version.ValidateUpdate(newVersion, constraints) {
			return UpdateResult{}, kernelerr.Wrap(op, kernelerr.ConstraintUnsatisfied, fmt.Errorf("%q does not satisfy constraints %v", newVersion, constraints))
		}
	}

	dependents := c.graph.UpstreamDependents(project)
	c.versions[project] = newVersion

	return UpdateResult{
		Project:          project,
		OldVersion:       oldVersion,
		NewVersion:       newVersion,
		AffectedProjects: dependents,
	}, nil
}

// Update is one (project, newVersion) pair passed to PlanVersionUpdates.
type Update struct {
	Project    string
	NewVersion version.Version
}

// PlanVersionUpdates dry-runs a batch of proposed updates: it does not
// mutate any state, accumulating validation errors rather than failing
// fast so the caller sees every problem in the batch at once.
func (c *Coordinator) PlanVersionUpdates(updates []Update) Plan {
	plan := Plan{IsValid: true}
	affected := make(map[string]bool)

	for _, u := range updates {
		oldVersion, ok := c.versions[u.Project]
		if !ok {
			plan.IsValid = false
			plan.ValidationErrors = append(plan.ValidationErrors, fmt.Sprintf("project not found: %s", u.Project))
			continue
		}

		isBreaking := version.IsBreakingChange(oldVersion, u.NewVersion)
		dependents := c.graph.UpstreamDependents(u.Project)
		for _, d := range dependents {
			affected[d] = true
		}

		plan.Updates = append(plan.Updates, PlanStep{
			Project:    u.Project,
			NewVersion: u.NewVersion,
			Dependents: dependents,
			IsBreaking: isBreaking,
		})
	}

	plan.TotalAffected = len(affected)
	return plan
}

// ValidateNoBreakingChanges reports nil if newVersion is a non-breaking
// change for project, or if breaking, if every dependent's constraints
// still accept it. Otherwise returns a ConstraintUnsatisfied error naming
// the first rejecting dependent.
func (c *Coordinator) ValidateNoBreakingChanges(project string, newVersion version.Version) error {
	const op = "versioncoord.ValidateNoBreakingChanges"

	oldVersion, ok := c.versions[project]
	if !ok {
		return kernelerr.Wrap(op, kernelerr.NotFound, fmt.Errorf("unknown project %q", project))
	}

	if !version.IsBreakingChange(oldVersion, newVersion) {
		return nil
	}

	for _, dependent := range c.graph.UpstreamDependents(project) {
		constraints := c.constraints[dependent]
		if len(constraints) == 0 {
			continue
		}
		if !version.ValidateUpdate(newVersion, constraints) {
			return kernelerr.Wrap(op, kernelerr.ConstraintUnsatisfied, fmt.Errorf("dependent %q rejects %q", dependent, newVersion))
		}
	}
	return nil
}

// Clear discards all registered projects and constraints.
func (c *Coordinator) Clear() {
	c.versions = make(map[string]version.Version)
	c.constraints = make(map[string][]string)
}
