// Package agentkernel implements the Agent Registry (index agents by ID and
// by supported TaskType) and the Agent Coordinator (fan out to agents,
// aggregate/deduplicate their findings and suggestions, resolve location
// conflicts, and prioritize the result).
package agentkernel

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
	"github.com/kadirpekel/coderkernel/pkg/registry"
)

// TaskType is the closed enumeration of work an Agent may support.
type TaskType string

const (
	CodeReview       TaskType = "code_review"
	TestGeneration   TaskType = "test_generation"
	Documentation    TaskType = "documentation"
	Refactoring      TaskType = "refactoring"
	SecurityAnalysis TaskType = "security_analysis"
)

// Severity is totally ordered Info < Warning < Critical.
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

// Location pinpoints a finding within a file.
type Location struct {
	File   string
	Line   int
	Column int
}

// Finding is an issue an agent surfaces. Two findings are duplicates iff
// (Category, Message) are equal.
type Finding struct {
	ID         string
	Severity   Severity
	Category   string
	Message    string
	Location   *Location
	Suggestion *Suggestion

	// ContributingAgents records which agents independently surfaced this
	// finding's (Category, Message) key, for traceability after dedup.
	ContributingAgents []string
}

// Suggestion is a proposed remediation. Duplicates share Description.
type Suggestion struct {
	ID          string
	Description string
	Diff        string
	AutoFixable bool
}

// AgentOutput is what a single Agent execution (or the Coordinator's
// aggregate) produces.
type AgentOutput struct {
	Findings    []Finding
	Suggestions []Suggestion
	Generated   []string
	Metadata    OutputMetadata
}

// OutputMetadata carries per-agent execution bookkeeping, and (on an
// aggregated output) a record of any agent that failed during fan-out.
type OutputMetadata struct {
	AgentID         string
	ExecutionTimeMs int64
	TokensUsed      int64
	FailedAgents    map[string]string // agent_id -> error string
}

// Input is the task handed to an Agent's Execute.
type Input struct {
	TaskType TaskType
	Payload  map[string]any
}

// Agent is a unit of analysis. Implementations must be safe for concurrent
// invocation: the registry shares a single Agent instance across calls.
type Agent interface {
	ID() string
	Name() string
	Description() string
	Supports(t TaskType) bool
	Execute(ctx context.Context, input Input) (AgentOutput, error)
}

// Registry indexes agents by ID (via the shared registry.BaseRegistry,
// which also enforces registration uniqueness) and by every TaskType
// they support.
type Registry struct {
	byID       *registry.BaseRegistry[Agent]
	byTaskType map[TaskType][]Agent
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:       registry.NewBaseRegistry[Agent](),
		byTaskType: make(map[TaskType][]Agent),
	}
}

// Register indexes agent by its ID and by every TaskType for which
// Supports returns true. Fails if an agent with the same ID is already
// registered (registry uniqueness invariant, §8.1.1).
func (r *Registry) Register(agent Agent) error {
	if err := r.byID.Register(agent.ID(), agent); err != nil {
		return kernelerr.New("agentkernel.Register", kernelerr.AlreadyExists)
	}
	for _, t := range allTaskTypes {
		if agent.Supports(t) {
			r.byTaskType[t] = append(r.byTaskType[t], agent)
		}
	}
	return nil
}

var allTaskTypes = []TaskType{CodeReview, TestGeneration, Documentation, Refactoring, SecurityAnalysis}

// FindAgent returns the agent registered under id, or a NotFound error.
func (r *Registry) FindAgent(id string) (Agent, error) {
	a, ok := r.byID.Get(id)
	if !ok {
		return nil, kernelerr.New("agentkernel.FindAgent", kernelerr.NotFound)
	}
	return a, nil
}

// FindAgentsByTaskType returns the agents supporting t, in registration order.
func (r *Registry) FindAgentsByTaskType(t TaskType) []Agent {
	return append([]Agent(nil), r.byTaskType[t]...)
}

// SupportedTaskTypes returns the TaskTypes with at least one supporting
// agent, sorted deterministically by lexicographic string rendering.
func (r *Registry) SupportedTaskTypes() []TaskType {
	var out []TaskType
	for _, t := range allTaskTypes {
		if len(r.byTaskType[t]) > 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Coordinator fans out a task to every agent supporting its TaskType and
// aggregates their outputs.
type Coordinator struct {
	registry       *Registry
	maxConcurrency int
}

// NewCoordinator returns a Coordinator over registry. maxConcurrency <= 0
// means unbounded.
func NewCoordinator(registry *Registry, maxConcurrency int) *Coordinator {
	return &Coordinator{registry: registry, maxConcurrency: maxConcurrency}
}

// Execute invokes every agent supporting input.TaskType concurrently,
// tolerating partial failure: a failing agent contributes no output and
// its error is recorded in the aggregate's FailedAgents metadata rather
// than aborting the others.
func (c *Coordinator) Execute(ctx context.Context, input Input) (AgentOutput, error) {
	agents := c.registry.FindAgentsByTaskType(input.TaskType)
	outputs := make([]AgentOutput, len(agents))
	failed := make(map[string]string)
	var failedMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			out, err := a.Execute(gctx, input)
			if err != nil {
				failedMu.Lock()
				failed[a.ID()] = err.Error()
				failedMu.Unlock()
				return nil
			}
			outputs[i] = out
			return nil
		})
	}
	// errgroup only returns an error here if a Go func itself returned one,
	// which this coordinator never does (agent failures are recorded, not
	// propagated), so the error is always nil.
	_ = g.Wait()

	var successful []AgentOutput
	for _, out := range outputs {
		if out.Metadata.AgentID != "" || len(out.Findings) > 0 || len(out.Suggestions) > 0 || len(out.Generated) > 0 {
			successful = append(successful, out)
		}
	}

	agg := Aggregate(successful)
	if len(failed) > 0 {
		agg.Metadata.FailedAgents = failed
	}
	return agg, nil
}

// Aggregate concatenates findings/suggestions/generated across outputs,
// deduplicates findings by (Category, Message) and suggestions by
// Description (keeping the first occurrence of each, recording every
// contributing agent on the retained finding), then sorts findings by
// descending severity (stable). Given identical inputs, repeated calls
// produce byte-identical results.
func Aggregate(outputs []AgentOutput) AgentOutput {
	var generated []string
	findingIndex := make(map[string]int)
	var findings []Finding
	suggestionSeen := make(map[string]bool)
	var suggestions []Suggestion

	for _, out := range outputs {
		generated = append(generated, out.Generated...)

		for _, f := range out.Findings {
			key := f.Category + "\x00" + f.Message
			if idx, ok := findingIndex[key]; ok {
				findings[idx].ContributingAgents = append(findings[idx].ContributingAgents, out.Metadata.AgentID)
				continue
			}
			f.ContributingAgents = []string{out.Metadata.AgentID}
			findingIndex[key] = len(findings)
			findings = append(findings, f)
		}

		for _, s := range out.Suggestions {
			if suggestionSeen[s.Description] {
				continue
			}
			suggestionSeen[s.Description] = true
			suggestions = append(suggestions, s)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity > findings[j].Severity
	})

	return AgentOutput{
		Findings:    findings,
		Suggestions: suggestions,
		Generated:   generated,
	}
}

// locationKey renders a finding's conflict-resolution partition key: its
// file:line:column when Location is present, else category:message.
func locationKey(f Finding) string {
	if f.Location != nil {
		return f.Location.File + ":" + strconv.Itoa(f.Location.Line) + ":" + strconv.Itoa(f.Location.Column)
	}
	return f.Category + ":" + f.Message
}

// ResolveConflicts partitions findings by location key, retains every
// finding tied at the maximum severity within each partition, and returns
// the flattened retained set.
func ResolveConflicts(findings []Finding) []Finding {
	maxSeverity := make(map[string]Severity)
	partitions := make(map[string][]Finding)
	var order []string

	for _, f := range findings {
		key := locationKey(f)
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], f)
		if f.Severity > maxSeverity[key] {
			maxSeverity[key] = f.Severity
		}
	}

	var out []Finding
	for _, key := range order {
		max := maxSeverity[key]
		for _, f := range partitions[key] {
			if f.Severity == max {
				out = append(out, f)
			}
		}
	}
	return out
}

// Prioritize stable-sorts findings by descending severity.
func Prioritize(findings []Finding) []Finding {
	out := append([]Finding(nil), findings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}
