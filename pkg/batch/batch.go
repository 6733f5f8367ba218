// Package batch implements the Batch Executor & Transactions component:
// running an Operation over a dependency-ordered set of projects, bounded
// concurrency within independent antichains, and a retrievable transaction
// log of per-project outcomes.
package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/coderkernel/pkg/depgraph"
	"github.com/kadirpekel/coderkernel/pkg/id"
	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// Operation is a unit of work applied to every project in a batch.
// FailFast reports whether a single project failure should abort
// remaining work (fail-fast) or continue best-effort.
type Operation interface {
	Execute(ctx context.Context, project string) error
	Rollback(ctx context.Context, project string) error
	FailFast() bool
}

// StepOutcome records one project's result within a transaction.
type StepOutcome struct {
	Project string
	Success bool
	Error   string
}

// Transaction is the persisted record of one batch run.
type Transaction struct {
	ID        string
	StartedAt time.Time
	Steps     []StepOutcome
}

// Result summarizes a completed batch run.
type Result struct {
	TransactionID      string
	SuccessfulProjects []string
	FailedProjects     []string
}

// Executor runs Operations over a depgraph.Graph's projects and keeps a
// transaction log.
type Executor struct {
	graph          *depgraph.Graph
	maxConcurrency int

	mu           sync.Mutex
	transactions map[string]*Transaction
}

// NewExecutor returns an Executor over graph. maxConcurrency <= 0 means
// unbounded.
func NewExecutor(graph *depgraph.Graph, maxConcurrency int) *Executor {
	return &Executor{
		graph:          graph,
		maxConcurrency: maxConcurrency,
		transactions:   make(map[string]*Transaction),
	}
}

// Run executes op over projects, respecting dependency order restricted to
// that set: a project only starts once every dependency also in the set
// has completed. Within an independent antichain, projects execute
// concurrently (bounded by maxConcurrency); their relative completion
// order is otherwise unspecified.
func (e *Executor) Run(ctx context.Context, projects []string, op Operation) (Result, error) {
	const opName = "batch.Run"

	order, err := e.graph.TopologicalSortSubset(projects)
	if err != nil {
		return Result{}, kernelerr.Wrap(opName, kernelerr.Cycle, err)
	}

	members := make(map[string]bool, len(order))
	for _, p := range order {
		members[p] = true
	}

	txn := &Transaction{ID: id.New(), StartedAt: time.Now()}
	slog.Debug("starting batch transaction", "transaction_id", txn.ID, "projects", len(order))

	var stepsMu sync.Mutex
	completed := make(map[string]bool)
	var completedMu sync.Mutex
	var successful, failedList []string
	aborted := false

	remaining := append([]string(nil), order...)
	for len(remaining) > 0 {
		var wave []string
		var next []string
		completedMu.Lock()
		for _, p := range remaining {
			if !aborted && !e.graph.DependsWithin(p, members, completed) {
				wave = append(wave, p)
			} else {
				next = append(next, p)
			}
		}
		completedMu.Unlock()

		if len(wave) == 0 {
			break
		}
		remaining = next

		g, gctx := errgroup.WithContext(ctx)
		if e.maxConcurrency > 0 {
			g.SetLimit(e.maxConcurrency)
		}
		for _, p := range wave {
			p := p
			g.Go(func() error {
				runErr := op.Execute(gctx, p)

				stepsMu.Lock()
				outcome := StepOutcome{Project: p, Success: runErr == nil}
				if runErr != nil {
					outcome.Error = runErr.Error()
					slog.Warn("batch step failed", "transaction_id", txn.ID, "project", p, "error", runErr)
				}
				txn.Steps = append(txn.Steps, outcome)
				stepsMu.Unlock()

				completedMu.Lock()
				completed[p] = true
				if runErr == nil {
					successful = append(successful, p)
				} else {
					failedList = append(failedList, p)
					if op.FailFast() {
						aborted = true
					}
				}
				completedMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if aborted {
			break
		}
	}

	e.mu.Lock()
	e.transactions[txn.ID] = txn
	e.mu.Unlock()

	slog.Debug("batch transaction complete",
		"transaction_id", txn.ID,
		"successful", len(successful),
		"failed", len(failedList))

	return Result{
		TransactionID:      txn.ID,
		SuccessfulProjects: successful,
		FailedProjects:     failedList,
	}, nil
}

// GetTransaction retrieves a previously run transaction by id.
func (e *Executor) GetTransaction(id string) (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	txn, ok := e.transactions[id]
	if !ok {
		return nil, kernelerr.New("batch.GetTransaction", kernelerr.NotFound)
	}
	return txn, nil
}

// ListTransactions returns every recorded transaction, order unspecified.
func (e *Executor) ListTransactions() []*Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Transaction, 0, len(e.transactions))
	for _, t := range e.transactions {
		out = append(out, t)
	}
	return out
}
