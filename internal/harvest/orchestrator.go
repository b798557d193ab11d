package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// Result is the result of reconciling one target. Exactly one of Outcome and
// Err is set.
type Result struct {
	Target  domain.Target
	Outcome *domain.Outcome
	Err     error
}

// Aggregate is the cohort-level output, in completion order
type Aggregate struct {
	Outcomes []*domain.Outcome
	Failed   []Result
}

// Orchestrator fans a Reconciler out over a cohort with a fixed worker budget
type Orchestrator struct {
	reconciler Reconciler
	workers    int
	logger     *slog.Logger

	// OnResult, if set, is called after each target completes. Calls are serialized.
	OnResult func(Result)
}

// NewOrchestrator creates an orchestrator running at most workers
// reconciliations at a time
func NewOrchestrator(reconciler Reconciler, workers int, logger *slog.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		reconciler: reconciler,
		workers:    workers,
		logger:     logger,
	}
}

// Run reconciles every target. A failing target never affects its siblings;
// it is left out of Outcomes and listed in Failed instead.
func (o *Orchestrator) Run(ctx context.Context, targets []domain.Target) *Aggregate {
	agg := &Aggregate{
		Outcomes: make([]*domain.Outcome, 0, len(targets)),
	}
	var mu sync.Mutex

	o.logger.InfoContext(ctx, "starting grading crawl", "targets", len(targets), "workers", o.workers)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for _, t := range targets {
		g.Go(func() error {
			res := o.reconcileOne(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			if res.Err != nil {
				o.logger.ErrorContext(ctx, "reconciliation failed", "repo", t.FullName(), "error", res.Err)
				agg.Failed = append(agg.Failed, res)
			} else {
				agg.Outcomes = append(agg.Outcomes, res.Outcome)
			}
			if o.OnResult != nil {
				o.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait() // errors captured in Result.Err

	return agg
}

func (o *Orchestrator) reconcileOne(ctx context.Context, t domain.Target) (res Result) {
	res.Target = t
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = nil
			res.Err = fmt.Errorf("panic while reconciling %s: %v", t.FullName(), p)
		}
	}()

	outcome, err := o.reconciler.Reconcile(ctx, t)
	if err == nil && outcome == nil {
		err = fmt.Errorf("reconciler returned no outcome for %s", t.FullName())
	}
	res.Outcome, res.Err = outcome, err
	if err != nil {
		res.Outcome = nil
	}
	return res
}
