package harvest

import (
	"context"
	"log/slog"

	"github.com/kurihiro0119/grading-harvester/internal/collector"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

// SelectRun picks the run to harvest among the runs reported for one commit.
// Only completed runs of workflowPath are candidates. The most recently
// updated successful run wins; failing that, the most recently updated
// completed run of any conclusion. Returns nil when nothing qualifies.
func SelectRun(runs []*domain.Run, workflowPath string) *domain.Run {
	var latest, latestSuccess *domain.Run
	for _, run := range runs {
		if run == nil || run.WorkflowPath != workflowPath || run.Status != domain.RunStatusCompleted {
			continue
		}
		if latest == nil || run.UpdatedAt.After(latest.UpdatedAt) {
			latest = run
		}
		if run.Succeeded() &&
			(latestSuccess == nil || run.UpdatedAt.After(latestSuccess.UpdatedAt)) {
			latestSuccess = run
		}
	}
	if latestSuccess != nil {
		return latestSuccess
	}
	return latest
}

// Resolver maps a target to the CI run whose report should be harvested
type Resolver struct {
	forge        collector.Forge
	workflowPath string
	logger       *slog.Logger
}

// NewResolver creates a resolver for the grading workflow at workflowPath
func NewResolver(forge collector.Forge, workflowPath string, logger *slog.Logger) *Resolver {
	return &Resolver{
		forge:        forge,
		workflowPath: workflowPath,
		logger:       logger,
	}
}

// Resolve returns the selected run, an ErrCodeNoRun error when no completed
// grading run exists, or the forge error unchanged. It never retries.
func (r *Resolver) Resolve(ctx context.Context, t domain.Target) (*domain.Run, error) {
	r.logger.InfoContext(ctx, "querying workflow runs", "repo", t.FullName(), "commit", t.ShortSHA())

	runs, err := r.forge.ListRunsForCommit(ctx, t.Owner, t.Name, t.CommitSHA)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.NewTransportError("list runs", err)
		}
		return nil, err
	}

	run := SelectRun(runs, r.workflowPath)
	if run == nil {
		return nil, apperrors.NewNoRunError(t.FullName(), t.ShortSHA())
	}

	if !run.Succeeded() {
		r.logger.WarnContext(ctx, "grading run did not succeed, retrieving artifacts anyway",
			"repo", t.FullName(), "run_id", run.ID, "conclusion", run.Conclusion)
	}
	return run, nil
}
