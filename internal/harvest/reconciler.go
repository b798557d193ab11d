package harvest

import (
	"context"
	"log/slog"

	"github.com/kurihiro0119/grading-harvester/internal/collector"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

// Reconciler produces the outcome for one target. A returned error means the
// target could not be classified at all (for example, the context ended).
type Reconciler interface {
	Reconcile(ctx context.Context, t domain.Target) (*domain.Outcome, error)
}

// Options configures the per-target pipeline
type Options struct {
	WorkflowPath string
	ArtifactName string
	ReportMember string
	ReportsDir   string // empty disables audit copies
}

// targetReconciler runs gate, resolver, retriever and extractor in order
type targetReconciler struct {
	gate      *Gate
	resolver  *Resolver
	retriever *Retriever
	extractor *Extractor
	audit     *AuditWriter
	logger    *slog.Logger
}

// NewReconciler wires the harvest steps for one forge
func NewReconciler(forge collector.Forge, opts Options, logger *slog.Logger) Reconciler {
	return &targetReconciler{
		gate:      NewGate(forge, logger),
		resolver:  NewResolver(forge, opts.WorkflowPath, logger),
		retriever: NewRetriever(forge, opts.ArtifactName, logger),
		extractor: NewExtractor(opts.ReportMember),
		audit:     NewAuditWriter(opts.ReportsDir),
		logger:    logger,
	}
}

// Reconcile classifies t, stopping at the first step that does not succeed
func (r *targetReconciler) Reconcile(ctx context.Context, t domain.Target) (*domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := r.logger.With("repo", t.FullName())

	repo, err := r.gate.Check(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.ErrorContext(ctx, "failed to fetch repository metadata", "error", err)
		return domain.NewOutcome(t, domain.StatusNoRun, ""), nil
	}
	if !repo.IsPrivate {
		return domain.NewOutcome(t, domain.StatusPublicRepoPenalty, repo.HTMLURL), nil
	}

	run, err := r.resolver.Resolve(ctx, t)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if apperrors.IsNoRun(err) {
			log.WarnContext(ctx, "no completed grading workflow for commit", "commit", t.ShortSHA())
		} else {
			log.ErrorContext(ctx, "failed to fetch workflow runs", "error", err)
		}
		return domain.NewOutcome(t, domain.StatusNoRun, ""), nil
	}

	outcome := domain.NewOutcome(t, domain.StatusSuccess, run.HTMLURL)
	outcome.RunConclusion = run.Conclusion

	archive, err := r.retriever.Retrieve(ctx, run)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WarnContext(ctx, "report artifact unavailable", "run_id", run.ID, "error", err)
		outcome.Status = domain.StatusNoArtifact
		return outcome, nil
	}

	report, err := r.extractor.Extract(archive)
	if err != nil {
		log.ErrorContext(ctx, "failed to parse report", "run_id", run.ID, "error", err)
		outcome.Status = domain.StatusParseError
		return outcome, nil
	}

	outcome.Score = report.FinalScore()
	outcome.Detail = report.Raw
	log.InfoContext(ctx, "parsed final score", "score", outcome.Score)

	if path, err := r.audit.Write(t, report); err != nil {
		log.WarnContext(ctx, "failed to preserve report", "error", err)
	} else if path != "" {
		log.DebugContext(ctx, "saved report", "path", path)
	}

	return outcome, nil
}
