package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/grading-harvester/internal/aggregator"
	"github.com/kurihiro0119/grading-harvester/internal/collector"
	"github.com/kurihiro0119/grading-harvester/internal/config"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	"github.com/kurihiro0119/grading-harvester/internal/harvest"
	"github.com/kurihiro0119/grading-harvester/internal/logging"
	"github.com/kurihiro0119/grading-harvester/internal/output"
	"github.com/kurihiro0119/grading-harvester/internal/roster"
)

var (
	harvestTargets    string
	harvestCommit     string
	harvestStudents   string
	harvestOutput     string
	harvestReportsDir string
	harvestWorkers    int
	harvestLabel      string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect grading results for a cohort",
	Long: `Collect the grading report of every (repository, commit) target.

Targets come either from --targets (a JSON or YAML list of {repo, commit_sha})
or from --students together with --commit, which grades the same commit in
every listed repository. Results are written to --output and to a CSV file
next to it.`,
	Args: cobra.NoArgs,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().StringVar(&harvestTargets, "targets", "", "targets file (JSON or YAML list of {repo, commit_sha})")
	harvestCmd.Flags().StringVar(&harvestCommit, "commit", "", "commit SHA to grade in every student repository")
	harvestCmd.Flags().StringVar(&harvestStudents, "students", "", "students file (JSON or YAML list of owner/repo), used with --commit")
	harvestCmd.Flags().StringVar(&harvestOutput, "output", "final_grades.json", "aggregate JSON output path")
	harvestCmd.Flags().StringVar(&harvestReportsDir, "reports-dir", "", "directory for raw report copies (default REPORTS_DIR)")
	harvestCmd.Flags().IntVar(&harvestWorkers, "workers", 0, "concurrent reconciliations (default HARVEST_WORKERS)")
	harvestCmd.Flags().StringVar(&harvestLabel, "label", "", "label stored with the harvest batch")
}

func loadTargetSpecs() ([]domain.TargetSpec, error) {
	switch {
	case harvestTargets != "":
		return roster.LoadTargets(harvestTargets)
	case harvestStudents != "" && harvestCommit != "":
		repos, err := roster.LoadStudents(harvestStudents)
		if err != nil {
			return nil, err
		}
		return roster.FromStudents(repos, harvestCommit), nil
	default:
		return nil, fmt.Errorf("either --targets or both --students and --commit are required")
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if harvestWorkers > 0 {
		cfg.Workers = harvestWorkers
	}
	if harvestReportsDir != "" {
		cfg.ReportsDir = harvestReportsDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	if err := cfg.ResolveToken(ctx); err != nil {
		return fmt.Errorf("authentication: %w", err)
	}

	specs, err := loadTargetSpecs()
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}
	logger := logging.New("harvest")
	targets, rejected := roster.Validate(specs)
	for _, r := range rejected {
		logger.Warn("skipping invalid target", "repo", r.Spec.Repo, "commit_sha", r.Spec.CommitSHA, "reason", r.Reason)
	}
	if len(targets) == 0 {
		return fmt.Errorf("no valid targets")
	}

	var opts []collector.Option
	if cfg.GitHubAPIURL != "" {
		opts = append(opts, collector.WithBaseURL(cfg.GitHubAPIURL))
	}
	forge, err := collector.NewGitHubForge(cfg.GitHubToken, opts...)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	if err := harvest.NewAuditWriter(cfg.ReportsDir).Prepare(); err != nil {
		logger.Warn("cannot create reports directory, raw reports will not be kept", "dir", cfg.ReportsDir, "error", err)
	}

	reconciler := harvest.NewReconciler(forge, harvest.Options{
		WorkflowPath: cfg.WorkflowPath,
		ArtifactName: cfg.ArtifactName,
		ReportMember: cfg.ReportMember,
		ReportsDir:   cfg.ReportsDir,
	}, logger)
	orch := harvest.NewOrchestrator(reconciler, cfg.Workers, logger)

	done := 0
	orch.OnResult = func(r harvest.Result) {
		done++
		status := "failed"
		if r.Outcome != nil {
			status = string(r.Outcome.Status)
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", done, len(targets), r.Target.FullName(), status)
	}

	fmt.Fprintf(os.Stderr, "Harvesting %d targets with %d workers\n", len(targets), cfg.Workers)
	result := orch.Run(ctx, targets)

	csvPath, err := output.WriteAggregate(harvestOutput, result.Outcomes)
	if err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	saveBatch(ctx, cfg, result)

	if outputJSON {
		return output.EncodeJSON(os.Stdout, result.Outcomes)
	}

	fmt.Println()
	output.RenderTable(os.Stdout, result.Outcomes)
	output.RenderSummary(os.Stdout, aggregator.Summarize("", result.Outcomes))
	fmt.Printf("\nSaved %d results to %s and %s\n", len(result.Outcomes), harvestOutput, csvPath)
	if len(result.Failed) > 0 {
		fmt.Printf("%d targets could not be graded:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  %s: %v\n", f.Target.FullName(), f.Err)
		}
	}
	return nil
}

// saveBatch records the harvest in storage when it is configured. Failures
// are logged only; the output files are authoritative.
func saveBatch(ctx context.Context, cfg *config.Config, result *harvest.Aggregate) {
	logger := logging.New("storage")

	store, err := getStorage(cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "type", cfg.StorageType, "error", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	agg := aggregator.NewAggregator(store)
	batch, err := agg.StartBatch(ctx, harvestLabel, len(result.Outcomes)+len(result.Failed))
	if err != nil {
		logger.Error("failed to create batch", "error", err)
		return
	}

	status := domain.BatchStatusCompleted
	if err := agg.RecordOutcomes(ctx, batch.ID, result.Outcomes); err != nil {
		logger.Error("failed to save outcomes", "batch", batch.ID, "error", err)
		status = domain.BatchStatusFailed
	}
	if err := agg.FinishBatch(ctx, batch.ID, status); err != nil {
		logger.Error("failed to update batch", "batch", batch.ID, "error", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Stored harvest batch %s\n", batch.ID)
}
