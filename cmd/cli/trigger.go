package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/grading-harvester/internal/logging"
	"github.com/kurihiro0119/grading-harvester/internal/roster"
	"github.com/kurihiro0119/grading-harvester/internal/trigger"
)

var (
	triggerMP         string
	triggerStudents   string
	triggerGradingDir string
	triggerBranch     string
	triggerForce      bool
	triggerWorkers    int
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Deploy the grading payload and trigger CI",
	Long: `Copy <grading-dir>/<mp>/payload into every student repository, commit and
push, then record each repository's commit in
<grading-dir>/<mp>/result/grading_targets.json for a later harvest.`,
	Args: cobra.NoArgs,
	RunE: runTrigger,
}

func init() {
	triggerCmd.Flags().StringVar(&triggerMP, "mp", "", "machine problem identifier (e.g. mp0, mp1)")
	triggerCmd.Flags().StringVar(&triggerStudents, "students", "", "students file (JSON or YAML list of owner/repo)")
	triggerCmd.Flags().StringVar(&triggerGradingDir, "grading-dir", "", "grading workspace containing <mp>/payload")
	triggerCmd.Flags().StringVar(&triggerBranch, "branch", "", "branch in student repositories (default ntuos2026/<mp>)")
	triggerCmd.Flags().BoolVar(&triggerForce, "force", false, "push an empty commit even when the payload is unchanged")
	triggerCmd.Flags().IntVar(&triggerWorkers, "workers", trigger.DefaultWorkers, "concurrent repositories")
	_ = triggerCmd.MarkFlagRequired("mp")
	_ = triggerCmd.MarkFlagRequired("students")
	_ = triggerCmd.MarkFlagRequired("grading-dir")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	repos, err := roster.LoadStudents(triggerStudents)
	if err != nil {
		return fmt.Errorf("failed to read students list: %w", err)
	}

	branch := triggerBranch
	if branch == "" {
		branch = trigger.DefaultBranch(triggerMP)
	}

	logger := logging.New("trigger")
	payloadDir := trigger.PayloadDir(triggerGradingDir, triggerMP)
	if info, err := os.Stat(payloadDir); err != nil || !info.IsDir() {
		logger.Warn("payload directory not found, only empty commits will be pushed", "dir", payloadDir)
	}

	ctx, stop := signalContext()
	defer stop()

	pipeline := trigger.New(trigger.ExecRunner{}, trigger.Options{
		Branch:     branch,
		PayloadDir: payloadDir,
		Force:      triggerForce,
		Workers:    triggerWorkers,
	}, logger)

	fmt.Printf("Triggering grading for %d repositories (%s, branch %s)\n", len(repos), triggerMP, branch)
	targets, failures := pipeline.Run(ctx, repos)

	targetsPath := trigger.TargetsPath(triggerGradingDir, triggerMP)
	if err := roster.WriteTargets(targetsPath, targets); err != nil {
		return fmt.Errorf("failed to save targets: %w", err)
	}

	fmt.Printf("Saved %d targets to %s\n", len(targets), targetsPath)
	if len(failures) > 0 {
		fmt.Printf("%d repositories failed:\n", len(failures))
		for _, f := range failures {
			fmt.Printf("  %s: %v\n", f.Repo, f.Err)
		}
	}
	return nil
}
