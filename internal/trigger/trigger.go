// Package trigger stages the grading payload into student repositories and
// pushes a commit so that the grading workflow runs.
package trigger

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

const (
	DefaultWorkers = 10

	commitMessage      = "chore(grading): deploy private tests and trigger grading"
	forceCommitMessage = "chore(grading): force trigger grading test suite"
)

// DefaultBranch returns the student branch for a machine problem
func DefaultBranch(mp string) string {
	return "ntuos2026/" + mp
}

// PayloadDir is where the files copied into every repository live
func PayloadDir(gradingDir, mp string) string {
	return filepath.Join(gradingDir, mp, "payload")
}

// TargetsPath is where the recorded targets are written
func TargetsPath(gradingDir, mp string) string {
	return filepath.Join(gradingDir, mp, "result", "grading_targets.json")
}

// Options configures a trigger pipeline
type Options struct {
	Branch     string
	PayloadDir string // empty or missing means empty commits only
	Force      bool   // push an empty commit when the payload is already present
	Workers    int
	TempDir    string // parent of the per-repository clones; empty uses os.TempDir
}

// Failure records a repository that could not be triggered
type Failure struct {
	Repo string
	Err  error
}

// Pipeline clones, updates and pushes student repositories
type Pipeline struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// New creates a trigger pipeline
func New(runner Runner, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	return &Pipeline{runner: runner, opts: opts, logger: logger}
}

// Run triggers every repository with bounded concurrency. Targets are
// returned in completion order; a repository that fails is reported in the
// failures and left out of the targets.
func (p *Pipeline) Run(ctx context.Context, repos []string) ([]domain.TargetSpec, []Failure) {
	var (
		mu       sync.Mutex
		targets  []domain.TargetSpec
		failures []Failure
	)

	g := new(errgroup.Group)
	g.SetLimit(p.opts.Workers)

	for _, repo := range repos {
		g.Go(func() error {
			sha, err := p.TriggerRepo(ctx, repo)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error("trigger failed", "repo", repo, "error", err)
				failures = append(failures, Failure{Repo: repo, Err: err})
				return nil
			}
			targets = append(targets, domain.TargetSpec{Repo: repo, CommitSHA: sha})
			return nil
		})
	}
	_ = g.Wait()

	return targets, failures
}

// TriggerRepo updates one repository and returns the commit the grading run
// will be keyed on. When the payload changes nothing and Force is unset, the
// existing HEAD is returned without pushing.
func (p *Pipeline) TriggerRepo(ctx context.Context, repo string) (string, error) {
	p.logger.Info("processing repository", "repo", repo, "branch", p.opts.Branch)

	tmp, err := os.MkdirTemp(p.opts.TempDir, "trigger-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	cloneDir := filepath.Join(tmp, "repo")
	if _, err := p.runner.Run(ctx, tmp, "gh", "repo", "clone", repo, cloneDir, "--", "-b", p.opts.Branch, "--depth", "1"); err != nil {
		return "", fmt.Errorf("failed to clone: %w", err)
	}

	if p.opts.PayloadDir != "" {
		if info, err := os.Stat(p.opts.PayloadDir); err == nil && info.IsDir() {
			if err := copyTree(p.opts.PayloadDir, cloneDir); err != nil {
				return "", fmt.Errorf("failed to copy payload: %w", err)
			}
		}
	}

	if _, err := p.runner.Run(ctx, cloneDir, "git", "add", "-A"); err != nil {
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}
	status, err := p.runner.Run(ctx, cloneDir, "git", "status", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("failed to read status: %w", err)
	}

	switch {
	case status != "":
		if _, err := p.runner.Run(ctx, cloneDir, "git", "commit", "-m", commitMessage); err != nil {
			return "", fmt.Errorf("failed to commit: %w", err)
		}
	case p.opts.Force:
		p.logger.Warn("no changes, forcing an empty commit", "repo", repo)
		if _, err := p.runner.Run(ctx, cloneDir, "git", "commit", "--allow-empty", "-m", forceCommitMessage); err != nil {
			return "", fmt.Errorf("failed to commit: %w", err)
		}
	default:
		p.logger.Info("payload already present, skipping push", "repo", repo)
		return p.head(ctx, cloneDir)
	}

	if _, err := p.runner.Run(ctx, cloneDir, "git", "push", "origin", "HEAD"); err != nil {
		return "", fmt.Errorf("failed to push: %w", err)
	}

	sha, err := p.head(ctx, cloneDir)
	if err != nil {
		return "", err
	}
	p.logger.Info("grading triggered", "repo", repo, "commit", sha)
	return sha, nil
}

func (p *Pipeline) head(ctx context.Context, dir string) (string, error) {
	sha, err := p.runner.Run(ctx, dir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if sha == "" {
		return "", fmt.Errorf("empty HEAD sha")
	}
	return sha, nil
}

// copyTree copies the contents of src into dst, overwriting existing files
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
