package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// Rejected is a target entry dropped during validation
type Rejected struct {
	Spec   domain.TargetSpec
	Reason string
}

// LoadTargets reads a targets file: a list of {repo, commit_sha}
func LoadTargets(path string) ([]domain.TargetSpec, error) {
	var specs []domain.TargetSpec
	if err := decodeFile(path, &specs); err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	return specs, nil
}

// LoadStudents reads a student list: a list of "owner/repo" strings
func LoadStudents(path string) ([]string, error) {
	var repos []string
	if err := decodeFile(path, &repos); err != nil {
		return nil, fmt.Errorf("failed to read students list: %w", err)
	}
	return repos, nil
}

// FromStudents pairs every repository with the same commit
func FromStudents(repos []string, commit string) []domain.TargetSpec {
	specs := make([]domain.TargetSpec, 0, len(repos))
	for _, r := range repos {
		specs = append(specs, domain.TargetSpec{Repo: r, CommitSHA: commit})
	}
	return specs
}

// Validate turns specs into targets. Entries without a repo or commit, or
// whose repo is not exactly "owner/name", are rejected; the rest keep their order.
func Validate(specs []domain.TargetSpec) ([]domain.Target, []Rejected) {
	var targets []domain.Target
	var rejected []Rejected

	for _, spec := range specs {
		repo := strings.TrimSpace(spec.Repo)
		sha := strings.TrimSpace(spec.CommitSHA)

		if repo == "" || sha == "" {
			rejected = append(rejected, Rejected{Spec: spec, Reason: "missing repo or commit_sha"})
			continue
		}

		parts := strings.Split(repo, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			rejected = append(rejected, Rejected{Spec: spec, Reason: fmt.Sprintf("invalid repo format %q", repo)})
			continue
		}

		targets = append(targets, domain.Target{Owner: parts[0], Name: parts[1], CommitSHA: sha})
	}

	return targets, rejected
}

// WriteTargets writes specs as an indented JSON targets file, creating the
// parent directory if needed
func WriteTargets(path string, specs []domain.TargetSpec) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if specs == nil {
		specs = []domain.TargetSpec{}
	}
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}
