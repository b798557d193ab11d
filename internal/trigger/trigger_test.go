package trigger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	"github.com/kurihiro0119/grading-harvester/internal/logging"
)

// fakeRunner simulates gh and git. The repository is identified by the
// clone argument and remembered per clone directory.
type fakeRunner struct {
	mu       sync.Mutex
	calls    map[string][]string // repo -> commands
	dirRepo  map[string]string
	dirty    bool
	failOn   map[string]string // repo -> command prefix that fails
	payloads map[string][]string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		calls:    map[string][]string{},
		dirRepo:  map[string]string{},
		failOn:   map[string]string{},
		payloads: map[string][]string{},
	}
}

func (f *fakeRunner) Run(_ context.Context, dir string, name string, args ...string) (string, error) {
	cmd := name + " " + strings.Join(args, " ")

	f.mu.Lock()
	defer f.mu.Unlock()

	repo := f.dirRepo[dir]
	if name == "gh" {
		repo = args[2]
		cloneDir := args[3]
		f.dirRepo[cloneDir] = repo
		cmd = "gh repo clone " + strings.Join(args[4:], " ")
		if prefix, ok := f.failOn[repo]; !ok || !strings.HasPrefix(cmd, prefix) {
			if err := os.MkdirAll(cloneDir, 0o755); err != nil {
				return "", err
			}
		}
	}
	f.calls[repo] = append(f.calls[repo], cmd)

	if prefix, ok := f.failOn[repo]; ok && strings.HasPrefix(cmd, prefix) {
		return "", errors.New("exit status 1")
	}

	switch {
	case cmd == "git status --porcelain":
		var files []string
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				rel, _ := filepath.Rel(dir, path)
				files = append(files, rel)
			}
			return nil
		})
		sort.Strings(files)
		f.payloads[repo] = files
		if f.dirty {
			return "A  tests/test_example.py", nil
		}
		return "", nil
	case cmd == "git rev-parse HEAD":
		return "sha-" + repo, nil
	}
	return "", nil
}

func (f *fakeRunner) callsFor(repo string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls[repo]...)
}

func writePayload(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tests", "test_example.py"), []byte("def test_ok(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "grade.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestTriggerRepo_CommitsAndPushesChanges(t *testing.T) {
	runner := newFakeRunner()
	runner.dirty = true
	p := New(runner, Options{Branch: DefaultBranch("mp1"), PayloadDir: writePayload(t), TempDir: t.TempDir()}, logging.Discard())

	sha, err := p.TriggerRepo(context.Background(), "student/xv6")
	if err != nil {
		t.Fatalf("TriggerRepo: %v", err)
	}
	if sha != "sha-student/xv6" {
		t.Errorf("sha = %q", sha)
	}

	want := []string{
		"gh repo clone -- -b ntuos2026/mp1 --depth 1",
		"git add -A",
		"git status --porcelain",
		"git commit -m " + commitMessage,
		"git push origin HEAD",
		"git rev-parse HEAD",
	}
	if diff := cmp.Diff(want, runner.callsFor("student/xv6")); diff != "" {
		t.Errorf("commands (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"grade.sh", filepath.Join("tests", "test_example.py")}, runner.payloads["student/xv6"]); diff != "" {
		t.Errorf("payload files in clone (-want +got):\n%s", diff)
	}
}

func TestTriggerRepo_NoChangesSkipsPush(t *testing.T) {
	runner := newFakeRunner()
	p := New(runner, Options{Branch: "b", TempDir: t.TempDir()}, logging.Discard())

	sha, err := p.TriggerRepo(context.Background(), "student/xv6")
	if err != nil {
		t.Fatal(err)
	}
	if sha != "sha-student/xv6" {
		t.Errorf("sha = %q", sha)
	}
	for _, c := range runner.callsFor("student/xv6") {
		if strings.HasPrefix(c, "git push") || strings.HasPrefix(c, "git commit") {
			t.Errorf("unexpected %q without changes", c)
		}
	}
}

func TestTriggerRepo_ForceMakesEmptyCommit(t *testing.T) {
	runner := newFakeRunner()
	p := New(runner, Options{Branch: "b", Force: true, TempDir: t.TempDir()}, logging.Discard())

	if _, err := p.TriggerRepo(context.Background(), "student/xv6"); err != nil {
		t.Fatal(err)
	}
	calls := strings.Join(runner.callsFor("student/xv6"), "\n")
	if !strings.Contains(calls, "git commit --allow-empty -m "+forceCommitMessage) {
		t.Errorf("expected an empty commit, got:\n%s", calls)
	}
	if !strings.Contains(calls, "git push origin HEAD") {
		t.Errorf("expected a push, got:\n%s", calls)
	}
}

func TestRun_FailuresAreIsolated(t *testing.T) {
	runner := newFakeRunner()
	runner.dirty = true
	runner.failOn["s/clone-fails"] = "gh repo clone"
	runner.failOn["s/push-fails"] = "git push"
	p := New(runner, Options{Branch: "b", Workers: 2, TempDir: t.TempDir()}, logging.Discard())

	targets, failures := p.Run(context.Background(), []string{"s/a", "s/clone-fails", "s/b", "s/push-fails"})

	sort.Slice(targets, func(i, j int) bool { return targets[i].Repo < targets[j].Repo })
	want := []domain.TargetSpec{
		{Repo: "s/a", CommitSHA: "sha-s/a"},
		{Repo: "s/b", CommitSHA: "sha-s/b"},
	}
	if diff := cmp.Diff(want, targets); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}

	var failed []string
	for _, f := range failures {
		failed = append(failed, f.Repo)
	}
	sort.Strings(failed)
	if diff := cmp.Diff([]string{"s/clone-fails", "s/push-fails"}, failed); diff != "" {
		t.Errorf("failures (-want +got):\n%s", diff)
	}
}

func TestPaths(t *testing.T) {
	if got := TargetsPath("/g", "mp0"); got != filepath.Join("/g", "mp0", "result", "grading_targets.json") {
		t.Errorf("TargetsPath = %q", got)
	}
	if got := PayloadDir("/g", "mp0"); got != filepath.Join("/g", "mp0", "payload") {
		t.Errorf("PayloadDir = %q", got)
	}
}
