package harvest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	"github.com/kurihiro0119/grading-harvester/internal/logging"
)

// fakeForge is an in-memory forge keyed by "owner/name" that records every call
type fakeForge struct {
	mu sync.Mutex

	repos     map[string]*domain.Repository
	repoErr   map[string]error
	runs      map[string][]*domain.Run // key: owner/name@sha
	runsErr   map[string]error
	artifacts map[string][]*domain.Artifact // key: artifacts URL
	listErr   map[string]error
	archives  map[string][]byte // key: download URL
	dlErr     map[string]error

	calls []string
}

func newFakeForge() *fakeForge {
	return &fakeForge{
		repos:     map[string]*domain.Repository{},
		repoErr:   map[string]error{},
		runs:      map[string][]*domain.Run{},
		runsErr:   map[string]error{},
		artifacts: map[string][]*domain.Artifact{},
		listErr:   map[string]error{},
		archives:  map[string][]byte{},
		dlErr:     map[string]error{},
	}
}

func (f *fakeForge) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeForge) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeForge) GetRepository(_ context.Context, owner, name string) (*domain.Repository, error) {
	key := owner + "/" + name
	f.record("repo " + key)
	if err := f.repoErr[key]; err != nil {
		return nil, err
	}
	if repo, ok := f.repos[key]; ok {
		return repo, nil
	}
	return &domain.Repository{Owner: owner, Name: name, FullName: key, IsPrivate: true}, nil
}

func (f *fakeForge) ListRunsForCommit(_ context.Context, owner, name, sha string) ([]*domain.Run, error) {
	key := owner + "/" + name + "@" + sha
	f.record("runs " + key)
	if err := f.runsErr[key]; err != nil {
		return nil, err
	}
	return f.runs[key], nil
}

func (f *fakeForge) ListArtifacts(_ context.Context, artifactsURL string) ([]*domain.Artifact, error) {
	f.record("artifacts " + artifactsURL)
	if err := f.listErr[artifactsURL]; err != nil {
		return nil, err
	}
	return f.artifacts[artifactsURL], nil
}

func (f *fakeForge) DownloadArtifact(_ context.Context, downloadURL string) ([]byte, error) {
	f.record("download " + downloadURL)
	if err := f.dlErr[downloadURL]; err != nil {
		return nil, err
	}
	data, ok := f.archives[downloadURL]
	if !ok {
		return nil, fmt.Errorf("404 for %s", downloadURL)
	}
	return data, nil
}

// addGradedRun registers a completed run with a grading-report artifact whose
// archive holds report.json = reportJSON
func (f *fakeForge) addGradedRun(t *testing.T, owner, name, sha string, id int64, conclusion, reportJSON string) *domain.Run {
	t.Helper()
	run := &domain.Run{
		ID:           id,
		WorkflowPath: ".github/workflows/grading.yml",
		Status:       domain.RunStatusCompleted,
		Conclusion:   conclusion,
		ArtifactsURL: fmt.Sprintf("https://api.test/%s/%s/runs/%d/artifacts", owner, name, id),
		HTMLURL:      fmt.Sprintf("https://github.test/%s/%s/actions/runs/%d", owner, name, id),
	}
	key := owner + "/" + name + "@" + sha
	f.runs[key] = append(f.runs[key], run)

	dl := fmt.Sprintf("https://api.test/artifacts/%d/zip", id)
	f.artifacts[run.ArtifactsURL] = []*domain.Artifact{
		{ID: id * 10, Name: "grading-report", SizeInBytes: 128, DownloadURL: dl},
	}
	f.archives[dl] = buildZip(t, map[string]string{"report.json": reportJSON})
	return run
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func testOptions(reportsDir string) Options {
	return Options{
		WorkflowPath: ".github/workflows/grading.yml",
		ArtifactName: "grading-report",
		ReportMember: "report.json",
		ReportsDir:   reportsDir,
	}
}

var discard = logging.Discard()
