package domain

import "time"

const (
	RunStatusCompleted = "completed"

	ConclusionSuccess = "success"
	ConclusionFailure = "failure"
)

// Run is one execution of a CI workflow as reported by the forge
type Run struct {
	ID           int64
	WorkflowPath string
	Status       string
	Conclusion   string
	UpdatedAt    time.Time
	ArtifactsURL string
	HTMLURL      string
}

// Succeeded reports whether the run completed with a success conclusion
func (r *Run) Succeeded() bool {
	return r.Status == RunStatusCompleted && r.Conclusion == ConclusionSuccess
}

// Artifact is one entry of a run's artifact listing
type Artifact struct {
	ID          int64
	Name        string
	SizeInBytes int64
	DownloadURL string
	Expired     bool
}
