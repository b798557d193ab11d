package domain

import "encoding/json"

// OutcomeStatus classifies a harvest attempt
type OutcomeStatus string

const (
	StatusSuccess           OutcomeStatus = "Success"
	StatusNoRun             OutcomeStatus = "No Run / Missing"
	StatusNoArtifact        OutcomeStatus = "No Artifact"
	StatusParseError        OutcomeStatus = "Parse Error"
	StatusPublicRepoPenalty OutcomeStatus = "Public Repo Penalty"
)

// AllStatuses lists the outcome taxonomy in display order
var AllStatuses = []OutcomeStatus{
	StatusSuccess,
	StatusNoRun,
	StatusNoArtifact,
	StatusParseError,
	StatusPublicRepoPenalty,
}

// Outcome is the final classification of one target
type Outcome struct {
	Repo          string          `json:"repo"`
	Status        OutcomeStatus   `json:"status"`
	Score         float64         `json:"score"`
	RunURL        string          `json:"run_url,omitempty"`
	RunConclusion string          `json:"conclusion,omitempty"`
	Detail        json.RawMessage `json:"detail,omitempty"`
}

// NewOutcome creates a zero-score outcome for a target
func NewOutcome(t Target, status OutcomeStatus, runURL string) *Outcome {
	return &Outcome{
		Repo:   t.FullName(),
		Status: status,
		RunURL: runURL,
	}
}
