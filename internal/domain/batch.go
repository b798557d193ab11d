package domain

import "time"

const (
	BatchStatusInProgress = "in_progress"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// HarvestBatch represents one invocation of the harvest pipeline
type HarvestBatch struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`  // free-form cohort label, e.g. "mp1"
	Status      string    `json:"status"` // "in_progress", "completed", "failed"
	TargetCount int       `json:"target_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BatchSummary aggregates the outcomes of one batch
type BatchSummary struct {
	BatchID     string                `json:"batch_id"`
	Total       int                   `json:"total"`
	ByStatus    map[OutcomeStatus]int `json:"by_status"`
	ScoredCount int                   `json:"scored_count"`
	MeanScore   float64               `json:"mean_score"`
	MaxScore    float64               `json:"max_score"`
	MinScore    float64               `json:"min_score"`
}
