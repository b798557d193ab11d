package aggregator

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	"github.com/kurihiro0119/grading-harvester/internal/storage"
)

// Aggregator records harvest batches and answers questions about them
type Aggregator interface {
	// StartBatch registers a new in-progress batch
	StartBatch(ctx context.Context, label string, targetCount int) (*domain.HarvestBatch, error)

	// RecordOutcomes appends outcomes to a batch
	RecordOutcomes(ctx context.Context, batchID string, outcomes []*domain.Outcome) error

	// FinishBatch marks a batch completed or failed
	FinishBatch(ctx context.Context, batchID string, status string) error

	// GetBatch retrieves a single batch
	GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error)

	// ListBatches retrieves the most recent batches
	ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error)

	// GetOutcomes retrieves a batch's outcomes, optionally only those with the given status
	GetOutcomes(ctx context.Context, batchID string, status domain.OutcomeStatus) ([]*domain.Outcome, error)

	// GetBatchSummary computes score statistics for a batch
	GetBatchSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
	now     func() time.Time
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
		now:     time.Now,
	}
}

func (a *aggregator) StartBatch(ctx context.Context, label string, targetCount int) (*domain.HarvestBatch, error) {
	now := a.now().UTC()
	batch := &domain.HarvestBatch{
		ID:          uuid.New().String(),
		Label:       label,
		Status:      domain.BatchStatusInProgress,
		TargetCount: targetCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.storage.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (a *aggregator) RecordOutcomes(ctx context.Context, batchID string, outcomes []*domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	return a.storage.SaveOutcomes(ctx, batchID, outcomes)
}

func (a *aggregator) FinishBatch(ctx context.Context, batchID string, status string) error {
	return a.storage.UpdateBatchStatus(ctx, batchID, status)
}

func (a *aggregator) GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error) {
	return a.storage.GetBatch(ctx, batchID)
}

func (a *aggregator) ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error) {
	return a.storage.ListBatches(ctx, limit)
}

func (a *aggregator) GetOutcomes(ctx context.Context, batchID string, status domain.OutcomeStatus) ([]*domain.Outcome, error) {
	// Surface not-found for unknown batches instead of an empty list
	if _, err := a.storage.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	outcomes, err := a.storage.GetOutcomes(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return outcomes, nil
	}

	filtered := make([]*domain.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func (a *aggregator) GetBatchSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	outcomes, err := a.GetOutcomes(ctx, batchID, "")
	if err != nil {
		return nil, err
	}
	return Summarize(batchID, outcomes), nil
}

// Summarize counts outcomes per status and computes score statistics over
// the Success outcomes. Every status appears in ByStatus, zero or not.
func Summarize(batchID string, outcomes []*domain.Outcome) *domain.BatchSummary {
	summary := &domain.BatchSummary{
		BatchID:  batchID,
		Total:    len(outcomes),
		ByStatus: make(map[domain.OutcomeStatus]int, len(domain.AllStatuses)),
	}
	for _, s := range domain.AllStatuses {
		summary.ByStatus[s] = 0
	}

	sum := 0.0
	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for _, o := range outcomes {
		summary.ByStatus[o.Status]++
		if o.Status != domain.StatusSuccess {
			continue
		}
		summary.ScoredCount++
		sum += o.Score
		minScore = math.Min(minScore, o.Score)
		maxScore = math.Max(maxScore, o.Score)
	}

	if summary.ScoredCount > 0 {
		summary.MeanScore = sum / float64(summary.ScoredCount)
		summary.MinScore = minScore
		summary.MaxScore = maxScore
	}
	return summary
}
