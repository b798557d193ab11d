package storage

import (
	"context"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// Batch operations
	CreateBatch(ctx context.Context, batch *domain.HarvestBatch) error
	UpdateBatchStatus(ctx context.Context, batchID string, status string) error
	GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error)
	ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error)

	// Outcome operations. Outcomes keep the order they were saved in.
	SaveOutcomes(ctx context.Context, batchID string, outcomes []*domain.Outcome) error
	GetOutcomes(ctx context.Context, batchID string) ([]*domain.Outcome, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
