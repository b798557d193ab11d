package collector

import (
	"context"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// Forge defines the forge calls the harvest pipeline depends on
type Forge interface {
	// GetRepository retrieves repository metadata, including visibility
	GetRepository(ctx context.Context, owner, name string) (*domain.Repository, error)

	// ListRunsForCommit retrieves every workflow run whose head commit is sha
	ListRunsForCommit(ctx context.Context, owner, name, sha string) ([]*domain.Run, error)

	// ListArtifacts retrieves the artifact listing at a run's artifacts URL
	ListArtifacts(ctx context.Context, artifactsURL string) ([]*domain.Artifact, error)

	// DownloadArtifact fetches an artifact archive, following redirects
	DownloadArtifact(ctx context.Context, downloadURL string) ([]byte, error)
}
