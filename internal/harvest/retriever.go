package harvest

import (
	"context"
	"log/slog"

	"github.com/kurihiro0119/grading-harvester/internal/collector"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

// Retriever downloads the report artifact attached to a run
type Retriever struct {
	forge        collector.Forge
	artifactName string
	logger       *slog.Logger
}

// NewRetriever creates a retriever for artifacts named artifactName
func NewRetriever(forge collector.Forge, artifactName string, logger *slog.Logger) *Retriever {
	return &Retriever{
		forge:        forge,
		artifactName: artifactName,
		logger:       logger,
	}
}

// Retrieve returns the raw archive bytes of the run's report artifact.
// Failures carry ErrCodeArtifactListing, ErrCodeNoArtifact or ErrCodeDownload.
func (r *Retriever) Retrieve(ctx context.Context, run *domain.Run) ([]byte, error) {
	artifacts, err := r.forge.ListArtifacts(ctx, run.ArtifactsURL)
	if err != nil {
		return nil, apperrors.NewArtifactListingError(err)
	}

	artifact := findArtifact(artifacts, r.artifactName)
	if artifact == nil {
		return nil, apperrors.NewNoArtifactError(r.artifactName)
	}
	if artifact.Expired {
		r.logger.WarnContext(ctx, "report artifact has expired", "run_id", run.ID, "artifact_id", artifact.ID)
		return nil, apperrors.NewNoArtifactError(r.artifactName)
	}

	r.logger.InfoContext(ctx, "downloading artifact",
		"run_id", run.ID, "artifact_id", artifact.ID, "size_in_bytes", artifact.SizeInBytes)

	data, err := r.forge.DownloadArtifact(ctx, artifact.DownloadURL)
	if err != nil {
		return nil, apperrors.NewDownloadError(err)
	}
	return data, nil
}

func findArtifact(artifacts []*domain.Artifact, name string) *domain.Artifact {
	for _, a := range artifacts {
		if a != nil && a.Name == name {
			return a
		}
	}
	return nil
}
