package harvest

import (
	"context"
	"log/slog"

	"github.com/kurihiro0119/grading-harvester/internal/collector"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// Gate is the integrity check run before anything else for a target. A
// repository that is visible to the public forfeits its grade.
type Gate struct {
	forge  collector.Forge
	logger *slog.Logger
}

// NewGate creates an integrity gate
func NewGate(forge collector.Forge, logger *slog.Logger) *Gate {
	return &Gate{forge: forge, logger: logger}
}

// Check fetches repository metadata. The caller must stop processing the
// target when the returned repository is public or when err is non-nil.
func (g *Gate) Check(ctx context.Context, t domain.Target) (*domain.Repository, error) {
	repo, err := g.forge.GetRepository(ctx, t.Owner, t.Name)
	if err != nil {
		return nil, err
	}
	if !repo.IsPrivate {
		g.logger.WarnContext(ctx, "repository is public, enforcing penalty", "repo", t.FullName())
	}
	return repo, nil
}
