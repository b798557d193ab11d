package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
	"github.com/kurihiro0119/grading-harvester/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS harvest_batches (
		id VARCHAR(64) PRIMARY KEY,
		label VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL,
		target_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_harvest_batches_created_at ON harvest_batches(created_at);

	CREATE TABLE IF NOT EXISTS outcomes (
		batch_id VARCHAR(64) NOT NULL REFERENCES harvest_batches(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		repo VARCHAR(255) NOT NULL,
		status VARCHAR(64) NOT NULL,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		run_url TEXT NOT NULL DEFAULT '',
		conclusion VARCHAR(32) NOT NULL DEFAULT '',
		detail JSON,
		PRIMARY KEY (batch_id, repo)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_batch_seq ON outcomes(batch_id, seq);
	CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateBatch inserts a new harvest batch
func (s *postgresStorage) CreateBatch(ctx context.Context, batch *domain.HarvestBatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO harvest_batches (id, label, status, target_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, batch.ID, batch.Label, batch.Status, batch.TargetCount, batch.CreatedAt, batch.UpdatedAt)
	return err
}

// UpdateBatchStatus sets the status of a batch
func (s *postgresStorage) UpdateBatchStatus(ctx context.Context, batchID string, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE harvest_batches SET status = $1, updated_at = $2 WHERE id = $3
	`, status, time.Now(), batchID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("batch " + batchID)
	}
	return nil
}

// GetBatch retrieves a batch by ID
func (s *postgresStorage) GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error) {
	var b domain.HarvestBatch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, status, target_count, created_at, updated_at
		FROM harvest_batches WHERE id = $1
	`, batchID).Scan(&b.ID, &b.Label, &b.Status, &b.TargetCount, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("batch " + batchID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBatches retrieves the most recent batches, newest first
func (s *postgresStorage) ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, status, target_count, created_at, updated_at
		FROM harvest_batches
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*domain.HarvestBatch
	for rows.Next() {
		var b domain.HarvestBatch
		if err := rows.Scan(&b.ID, &b.Label, &b.Status, &b.TargetCount, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, &b)
	}
	return batches, rows.Err()
}

// SaveOutcomes stores outcomes for a batch, appending after any already saved
func (s *postgresStorage) SaveOutcomes(ctx context.Context, batchID string, outcomes []*domain.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM outcomes WHERE batch_id = $1`, batchID).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (batch_id, seq, repo, status, score, run_url, conclusion, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (batch_id, repo) DO UPDATE SET
			seq = EXCLUDED.seq,
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			run_url = EXCLUDED.run_url,
			conclusion = EXCLUDED.conclusion,
			detail = EXCLUDED.detail
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range outcomes {
		var detail sql.NullString
		if len(o.Detail) > 0 {
			detail = sql.NullString{String: string(o.Detail), Valid: true}
		}
		_, err = stmt.ExecContext(ctx,
			batchID,
			next+i,
			o.Repo,
			string(o.Status),
			o.Score,
			o.RunURL,
			o.RunConclusion,
			detail,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOutcomes retrieves the outcomes of a batch in saved order
func (s *postgresStorage) GetOutcomes(ctx context.Context, batchID string) ([]*domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repo, status, score, run_url, conclusion, detail
		FROM outcomes WHERE batch_id = $1
		ORDER BY seq
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var status string
		var detail sql.NullString
		if err := rows.Scan(&o.Repo, &status, &o.Score, &o.RunURL, &o.RunConclusion, &detail); err != nil {
			return nil, err
		}
		o.Status = domain.OutcomeStatus(status)
		if detail.Valid {
			o.Detail = []byte(detail.String)
		}
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
