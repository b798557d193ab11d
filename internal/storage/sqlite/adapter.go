package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
	"github.com/kurihiro0119/grading-harvester/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS harvest_batches (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		target_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_harvest_batches_created_at ON harvest_batches(created_at);

	CREATE TABLE IF NOT EXISTS outcomes (
		batch_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		repo TEXT NOT NULL,
		status TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		run_url TEXT NOT NULL DEFAULT '',
		conclusion TEXT NOT NULL DEFAULT '',
		detail TEXT,
		PRIMARY KEY (batch_id, repo)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_batch_seq ON outcomes(batch_id, seq);
	CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateBatch inserts a new harvest batch
func (s *sqliteStorage) CreateBatch(ctx context.Context, batch *domain.HarvestBatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO harvest_batches (id, label, status, target_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.Label, batch.Status, batch.TargetCount, batch.CreatedAt, batch.UpdatedAt)
	return err
}

// UpdateBatchStatus sets the status of a batch
func (s *sqliteStorage) UpdateBatchStatus(ctx context.Context, batchID string, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE harvest_batches SET status = ?, updated_at = ? WHERE id = ?
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
func (s *sqliteStorage) GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, status, target_count, created_at, updated_at
		FROM harvest_batches WHERE id = ?
	`, batchID)

	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("batch " + batchID)
	}
	return batch, err
}

// ListBatches retrieves the most recent batches, newest first
func (s *sqliteStorage) ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, status, target_count, created_at, updated_at
		FROM harvest_batches
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*domain.HarvestBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// SaveOutcomes stores outcomes for a batch, appending after any already saved
func (s *sqliteStorage) SaveOutcomes(ctx context.Context, batchID string, outcomes []*domain.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq) + 1, 0) FROM outcomes WHERE batch_id = ?`, batchID).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO outcomes (batch_id, seq, repo, status, score, run_url, conclusion, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range outcomes {
		_, err = stmt.ExecContext(ctx,
			batchID,
			next+i,
			o.Repo,
			string(o.Status),
			o.Score,
			o.RunURL,
			o.RunConclusion,
			nullableDetail(o.Detail),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetOutcomes retrieves the outcomes of a batch in saved order
func (s *sqliteStorage) GetOutcomes(ctx context.Context, batchID string) ([]*domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repo, status, score, run_url, conclusion, detail
		FROM outcomes WHERE batch_id = ?
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
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*domain.HarvestBatch, error) {
	var b domain.HarvestBatch
	if err := row.Scan(&b.ID, &b.Label, &b.Status, &b.TargetCount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func nullableDetail(detail []byte) sql.NullString {
	if len(detail) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(detail), Valid: true}
}
