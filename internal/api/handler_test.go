package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/kurihiro0119/grading-harvester/internal/aggregator"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAggregator serves a single fixed batch
type fakeAggregator struct {
	batch     *domain.HarvestBatch
	outcomes  []*domain.Outcome
	lastLimit int
}

func (f *fakeAggregator) StartBatch(context.Context, string, int) (*domain.HarvestBatch, error) {
	return nil, apperrors.NewInternalError("read only", nil)
}

func (f *fakeAggregator) RecordOutcomes(context.Context, string, []*domain.Outcome) error {
	return apperrors.NewInternalError("read only", nil)
}

func (f *fakeAggregator) FinishBatch(context.Context, string, string) error {
	return apperrors.NewInternalError("read only", nil)
}

func (f *fakeAggregator) GetBatch(_ context.Context, id string) (*domain.HarvestBatch, error) {
	if id != f.batch.ID {
		return nil, apperrors.NewNotFoundError("batch " + id)
	}
	return f.batch, nil
}

func (f *fakeAggregator) ListBatches(_ context.Context, limit int) ([]*domain.HarvestBatch, error) {
	f.lastLimit = limit
	return []*domain.HarvestBatch{f.batch}, nil
}

func (f *fakeAggregator) GetOutcomes(ctx context.Context, id string, status domain.OutcomeStatus) ([]*domain.Outcome, error) {
	if _, err := f.GetBatch(ctx, id); err != nil {
		return nil, err
	}
	var out []*domain.Outcome
	for _, o := range f.outcomes {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeAggregator) GetBatchSummary(ctx context.Context, id string) (*domain.BatchSummary, error) {
	outcomes, err := f.GetOutcomes(ctx, id, "")
	if err != nil {
		return nil, err
	}
	return aggregator.Summarize(id, outcomes), nil
}

func newTestRouter() (*gin.Engine, *fakeAggregator) {
	created := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	agg := &fakeAggregator{
		batch: &domain.HarvestBatch{ID: "b1", Label: "mp1", Status: domain.BatchStatusCompleted, TargetCount: 3, CreatedAt: created, UpdatedAt: created},
		outcomes: []*domain.Outcome{
			{Repo: "o/a", Status: domain.StatusSuccess, Score: 87, RunURL: "https://github.test/run/1", RunConclusion: "success"},
			{Repo: "o/b", Status: domain.StatusPublicRepoPenalty, RunURL: "https://github.test/o/b"},
			{Repo: "o/c", Status: domain.StatusNoRun},
		},
	}
	return SetupRoutes(NewHandler(agg)), agg
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter()
	rec := get(t, router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListBatches(t *testing.T) {
	router, agg := newTestRouter()

	rec := get(t, router, "/api/v1/batches?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Data []*domain.HarvestBatch `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*domain.HarvestBatch{agg.batch}, body.Data); diff != "" {
		t.Errorf("batches (-want +got):\n%s", diff)
	}
	if agg.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", agg.lastLimit)
	}

	if rec := get(t, router, "/api/v1/batches?limit=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestGetBatch_NotFound(t *testing.T) {
	router, _ := newTestRouter()
	rec := get(t, router, "/api/v1/batches/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != string(apperrors.ErrCodeNotFound) {
		t.Errorf("error code = %q", body.Error.Code)
	}
}

func TestGetOutcomes_StatusFilter(t *testing.T) {
	router, _ := newTestRouter()

	rec := get(t, router, "/api/v1/batches/b1/outcomes?status=Public+Repo+Penalty")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var body struct {
		Data []*domain.Outcome `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Data) != 1 || body.Data[0].Repo != "o/b" {
		t.Errorf("outcomes = %+v", body.Data)
	}

	if rec := get(t, router, "/api/v1/batches/b1/outcomes?status=Bogus"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status code = %d, want 400", rec.Code)
	}
}

func TestGetSummary(t *testing.T) {
	router, _ := newTestRouter()

	rec := get(t, router, "/api/v1/batches/b1/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Data domain.BatchSummary `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Data.Total != 3 || body.Data.ScoredCount != 1 || body.Data.MeanScore != 87 {
		t.Errorf("summary = %+v", body.Data)
	}
	if body.Data.ByStatus[domain.StatusNoRun] != 1 {
		t.Errorf("by status = %v", body.Data.ByStatus)
	}
}
