package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/grading-harvester/internal/aggregator"
	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

const defaultBatchLimit = 20

// Handler handles API requests
type Handler struct {
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(agg aggregator.Aggregator) *Handler {
	return &Handler{
		aggregator: agg,
	}
}

// ListBatches returns the most recent harvest batches
// GET /api/v1/batches?limit=N
func (h *Handler) ListBatches(c *gin.Context) {
	limit := defaultBatchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, apperrors.NewBadRequestError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	batches, err := h.aggregator.ListBatches(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if batches == nil {
		batches = []*domain.HarvestBatch{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": batches,
	})
}

// GetBatch returns a single harvest batch
// GET /api/v1/batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.aggregator.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": batch,
	})
}

// GetOutcomes returns the outcomes of a batch
// GET /api/v1/batches/:id/outcomes?status=...
func (h *Handler) GetOutcomes(c *gin.Context) {
	status := domain.OutcomeStatus(c.Query("status"))
	if status != "" && !knownStatus(status) {
		respondError(c, apperrors.NewBadRequestError("unknown status: "+string(status)))
		return
	}

	outcomes, err := h.aggregator.GetOutcomes(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	if outcomes == nil {
		outcomes = []*domain.Outcome{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": outcomes,
	})
}

// GetSummary returns status counts and score statistics for a batch
// GET /api/v1/batches/:id/summary
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.aggregator.GetBatchSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summary,
	})
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func knownStatus(s domain.OutcomeStatus) bool {
	for _, known := range domain.AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
