package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
)

// Client is the API client for the grading-harvester results API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is returned for non-200 responses
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error: %d %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error: %d - %s", e.StatusCode, e.Message)
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListBatches retrieves the most recent harvest batches
func (c *Client) ListBatches(ctx context.Context, limit int) ([]*domain.HarvestBatch, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []*domain.HarvestBatch `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/batches", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetBatch retrieves a single harvest batch
func (c *Client) GetBatch(ctx context.Context, batchID string) (*domain.HarvestBatch, error) {
	path := fmt.Sprintf("/api/v1/batches/%s", url.PathEscape(batchID))

	var response struct {
		Data *domain.HarvestBatch `json:"data"`
	}
	if err := c.get(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetOutcomes retrieves the outcomes of a batch. An empty status returns all of them.
func (c *Client) GetOutcomes(ctx context.Context, batchID string, status domain.OutcomeStatus) ([]*domain.Outcome, error) {
	path := fmt.Sprintf("/api/v1/batches/%s/outcomes", url.PathEscape(batchID))
	params := url.Values{}
	if status != "" {
		params.Set("status", string(status))
	}

	var response struct {
		Data []*domain.Outcome `json:"data"`
	}
	if err := c.get(ctx, path, params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetSummary retrieves status counts and score statistics for a batch
func (c *Client) GetSummary(ctx context.Context, batchID string) (*domain.BatchSummary, error) {
	path := fmt.Sprintf("/api/v1/batches/%s/summary", url.PathEscape(batchID))

	var response struct {
		Data *domain.BatchSummary `json:"data"`
	}
	if err := c.get(ctx, path, nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
