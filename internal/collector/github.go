package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/grading-harvester/internal/domain"
	apperrors "github.com/kurihiro0119/grading-harvester/internal/errors"
)

const runsPerPage = 100

// workflowRunsPage is one page of the runs listing. go-github's WorkflowRun
// does not carry the workflow file path, which run selection filters on.
type workflowRunsPage struct {
	TotalCount   int `json:"total_count"`
	WorkflowRuns []struct {
		github.WorkflowRun
		Path string `json:"path"`
	} `json:"workflow_runs"`
}

// githubForge implements Forge using the GitHub REST API
type githubForge struct {
	client      *github.Client
	download    *http.Client
	token       string
	rateLimiter RateLimiter
}

// Option configures the GitHub forge during construction
type Option func(*forgeConfig) error

type forgeConfig struct {
	baseURL     string
	rateLimiter RateLimiter
	download    *http.Client
}

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(u string) Option {
	return func(cfg *forgeConfig) error {
		cfg.baseURL = u
		return nil
	}
}

// WithRateLimiter replaces the default rate limiter
func WithRateLimiter(r RateLimiter) Option {
	return func(cfg *forgeConfig) error {
		cfg.rateLimiter = r
		return nil
	}
}

// WithDownloadClient overrides the HTTP client used for archive downloads
func WithDownloadClient(c *http.Client) Option {
	return func(cfg *forgeConfig) error {
		cfg.download = c
		return nil
	}
}

// NewGitHubForge creates a forge client authenticated with token
func NewGitHubForge(token string, opts ...Option) (Forge, error) {
	cfg := &forgeConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if cfg.baseURL != "" {
		base := cfg.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", cfg.baseURL, err)
		}
		client.BaseURL = u
	}

	if cfg.rateLimiter == nil {
		cfg.rateLimiter = NewRateLimiter(100 * time.Millisecond)
	}
	if cfg.download == nil {
		// The archive URL redirects to blob storage; net/http drops the
		// Authorization header when the redirect leaves the API host.
		cfg.download = &http.Client{Timeout: 5 * time.Minute}
	}

	return &githubForge{
		client:      client,
		download:    cfg.download,
		token:       token,
		rateLimiter: cfg.rateLimiter,
	}, nil
}

// GetRepository retrieves repository metadata
func (f *githubForge) GetRepository(ctx context.Context, owner, name string) (*domain.Repository, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	repo, resp, err := f.client.Repositories.Get(ctx, owner, name)
	f.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, wrapForgeError(fmt.Sprintf("get repository %s/%s", owner, name), err)
	}

	return &domain.Repository{
		Owner:     owner,
		Name:      name,
		FullName:  repo.GetFullName(),
		IsPrivate: repo.GetPrivate(),
		HTMLURL:   repo.GetHTMLURL(),
		FetchedAt: time.Now(),
	}, nil
}

// ListRunsForCommit retrieves workflow runs whose head commit is sha
func (f *githubForge) ListRunsForCommit(ctx context.Context, owner, name, sha string) ([]*domain.Run, error) {
	var allRuns []*domain.Run
	page := 1

	for {
		if err := f.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("head_sha", sha)
		q.Set("per_page", fmt.Sprintf("%d", runsPerPage))
		q.Set("page", fmt.Sprintf("%d", page))
		path := fmt.Sprintf("repos/%s/%s/actions/runs?%s", owner, name, q.Encode())

		req, err := f.client.NewRequest(http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		var runs workflowRunsPage
		resp, err := f.client.Do(ctx, req, &runs)
		f.updateRateLimitFromResponse(resp)
		if err != nil {
			return nil, wrapForgeError(fmt.Sprintf("list runs for %s/%s", owner, name), err)
		}

		for i := range runs.WorkflowRuns {
			run := &runs.WorkflowRuns[i]
			allRuns = append(allRuns, &domain.Run{
				ID:           run.GetID(),
				WorkflowPath: run.Path,
				Status:       run.GetStatus(),
				Conclusion:   run.GetConclusion(),
				UpdatedAt:    run.GetUpdatedAt().Time,
				ArtifactsURL: run.GetArtifactsURL(),
				HTMLURL:      run.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	return allRuns, nil
}

// ListArtifacts retrieves the artifact listing at artifactsURL
func (f *githubForge) ListArtifacts(ctx context.Context, artifactsURL string) ([]*domain.Artifact, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := f.client.NewRequest(http.MethodGet, artifactsURL, nil)
	if err != nil {
		return nil, err
	}

	var list github.ArtifactList
	resp, err := f.client.Do(ctx, req, &list)
	f.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, wrapForgeError("list artifacts", err)
	}

	artifacts := make([]*domain.Artifact, 0, len(list.Artifacts))
	for _, a := range list.Artifacts {
		artifacts = append(artifacts, &domain.Artifact{
			ID:          a.GetID(),
			Name:        a.GetName(),
			SizeInBytes: a.GetSizeInBytes(),
			DownloadURL: a.GetArchiveDownloadURL(),
			Expired:     a.GetExpired(),
		})
	}
	return artifacts, nil
}

// DownloadArtifact fetches the archive at downloadURL
func (f *githubForge) DownloadArtifact(ctx context.Context, downloadURL string) ([]byte, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.download.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError("download artifact", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.NewTransportError("download artifact",
			fmt.Errorf("%s - %s", resp.Status, strings.TrimSpace(string(body))))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportError("read artifact body", err)
	}
	return data, nil
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (f *githubForge) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 {
		f.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}

// wrapForgeError classifies a go-github error
func wrapForgeError(operation string, err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeRateLimited,
			Message: operation + ": rate limited",
			Err:     err,
		}
	}
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound {
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeNotFound,
			Message: operation + ": not found",
			Err:     err,
		}
	}
	return apperrors.NewTransportError(operation, err)
}
