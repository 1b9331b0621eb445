// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gha talks to the GitHub Actions API: workflow run metadata, job
// lists, job logs, and run artifacts. It is the retrieval side of the
// exporter; everything it returns is plain data for the parsing and tracing
// layers to consume.
package gha

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// maxRedirects bounds redirect following when resolving log and
	// artifact download URLs.
	maxRedirects = 2

	// defaultRequestsPerSecond keeps a busy export under the Actions API
	// secondary rate limits.
	defaultRequestsPerSecond = 10

	// listPageSize is the page size for paginated list calls.
	listPageSize = 100
)

// Client wraps an authenticated GitHub API client with rate limiting.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	uploadURL string
	logger    *slog.Logger
	rps       float64
	burst     int
}

// WithEnterpriseURLs points the client at a GitHub Enterprise instance.
func WithEnterpriseURLs(apiBase, uploadBase string) Option {
	return func(o *clientOptions) {
		o.baseURL = apiBase
		o.uploadURL = uploadBase
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithRateLimit overrides the default API rate limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *clientOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// NewClient creates a GitHub API client. An empty token yields an
// unauthenticated client, which is enough for public repositories.
func NewClient(ctx context.Context, token string, opts ...Option) (*Client, error) {
	options := &clientOptions{
		logger: slog.Default(),
		rps:    defaultRequestsPerSecond,
		burst:  1,
	}
	for _, opt := range opts {
		opt(options)
	}

	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		))
	}

	gh := github.NewClient(httpClient)
	if options.baseURL != "" {
		uploadURL := options.uploadURL
		if uploadURL == "" {
			uploadURL = options.baseURL
		}
		var err error
		gh, err = gh.WithEnterpriseURLs(options.baseURL, uploadURL)
		if err != nil {
			return nil, fmt.Errorf("configure enterprise URLs: %w", err)
		}
	}

	return &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Limit(options.rps), options.burst),
		logger:  options.logger,
	}, nil
}

// wait blocks until the rate limiter admits one more API call.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// GetWorkflowRun fetches metadata for a single workflow run.
func (c *Client) GetWorkflowRun(ctx context.Context, owner, repo string, runID int64) (*github.WorkflowRun, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	run, _, err := c.gh.Actions.GetWorkflowRunByID(ctx, owner, repo, runID)
	if err != nil {
		return nil, fmt.Errorf("get workflow run %d: %w", runID, err)
	}
	return run, nil
}

// ListWorkflowJobs fetches all jobs of a workflow run, following pagination.
// Jobs come back in the order the API lists them, which matches execution
// order for a single run attempt.
func (c *Client) ListWorkflowJobs(ctx context.Context, owner, repo string, runID int64) ([]*github.WorkflowJob, error) {
	var jobs []*github.WorkflowJob
	opts := &github.ListWorkflowJobsOptions{
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := c.gh.Actions.ListWorkflowJobs(ctx, owner, repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("list jobs for run %d: %w", runID, err)
		}
		jobs = append(jobs, page.Jobs...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return jobs, nil
}
