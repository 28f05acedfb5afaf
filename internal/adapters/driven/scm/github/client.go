// Package github fetches pull request diff stats via the GitHub API.
// Only file paths and add/delete counts are fetched; PR body text is never
// retrieved so untrusted description content stays out of prompts.
package github

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

const (
	defaultTimeout = 30 * time.Second

	// perPage caps one listing page; summaries are capped upstream anyway.
	perPage = 100
)

// Client wraps go-github for PR file summaries. Implements
// driven.PRFilesFetcher.
type Client struct {
	gh *gh.Client
}

var _ driven.PRFilesFetcher = (*Client)(nil)

// NewClient creates a GitHub API client authenticated with a token.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: github token required", domain.ErrInvalidInput)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = defaultTimeout

	return &Client{gh: gh.NewClient(tc)}, nil
}

// NewClientWithBaseURL creates a client against a non-default API endpoint.
// Used by tests and GitHub Enterprise installations.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	c, err := NewClient(token)
	if err != nil {
		return nil, err
	}
	enterprise, err := c.gh.WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("setting base URL: %w", err)
	}
	c.gh = enterprise
	return c, nil
}

// FileSummaries returns one "path (+adds/-dels)" line per changed file.
func (c *Client) FileSummaries(ctx context.Context, owner, repo string, number int) ([]string, error) {
	if owner == "" || repo == "" || number <= 0 {
		return nil, fmt.Errorf("%w: owner, repo and PR number required", domain.ErrInvalidInput)
	}

	var summaries []string
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s/%s#%d", domain.ErrNotFound, owner, repo, number)
			}
			return nil, fmt.Errorf("listing PR files: %w", err)
		}
		for _, f := range files {
			summaries = append(summaries, fmt.Sprintf("%s (+%d/-%d)",
				f.GetFilename(), f.GetAdditions(), f.GetDeletions()))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return summaries, nil
}
