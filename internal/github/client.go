// Package github provides a minimal GitHub Actions REST client for the
// relay: workflow dispatch, run and job listing, and raw job-log download.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
)

// maxResponseSize limits API response bodies to prevent memory exhaustion.
const maxResponseSize = 20 * 1024 * 1024 // 20MB

// Retry policy for read-only Actions API calls. Dispatch is never retried.
const (
	maxAttempts  = 4
	backoffSlice = 400 * time.Millisecond
)

// Client talks to the GitHub Actions REST API for one repository.
type Client struct {
	baseURL    string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithBaseURL points the client at a different API host, typically a test
// server.
func WithBaseURL(baseURL string) Option {
	return func(client *Client) {
		client.baseURL = baseURL
	}
}

// NewClient creates a client for the given repository.
func NewClient(owner, repo, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: "https://api.github.com",
		owner:   owner,
		repo:    repo,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newRequest builds an authenticated API request.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", "arxiv-relay")
	return req, nil
}

// doWithRetry executes an idempotent request, retrying 429 and 5xx responses
// with linear backoff. Any other non-2xx status is terminal for the call.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	return c.doWithRetryOn(ctx, c.httpClient, build)
}

// doWithRetryOn is doWithRetry against a specific HTTP client, used where
// redirect handling must differ from the default client.
func (c *Client) doWithRetryOn(ctx context.Context, httpClient *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = NewTransientError(fmt.Errorf("github request failed: %w", err))
		} else if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			lastErr = NewTransientError(fmt.Errorf("github API status %d: %s", resp.StatusCode, string(body)))
		} else {
			return resp, nil
		}

		if attempt < maxAttempts {
			backoff := backoffSlice * time.Duration(attempt)
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   lastErr.Error(),
			}).Debug("Retrying GitHub API call")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, lastErr
}

// readBody reads a bounded response body and closes it.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}
	return data, nil
}
