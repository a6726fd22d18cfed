package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Run is a workflow run as reported by the Actions API. Name carries the
// run's display title, which is where dispatched jobs embed the correlation
// tag.
type Run struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayTitle string    `json:"display_title"`
	Status       string    `json:"status"`     // queued, in_progress, completed
	Conclusion   string    `json:"conclusion"` // success, failure, cancelled, ...
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	RunStartedAt time.Time `json:"run_started_at"`
}

// Step is one step of a job.
type Step struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  string     `json:"conclusion"`
	Number      int        `json:"number"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Job is one job of a workflow run with its step breakdown.
type Job struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  string     `json:"conclusion"`
	HTMLURL     string     `json:"html_url"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Steps       []Step     `json:"steps"`
}

type runsResponse struct {
	WorkflowRuns []Run `json:"workflow_runs"`
}

type jobsResponse struct {
	Jobs []Job `json:"jobs"`
}

// ListWorkflowRuns returns recent dispatch-triggered runs for the given
// workflow file on the given branch, newest first. The page size is bounded;
// correlation-tag matching only needs the most recent handful of runs.
func (c *Client) ListWorkflowRuns(ctx context.Context, workflow, branch string, perPage int) ([]Run, error) {
	if perPage <= 0 {
		perPage = 10
	}

	q := url.Values{}
	q.Set("event", "workflow_dispatch")
	q.Set("per_page", fmt.Sprintf("%d", perPage))
	if branch != "" {
		q.Set("branch", branch)
	}
	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/runs?%s", c.owner, c.repo, workflow, q.Encode())

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := readBody(resp)
		return nil, fmt.Errorf("list runs: github API status %d: %s", resp.StatusCode, string(body))
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var parsed runsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse runs response: %w", err)
	}
	return parsed.WorkflowRuns, nil
}

// ListRunJobs returns the jobs of a run, including step status breakdowns.
func (c *Client) ListRunJobs(ctx context.Context, runID int64) ([]Job, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/jobs", c.owner, c.repo, runID)

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := readBody(resp)
		return nil, fmt.Errorf("list jobs: github API status %d: %s", resp.StatusCode, string(body))
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	var parsed jobsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse jobs response: %w", err)
	}
	return parsed.Jobs, nil
}

// Title returns the run's display title, falling back to the run name.
func (r *Run) Title() string {
	if r.DisplayTitle != "" {
		return r.DisplayTitle
	}
	return r.Name
}
