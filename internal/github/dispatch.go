package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
)

// dispatchRequest is the workflow-dispatch API body. Inputs must be
// string-typed; the Actions API rejects anything else.
type dispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// DispatchWorkflow triggers a workflow_dispatch event for the given workflow
// file. The call is made exactly once: dispatching is not idempotent, so a
// transient failure is surfaced to the caller instead of silently retried
// (a blind retry could double-trigger the job).
//
// GitHub signals success with 204 and an empty body; anything else is
// returned as a DispatchError carrying the raw response for diagnostics.
func (c *Client) DispatchWorkflow(ctx context.Context, workflow, ref string, inputs map[string]string) error {
	body, err := json.Marshal(dispatchRequest{Ref: ref, Inputs: inputs})
	if err != nil {
		return fmt.Errorf("marshal dispatch body: %w", err)
	}

	path := fmt.Sprintf("/repos/%s/%s/actions/workflows/%s/dispatches", c.owner, c.repo, workflow)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		logger.WithFields(map[string]interface{}{
			"workflow": workflow,
			"ref":      ref,
		}).Info("Workflow dispatched")
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &DispatchError{
		StatusCode: resp.StatusCode,
		Detail:     string(detail),
	}
}
