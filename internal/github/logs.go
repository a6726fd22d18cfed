package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
)

// FetchJobLog downloads the raw log text for a job.
//
// The logs endpoint answers with a 302 to a short-lived signed URL. The
// redirect is followed manually, exactly one hop, and the second request
// carries no Authorization header: the signed URL is its own credential and
// forwarding the API token to that host would leak it.
func (c *Client) FetchJobLog(ctx context.Context, jobID int64) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/jobs/%d/logs", c.owner, c.repo, jobID)

	noRedirect := &http.Client{
		Timeout: c.httpClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	var location string
	resp, err := c.doWithRetryOn(ctx, noRedirect, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, path, nil)
	})
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently ||
		resp.StatusCode == http.StatusTemporaryRedirect:
		location = resp.Header.Get("Location")
		resp.Body.Close()
		if location == "" {
			return "", fmt.Errorf("log redirect without Location header")
		}
	case resp.StatusCode == http.StatusOK:
		// Some deployments serve the log body directly.
		body, err := readBody(resp)
		if err != nil {
			return "", err
		}
		return string(body), nil
	default:
		body, _ := readBody(resp)
		return "", fmt.Errorf("fetch job log: github API status %d: %s", resp.StatusCode, string(body))
	}

	logger.WithField("job_id", jobID).Debug("Following signed log URL")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", fmt.Errorf("create signed URL request: %w", err)
	}
	req.Header.Set("User-Agent", "arxiv-relay")

	signedResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewTransientError(fmt.Errorf("fetch signed log URL: %w", err))
	}

	if signedResp.StatusCode != http.StatusOK {
		body, _ := readBody(signedResp)
		return "", NewTransientError(fmt.Errorf("signed log URL status %d: %s", signedResp.StatusCode, string(body)))
	}

	body, err := readBody(signedResp)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
