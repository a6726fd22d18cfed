// Package poller implements log-tailing status polls against GitHub Actions.
// Given a correlation tag it locates the matching workflow run, summarizes
// its jobs and steps, downloads the work job's raw log, and returns the
// marker-protocol extract as an incremental window.
package poller

import (
	"context"
	"strings"

	"github.com/yangfeiyang-123/arxiv-relay/internal/github"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logtail"
)

// defaultWorkStep is the step name fragment identifying the job that emits
// progress markers, used to skip setup and teardown jobs when tailing.
const defaultWorkStep = "summarize"

// runPageSize bounds run discovery; correlation tags only ever match recent
// runs.
const runPageSize = 10

// Actions is the slice of the GitHub client the poller needs.
type Actions interface {
	ListWorkflowRuns(ctx context.Context, workflow, branch string, perPage int) ([]github.Run, error)
	ListRunJobs(ctx context.Context, runID int64) ([]github.Job, error)
	FetchJobLog(ctx context.Context, jobID int64) (string, error)
}

// Request describes one status poll.
type Request struct {
	// Workflow is the workflow file whose runs are searched.
	Workflow string

	// Branch filters run discovery when non-empty.
	Branch string

	// ClientTag is the correlation tag embedded in the run's display title.
	// Callers should always supply it; without a tag matching degrades to
	// the first run matching ArxivID, or the first run at all.
	ClientTag string

	// ArxivID optionally narrows the match.
	ArxivID string

	// SinceLine is the client-held log offset cursor.
	SinceLine int

	// MaxLines bounds the returned window.
	MaxLines int

	// WorkStep overrides the step-name fragment used to pick the log job.
	WorkStep string
}

// StepSummary mirrors a job step for UI progress display.
type StepSummary struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion,omitempty"`
}

// JobSummary mirrors a run job with its step breakdown.
type JobSummary struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Status     string        `json:"status"`
	Conclusion string        `json:"conclusion,omitempty"`
	Steps      []StepSummary `json:"steps"`
}

// RunInfo is the matched run's identity and lifecycle state.
type RunInfo struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion,omitempty"`
	HTMLURL    string `json:"html_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Snapshot is the full result of one poll. It is recomputed from scratch on
// every call; the only state carried between polls is the client's cursor.
type Snapshot struct {
	Found    bool            `json:"found"`
	Run      *RunInfo        `json:"run,omitempty"`
	Jobs     []JobSummary    `json:"jobs,omitempty"`
	LiveLogs *logtail.Window `json:"live_logs,omitempty"`
}

// Poller performs status polls using an Actions client.
type Poller struct {
	actions Actions
}

// New creates a Poller.
func New(actions Actions) *Poller {
	return &Poller{actions: actions}
}

// Poll runs discovery, job enumeration, log retrieval and windowing for one
// request. A run that has not appeared yet is reported as found=false, not
// as an error; that is the expected state right after dispatch.
func (p *Poller) Poll(ctx context.Context, req Request) (*Snapshot, error) {
	runs, err := p.actions.ListWorkflowRuns(ctx, req.Workflow, req.Branch, runPageSize)
	if err != nil {
		return nil, err
	}

	run := MatchRun(runs, req.ClientTag, req.ArxivID)
	if run == nil {
		return &Snapshot{Found: false}, nil
	}

	jobs, err := p.actions.ListRunJobs(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Found: true,
		Run: &RunInfo{
			ID:         run.ID,
			Title:      run.Title(),
			Status:     run.Status,
			Conclusion: run.Conclusion,
			HTMLURL:    run.HTMLURL,
			CreatedAt:  run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:  run.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		Jobs: summarizeJobs(jobs),
	}

	logJob := PickLogJob(jobs, workStep(req))
	if logJob == nil {
		return snapshot, nil
	}

	text, err := p.actions.FetchJobLog(ctx, logJob.ID)
	if err != nil {
		// The run and job breakdown are still useful; log delivery lags
		// behind job state and may not be available yet.
		logger.WithFields(map[string]interface{}{
			"run_id": run.ID,
			"job_id": logJob.ID,
			"error":  err.Error(),
		}).Debug("Job log not retrievable yet")
		return snapshot, nil
	}

	window := logtail.ParseMarkers(text).Slice(req.SinceLine, req.MaxLines)
	snapshot.LiveLogs = &window
	return snapshot, nil
}

// MatchRun selects the first run whose display title contains the tag
// (case-insensitive) and, when given, the identifier. Matching is a
// substring heuristic: two concurrent dispatches with overlapping tags can
// collide, which is why dispatchers embed a random suffix in the tag.
func MatchRun(runs []github.Run, clientTag, arxivID string) *github.Run {
	tag := strings.ToLower(strings.TrimSpace(clientTag))
	id := strings.ToLower(strings.TrimSpace(arxivID))

	for i := range runs {
		title := strings.ToLower(runs[i].Title())
		if tag != "" {
			if strings.Contains(title, tag) && (id == "" || strings.Contains(title, id)) {
				return &runs[i]
			}
			continue
		}
		if id != "" {
			if strings.Contains(title, id) {
				return &runs[i]
			}
			continue
		}
		return &runs[i]
	}
	return nil
}

// PickLogJob chooses which job's log to tail. Jobs whose steps include the
// work step win, then jobs named after it, then the first job: setup and
// teardown jobs precede the one that emits markers.
func PickLogJob(jobs []github.Job, step string) *github.Job {
	if len(jobs) == 0 {
		return nil
	}
	needle := strings.ToLower(step)

	for i := range jobs {
		for _, s := range jobs[i].Steps {
			if strings.Contains(strings.ToLower(s.Name), needle) {
				return &jobs[i]
			}
		}
	}
	for i := range jobs {
		if strings.Contains(strings.ToLower(jobs[i].Name), needle) {
			return &jobs[i]
		}
	}
	return &jobs[0]
}

func workStep(req Request) string {
	if req.WorkStep != "" {
		return req.WorkStep
	}
	return defaultWorkStep
}

func summarizeJobs(jobs []github.Job) []JobSummary {
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		steps := make([]StepSummary, 0, len(j.Steps))
		for _, s := range j.Steps {
			steps = append(steps, StepSummary{
				Name:       s.Name,
				Status:     s.Status,
				Conclusion: s.Conclusion,
			})
		}
		out = append(out, JobSummary{
			ID:         j.ID,
			Name:       j.Name,
			Status:     j.Status,
			Conclusion: j.Conclusion,
			Steps:      steps,
		})
	}
	return out
}
