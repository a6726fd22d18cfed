package poller

import "strings"

// DisplayStatus derives the single human-readable progress line for a
// snapshot. Precedence: the latest marker-protocol status, then the name of
// the step currently executing, then the run's coarse lifecycle state.
func DisplayStatus(s *Snapshot) string {
	if s == nil || !s.Found {
		return "waiting for run"
	}
	if s.LiveLogs != nil && s.LiveLogs.LatestStatus != "" {
		return s.LiveLogs.LatestStatus
	}
	if step := activeStep(s.Jobs); step != "" {
		return step
	}
	return coarseStatus(s.Run)
}

func activeStep(jobs []JobSummary) string {
	for _, j := range jobs {
		for _, st := range j.Steps {
			if st.Status == "in_progress" {
				return st.Name
			}
		}
	}
	return ""
}

func coarseStatus(run *RunInfo) string {
	if run == nil {
		return "waiting for run"
	}
	switch run.Status {
	case "completed":
		if run.Conclusion != "" {
			return "completed: " + run.Conclusion
		}
		return "completed"
	case "queued":
		return "queued"
	case "in_progress":
		return "running"
	default:
		if run.Status != "" {
			return strings.ReplaceAll(run.Status, "_", " ")
		}
		return "pending"
	}
}
