package logtail

// Window is an incremental slice of the recognized log lines, keyed by a
// client-held line offset.
type Window struct {
	TotalLines    int      `json:"total_lines"`
	FromLine      int      `json:"from_line"`
	Lines         []string `json:"lines"`
	Truncated     bool     `json:"truncated"`
	LatestStatus  string   `json:"latest_status,omitempty"`
	FinalMarkdown string   `json:"final_markdown,omitempty"`
}

// DefaultMaxLines bounds a single window when the caller does not say.
const DefaultMaxLines = 200

// Slice returns the window [since, since+max) over the extract's lines.
// since is clamped to [0, total], so an offset past the end yields an empty
// but valid window: duplicate and out-of-order polls are safe reads.
func (e Extract) Slice(since, max int) Window {
	total := len(e.Lines)

	if since < 0 {
		since = 0
	}
	if since > total {
		since = total
	}
	if max <= 0 {
		max = DefaultMaxLines
	}

	end := since + max
	if end > total {
		end = total
	}

	lines := make([]string, end-since)
	copy(lines, e.Lines[since:end])

	return Window{
		TotalLines:    total,
		FromLine:      since,
		Lines:         lines,
		Truncated:     since+max < total,
		LatestStatus:  e.LatestStatus,
		FinalMarkdown: e.FinalMarkdown,
	}
}
