// Package logtail extracts structured progress from unstructured CI log text.
//
// Job scripts follow the Live Log Marker Protocol: progress is printed as
// "[LIVE] <text>" lines, model output previews as "[MODEL] <text>" lines, and
// the final deliverable is wrapped between "[FINAL_BEGIN]" and "[FINAL_END]"
// sentinel lines. Everything else in the log is noise and is discarded.
package logtail

import (
	"regexp"
	"strings"
)

// Marker strings the protocol recognizes.
const (
	markerLive       = "[LIVE]"
	markerModel      = "[MODEL]"
	markerFinalBegin = "[FINAL_BEGIN]"
	markerFinalEnd   = "[FINAL_END]"
)

var (
	// ansiRe matches ANSI escape sequences (colors, cursor control).
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

	// timestampRe matches the ISO timestamp prefix GitHub prepends to every
	// log line, e.g. "2024-01-01T00:00:00.0000000Z ".
	timestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z?\s+`)
)

// Extract is the structured subset parsed out of a raw log.
type Extract struct {
	// Lines holds every recognized marker line, cleaned, in log order. The
	// final block's content is not included here.
	Lines []string

	// LatestStatus is the trailing text of the last [LIVE] line seen.
	LatestStatus string

	// FinalMarkdown is the text between the final-block sentinels, if the
	// log contains a complete or still-open block.
	FinalMarkdown string
}

// CleanLine strips ANSI escapes and the leading timestamp from a log line.
func CleanLine(line string) string {
	line = ansiRe.ReplaceAllString(line, "")
	line = timestampRe.ReplaceAllString(line, "")
	return strings.TrimRight(line, " \t\r")
}

// ParseMarkers scans raw log text and extracts the marker-protocol subset.
// It is a pure function of the text, so repeated polls over the same log
// produce identical results.
func ParseMarkers(text string) Extract {
	var out Extract
	var finalLines []string
	inFinal := false

	for _, raw := range strings.Split(text, "\n") {
		line := CleanLine(raw)
		trimmed := strings.TrimSpace(line)

		if trimmed == markerFinalBegin {
			inFinal = true
			continue
		}
		if trimmed == markerFinalEnd {
			inFinal = false
			continue
		}
		if inFinal {
			finalLines = append(finalLines, line)
			continue
		}

		if idx := strings.Index(line, markerLive); idx >= 0 {
			status := strings.TrimSpace(line[idx+len(markerLive):])
			if status != "" {
				out.LatestStatus = status
			}
			out.Lines = append(out.Lines, strings.TrimSpace(line))
			continue
		}
		if strings.Contains(line, markerModel) {
			out.Lines = append(out.Lines, strings.TrimSpace(line))
		}
	}

	out.FinalMarkdown = strings.TrimSpace(strings.Join(finalLines, "\n"))
	return out
}
