// Package docfetch recognizes arXiv references in chat messages and fetches
// the paper's abstract page as markdown context for the model.
package docfetch

import (
	"regexp"
	"strings"
)

var (
	// Modern arXiv identifiers: YYMM.NNNNN with an optional version tag.
	newIDRe = regexp.MustCompile(`\b(\d{4}\.\d{4,5})(v\d+)?\b`)

	// Legacy identifiers like cs.CL/0301001.
	oldIDRe = regexp.MustCompile(`\b([a-z-]+(?:\.[A-Z]{2})?/\d{7})(v\d+)?\b`)

	// Any arxiv.org URL variant: abs, pdf, html.
	urlRe = regexp.MustCompile(`https?://(?:www\.)?arxiv\.org/(?:abs|pdf|html)/([^\s)\]>"']+)`)
)

// DetectID scans free text for an arXiv reference and returns the bare
// identifier, or "" when none is present. URLs win over bare identifiers so
// that a pasted link is honored even when the surrounding prose contains
// unrelated number patterns.
func DetectID(text string) string {
	if m := urlRe.FindStringSubmatch(text); m != nil {
		id := strings.TrimSuffix(m[1], ".pdf")
		return strings.TrimRight(id, "/.,;")
	}
	if m := newIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := oldIDRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// AbsURL returns the canonical abstract page URL for an identifier.
func AbsURL(id string) string {
	return "https://arxiv.org/abs/" + id
}
