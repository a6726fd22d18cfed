// Package dispatch maps client actions onto GitHub workflow dispatches. It
// validates the action and its payload, resolves the target workflow file,
// and builds the flat string-keyed input map the Actions API requires.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
)

// Canonical action names, plus the short aliases the original worker
// accepted. Both forms are routed identically.
const (
	ActionUpdate       = "dispatch_update"
	ActionSummarizeNew = "dispatch_summarize_new"
	ActionSummarizeOne = "dispatch_summarize_one"

	aliasUpdate       = "update"
	aliasSummarizeNew = "summarize_new"
	aliasSummarizeOne = "summarize_one"
)

// SupportedActions lists the dispatchable actions for error responses.
var SupportedActions = []string{aliasUpdate, aliasSummarizeNew, aliasSummarizeOne}

// ErrUnknownAction is returned for actions outside the routing table.
var ErrUnknownAction = errors.New("invalid action")

// Payload carries the action-specific fields of the inbound envelope.
type Payload struct {
	Action        string `json:"action"`
	Ref           string `json:"ref,omitempty"`
	ArxivID       string `json:"arxiv_id,omitempty"`
	Mode          string `json:"mode,omitempty"`
	N             int    `json:"n,omitempty"`
	LatestDayOnly *bool  `json:"latest_day_only,omitempty"`
	DailyReport   *bool  `json:"daily_report,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	Model         string `json:"model,omitempty"`
	ClientTag     string `json:"client_tag,omitempty"`
	Persist       *bool  `json:"persist,omitempty"`
}

// Request is a validated, resolved dispatch ready to send.
type Request struct {
	Action   string
	Workflow string
	Ref      string
	Inputs   map[string]string
}

// Canonicalize maps aliases onto canonical action names. Unknown actions are
// returned unchanged; ResolveWorkflow rejects them.
func Canonicalize(action string) string {
	switch action {
	case aliasUpdate:
		return ActionUpdate
	case aliasSummarizeNew:
		return ActionSummarizeNew
	case aliasSummarizeOne:
		return ActionSummarizeOne
	default:
		return action
	}
}

// ResolveWorkflow returns the workflow file for an action. The two summarize
// variants share one workflow; they differ only in inputs.
func ResolveWorkflow(action string, gh config.GitHubConfig) (string, error) {
	switch Canonicalize(action) {
	case ActionUpdate:
		return gh.UpdateWorkflow, nil
	case ActionSummarizeNew, ActionSummarizeOne:
		return gh.SummarizeWorkflow, nil
	default:
		return "", ErrUnknownAction
	}
}

// Resolve validates a payload and builds the dispatch request. Validation
// happens before any side effect: an invalid payload never reaches the
// Actions API.
func Resolve(p Payload, cfg *config.Config) (*Request, error) {
	workflow, err := ResolveWorkflow(p.Action, cfg.GitHub)
	if err != nil {
		return nil, err
	}

	action := Canonicalize(p.Action)
	inputs, err := buildInputs(action, p, cfg.LLM)
	if err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(p.Ref)
	if ref == "" {
		ref = cfg.GitHub.Ref
	}

	return &Request{
		Action:   action,
		Workflow: workflow,
		Ref:      ref,
		Inputs:   inputs,
	}, nil
}

// buildInputs flattens the payload into the string-only input map. Every
// dispatch carries the correlation tag and a persistence flag so the
// downstream job reports back in a way the status poller can locate.
func buildInputs(action string, p Payload, llm config.LLMConfig) (map[string]string, error) {
	baseURL := strings.TrimSpace(p.BaseURL)
	if baseURL == "" {
		baseURL = llm.BaseURL
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		model = llm.Model
	}

	inputs := map[string]string{}

	switch action {
	case ActionSummarizeNew:
		n := p.N
		if n <= 0 {
			n = 30
		}
		inputs["target"] = "new"
		inputs["n"] = fmt.Sprintf("%d", n)
		inputs["mode"] = normalizeMode(p.Mode, "fast")
		inputs["latest_day_only"] = boolInput(p.LatestDayOnly, true)
		inputs["daily_report"] = boolInput(p.DailyReport, true)
		inputs["base_url"] = baseURL
		inputs["model"] = model

	case ActionSummarizeOne:
		arxivID := strings.TrimSpace(p.ArxivID)
		if arxivID == "" {
			return nil, errors.New("arxiv_id is required for summarize_one")
		}
		inputs["target"] = "one"
		inputs["arxiv_id"] = arxivID
		inputs["mode"] = normalizeMode(p.Mode, "deep")
		inputs["base_url"] = baseURL
		inputs["model"] = model

	case ActionUpdate:
		// The update workflow takes no job parameters.
	}

	if tag := strings.TrimSpace(p.ClientTag); tag != "" {
		inputs["client_tag"] = tag
	}
	inputs["persist"] = boolInput(p.Persist, true)

	return inputs, nil
}

// normalizeMode collapses mode to deep/fast with a per-action default.
func normalizeMode(mode, fallback string) string {
	switch mode {
	case "deep", "fast":
		return mode
	default:
		return fallback
	}
}

func boolInput(v *bool, fallback bool) string {
	b := fallback
	if v != nil {
		b = *v
	}
	if b {
		return "true"
	}
	return "false"
}
