package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/yangfeiyang-123/arxiv-relay/internal/dispatch"
	"github.com/yangfeiyang-123/arxiv-relay/internal/github"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
	"github.com/yangfeiyang-123/arxiv-relay/internal/poller"
	"github.com/yangfeiyang-123/arxiv-relay/internal/relay"
)

// Non-dispatch actions served by the envelope endpoint.
const (
	actionStatus     = "status"
	actionChatStream = "chat_stream"
	aliasChat        = "chat"
)

// maxEnvelopeSize bounds the inbound request body.
const maxEnvelopeSize = 1 << 20

// actionEnvelope is the single inbound request shape. Dispatch fields are
// promoted from the payload; the rest belong to status and chat actions.
type actionEnvelope struct {
	dispatch.Payload

	// Status poll fields.
	Target    string `json:"target,omitempty"`
	SinceLine int    `json:"since_line,omitempty"`
	MaxLines  int    `json:"max_lines,omitempty"`

	// Chat fields.
	Messages  []relay.Message `json:"messages,omitempty"`
	NoContext bool            `json:"no_context,omitempty"`
}

// actionHandler serves the action envelope endpoint. Validation order is
// fixed: method, then origin, then server configuration, then the action
// itself. Configuration problems surface as 500 regardless of payload so
// clients can tell deployment faults from their own mistakes.
func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		s.preflightHandler(w, r)
		return
	}
	if r.Method != http.MethodPost {
		s.applyCORS(w, r)
		w.Header().Set("Allow", "POST, OPTIONS")
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.originAllowed(r.Header.Get("Origin")) {
		s.applyCORS(w, r)
		s.respondError(w, http.StatusForbidden, "origin not allowed")
		return
	}
	s.applyCORS(w, r)

	var env actionEnvelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEnvelopeSize)).Decode(&env); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	action := dispatch.Canonicalize(strings.TrimSpace(env.Action))
	switch action {
	case actionChatStream, aliasChat:
		s.handleChat(w, r, env)
	case actionStatus:
		if !s.cfg.GitHubConfigured() || s.poller == nil {
			s.respondError(w, http.StatusInternalServerError, "server is missing GitHub configuration")
			return
		}
		s.handleStatus(w, r, env)
	default:
		if !s.cfg.GitHubConfigured() || s.dispatcher == nil {
			s.respondError(w, http.StatusInternalServerError, "server is missing GitHub configuration")
			return
		}
		s.handleDispatch(w, r, env)
	}
}

// handleDispatch validates and triggers one workflow run. The GitHub call
// is made exactly once; failures are reported, not retried.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request, env actionEnvelope) {
	req, err := dispatch.Resolve(env.Payload, s.cfg)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownAction) {
			s.respondError(w, http.StatusBadRequest,
				"invalid action, expected one of: "+strings.Join(dispatch.SupportedActions, ", "))
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	observeAction(req.Action)
	err = s.dispatcher.DispatchWorkflow(r.Context(), req.Workflow, req.Ref, req.Inputs)
	observeDispatch(err)
	if err != nil {
		var dispatchErr *github.DispatchError
		detail := err.Error()
		if errors.As(err, &dispatchErr) {
			detail = dispatchErr.Detail
		}
		logger.WithFields(map[string]interface{}{
			"action":   req.Action,
			"workflow": req.Workflow,
			"error":    err.Error(),
		}).Error("Workflow dispatch failed")
		s.respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"ok":     false,
			"error":  "github dispatch failed",
			"detail": detail,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"message":  "workflow dispatched",
		"action":   req.Action,
		"workflow": req.Workflow,
		"ref":      req.Ref,
		"inputs":   req.Inputs,
	})
}

// handleStatus answers one log-tailing poll. Transient polling trouble is
// reported as found=false with a transient_error note, never as a hard
// error: the client's polling loop just tries again.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, env actionEnvelope) {
	observeAction(actionStatus)

	// Honor the same ref override dispatch does, so a run triggered on a
	// non-default ref can be found again.
	branch := strings.TrimSpace(env.Ref)
	if branch == "" {
		branch = s.cfg.GitHub.Ref
	}

	snapshot, err := s.poller.Poll(r.Context(), poller.Request{
		Workflow:  s.resolveWorkflowFile(env.Target),
		Branch:    branch,
		ClientTag: env.ClientTag,
		ArxivID:   env.ArxivID,
		SinceLine: env.SinceLine,
		MaxLines:  env.MaxLines,
	})
	if err != nil {
		pollTransientTotal.Inc()
		logger.WithError(err).Warn("Status poll failed")
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"ok":              true,
			"found":           false,
			"transient_error": err.Error(),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"found":          snapshot.Found,
		"run":            snapshot.Run,
		"jobs":           snapshot.Jobs,
		"live_logs":      snapshot.LiveLogs,
		"display_status": poller.DisplayStatus(snapshot),
	})
}

// handleChat upgrades the response to SSE and streams the relayed chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, env actionEnvelope) {
	observeAction(actionChatStream)

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emitter := newSSEEmitter(w, flusher)
	err := s.relay.Stream(r.Context(), relay.ChatRequest{
		Messages:       env.Messages,
		BaseURL:        env.BaseURL,
		Model:          env.Model,
		ArxivID:        env.ArxivID,
		DisableContext: env.NoContext,
	}, emitter)
	if err != nil && r.Context().Err() == nil {
		logger.WithError(err).Warn("Chat stream aborted")
	}
}

// modelsHandler reports the configured upstream defaults so clients can
// populate a model picker without hardcoding.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	s.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		s.preflightHandler(w, r)
		return
	}
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"base_url_default":   s.cfg.LLM.BaseURL,
		"recommended_models": s.cfg.LLM.RecommendedModels,
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"github_configured": s.cfg.GitHubConfigured(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	logger.WithFields(map[string]interface{}{
		"status_code":   statusCode,
		"error_message": message,
	}).Debug("Sending error response")

	s.respondJSON(w, statusCode, map[string]interface{}{
		"ok":    false,
		"error": message,
	})
}
