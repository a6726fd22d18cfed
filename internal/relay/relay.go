// Package relay proxies OpenAI-compatible chat completions and re-frames
// the upstream token stream into this system's SSE event vocabulary. It
// optionally augments conversations with fetched arXiv paper content and
// falls back to a non-streaming completion when a stream yields no tokens.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
	"github.com/yangfeiyang-123/arxiv-relay/internal/docfetch"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
)

// maxErrorBody bounds how much of an upstream error response is surfaced.
const maxErrorBody = 200

// DocFetcher retrieves paper content for context augmentation.
type DocFetcher interface {
	Fetch(ctx context.Context, id string) (*docfetch.Document, error)
}

// ChatRequest is one relayed conversation.
type ChatRequest struct {
	Messages []Message

	// BaseURL and Model override the configured defaults when non-empty.
	BaseURL string
	Model   string

	// ArxivID pins context augmentation to a specific paper. When empty the
	// last user message is scanned for a reference.
	ArxivID string

	// DisableContext skips augmentation entirely.
	DisableContext bool
}

// Relay streams chat completions through an upstream provider.
type Relay struct {
	cfg        config.LLMConfig
	httpClient *http.Client
	docs       DocFetcher
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) {
		r.httpClient = c
	}
}

// WithDocFetcher enables arXiv context augmentation.
func WithDocFetcher(d DocFetcher) Option {
	return func(r *Relay) {
		r.docs = d
	}
}

// New creates a Relay.
func New(cfg config.LLMConfig, opts ...Option) *Relay {
	r := &Relay{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stream relays one conversation, emitting stage, token and finally exactly
// one done or error event. The returned error is non-nil only when the
// emitter itself fails or the context is canceled; upstream failures are
// reported to the client as an error event.
func (r *Relay) Stream(ctx context.Context, req ChatRequest, emit Emitter) error {
	msgs := TrimMessages(req.Messages, r.cfg.MaxHistory)
	if len(msgs) == 0 {
		return emit.Emit(EventError, ErrorEvent{Message: "no messages with content"})
	}

	baseURL := strings.TrimSpace(req.BaseURL)
	if baseURL == "" {
		baseURL = r.cfg.BaseURL
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = r.cfg.Model
	}

	plain := msgs
	augmented := false
	if !req.DisableContext {
		msgs, augmented = r.augment(ctx, req, msgs, emit)
	}

	if err := emit.Emit(EventStage, StageEvent{Name: "llm", Message: "contacting " + model}); err != nil {
		return err
	}

	tokens, err := r.streamOnce(ctx, baseURL, model, msgs, emit)
	if err != nil && tokens == 0 && augmented && ctx.Err() == nil {
		// The paper context may have pushed the request over the provider's
		// limits. One retry with the bare conversation. Only when nothing was
		// emitted yet: replaying after delivered tokens would duplicate them.
		logger.WithError(err).Warn("Augmented request failed, retrying without context")
		if e := emit.Emit(EventStage, StageEvent{Name: "retry", Message: "retrying without document context"}); e != nil {
			return e
		}
		tokens, err = r.streamOnce(ctx, baseURL, model, plain, emit)
		msgs = plain
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return emit.Emit(EventError, ErrorEvent{Message: errMessage(err)})
	}

	if tokens == 0 {
		fallbacksTotal.Inc()
		text, ferr := r.completeOnce(ctx, baseURL, model, msgs)
		if ferr != nil || strings.TrimSpace(text) == "" {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WithField("model", model).Warn("Zero tokens from stream and fallback")
			return emit.Emit(EventError, ErrorEvent{
				Message: fmt.Sprintf("model %s returned no output", model),
			})
		}
		tokensTotal.Inc()
		if err := emit.Emit(EventToken, TokenEvent{Text: text}); err != nil {
			return err
		}
	}

	return emit.Emit(EventDone, DoneEvent{OK: true, Model: model})
}

// augment fetches referenced paper content and prepends it as a system
// message. Fetch failures degrade to the unaugmented conversation.
func (r *Relay) augment(ctx context.Context, req ChatRequest, msgs []Message, emit Emitter) ([]Message, bool) {
	if r.docs == nil {
		return msgs, false
	}
	id := strings.TrimSpace(req.ArxivID)
	if id == "" {
		id = docfetch.DetectID(LastUserContent(msgs))
	}
	if id == "" {
		return msgs, false
	}

	if err := emit.Emit(EventStage, StageEvent{Name: "context", Message: "fetching arXiv:" + id}); err != nil {
		return msgs, false
	}

	doc, err := r.docs.Fetch(ctx, id)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"arxiv_id": id,
			"error":    err.Error(),
		}).Warn("Paper fetch failed, continuing without context")
		_ = emit.Emit(EventStage, StageEvent{Name: "context", Message: "paper unavailable, continuing without it"})
		return msgs, false
	}

	label := doc.Title
	if label == "" {
		label = id
	}
	_ = emit.Emit(EventStage, StageEvent{Name: "context", Message: "attached " + label})

	system := Message{
		Role: "system",
		Content: fmt.Sprintf("The user is asking about the following arXiv paper (%s). Use it as reference.\n\n%s",
			id, doc.Markdown),
	}
	return append([]Message{system}, msgs...), true
}

type chatPayload struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// streamOnce performs one streaming completion, emitting a token event per
// extracted increment. Returns how many tokens were emitted.
func (r *Relay) streamOnce(ctx context.Context, baseURL, model string, msgs []Message, emit Emitter) (int, error) {
	resp, err := r.post(ctx, baseURL, chatPayload{Model: model, Messages: msgs, Stream: true})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, upstreamError(resp)
	}

	tokens := 0
	err = scanStream(resp.Body, func(data []byte) error {
		text, ok := ExtractToken(data)
		if !ok {
			return nil
		}
		tokens++
		tokensTotal.Inc()
		return emit.Emit(EventToken, TokenEvent{Text: text})
	})
	return tokens, err
}

// completeOnce performs one non-streaming completion and returns the full
// message content. Used when a stream finishes without producing tokens,
// which some gateways do while still answering non-streaming requests.
func (r *Relay) completeOnce(ctx context.Context, baseURL, model string, msgs []Message) (string, error) {
	resp, err := r.post(ctx, baseURL, chatPayload{Model: model, Messages: msgs, Stream: false})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstreamError(resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	text, _ := ExtractToken(body)
	return text, nil
}

func (r *Relay) post(ctx context.Context, baseURL string, payload chatPayload) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ChatURL(baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if payload.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	return resp, nil
}

// ChatURL appends the chat completions path unless the base URL already
// carries it, so both bare hosts and full endpoint URLs are accepted.
func ChatURL(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	return fmt.Errorf("upstream status %d: %s", resp.StatusCode, detail)
}

func errMessage(err error) string {
	msg := err.Error()
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return msg
}
