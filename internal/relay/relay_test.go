package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
	"github.com/yangfeiyang-123/arxiv-relay/internal/docfetch"
)

// captureEmitter records emitted events in order.
type captureEmitter struct {
	events   []string
	payloads []interface{}
}

func (c *captureEmitter) Emit(event string, payload interface{}) error {
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureEmitter) text() string {
	var b strings.Builder
	for i, ev := range c.events {
		if ev == EventToken {
			b.WriteString(c.payloads[i].(TokenEvent).Text)
		}
	}
	return b.String()
}

func (c *captureEmitter) terminal() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1]
}

func testRelay(upstream string) *Relay {
	return New(config.LLMConfig{
		BaseURL:    upstream,
		Model:      "qwen-plus",
		APIKey:     "sk-test",
		MaxHistory: 12,
		Timeout:    10 * time.Second,
	})
}

func sseChunk(w http.ResponseWriter, payload string) {
	fmt.Fprintf(w, "data: %s\n\n", payload)
	w.(http.Flusher).Flush()
}

// TestStreamRoundTrip tests SSE re-framing of a normal upstream stream
func TestStreamRoundTrip(t *testing.T) {
	var gotAuth string
	var gotPayload chatPayload

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		sseChunk(w, `{"choices":[{"delta":{"role":"assistant"}}]}`)
		sseChunk(w, `{"choices":[{"delta":{"content":"Hello"}}]}`)
		sseChunk(w, `{"choices":[{"delta":{"content":" world"}}]}`)
		sseChunk(w, "[DONE]")
	}))
	defer upstream.Close()

	r := testRelay(upstream.URL + "/v1")
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, emitter)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.True(t, gotPayload.Stream)
	assert.Equal(t, "qwen-plus", gotPayload.Model)

	assert.Equal(t, "Hello world", emitter.text())
	assert.Equal(t, EventDone, emitter.terminal())
	// Exactly one terminal event.
	terminals := 0
	for _, ev := range emitter.events {
		if ev == EventDone || ev == EventError {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

// TestStreamZeroTokenFallback tests the streaming to non-streaming retry
func TestStreamZeroTokenFallback(t *testing.T) {
	var streamCalls, plainCalls int

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload chatPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload.Stream {
			streamCalls++
			// Role-only delta followed by DONE: no tokens.
			sseChunk(w, `{"choices":[{"delta":{"role":"assistant"}}]}`)
			sseChunk(w, "[DONE]")
			return
		}
		plainCalls++
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"full answer"}}]}`)
	}))
	defer upstream.Close()

	r := testRelay(upstream.URL)
	emitter := &captureEmitter{}

	fallbacksBefore := testutil.ToFloat64(fallbacksTotal)
	tokensBefore := testutil.ToFloat64(tokensTotal)

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, emitter)
	require.NoError(t, err)

	assert.Equal(t, 1, streamCalls)
	assert.Equal(t, 1, plainCalls)
	assert.Equal(t, "full answer", emitter.text())
	assert.Equal(t, EventDone, emitter.terminal())
	assert.Equal(t, fallbacksBefore+1, testutil.ToFloat64(fallbacksTotal))
	assert.Equal(t, tokensBefore+1, testutil.ToFloat64(tokensTotal))
}

// TestStreamZeroTokenBothTiers tests that an empty fallback is a reported
// error naming the model, not a silent empty answer
func TestStreamZeroTokenBothTiers(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload chatPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload.Stream {
			sseChunk(w, "[DONE]")
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":""}}]}`)
	}))
	defer upstream.Close()

	r := testRelay(upstream.URL)
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, emitter)
	require.NoError(t, err)

	require.Equal(t, EventError, emitter.terminal())
	last := emitter.payloads[len(emitter.payloads)-1].(ErrorEvent)
	assert.Contains(t, last.Message, "qwen-plus")
}

// TestStreamUpstreamFailure tests that a non-OK upstream becomes a terminal
// error event
func TestStreamUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer upstream.Close()

	r := testRelay(upstream.URL)
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, emitter)
	require.NoError(t, err)

	require.Equal(t, EventError, emitter.terminal())
	last := emitter.payloads[len(emitter.payloads)-1].(ErrorEvent)
	assert.Contains(t, last.Message, "401")
}

// TestStreamNoMessages tests the empty-conversation precondition
func TestStreamNoMessages(t *testing.T) {
	r := testRelay("http://unused.invalid")
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "   "}},
	}, emitter)
	require.NoError(t, err)
	assert.Equal(t, []string{EventError}, emitter.events)
}

// fakeDocs serves a canned document, or an error.
type fakeDocs struct {
	doc *docfetch.Document
	err error
}

func (f *fakeDocs) Fetch(ctx context.Context, id string) (*docfetch.Document, error) {
	return f.doc, f.err
}

// TestStreamAugmentation tests that paper context is attached as a system
// message when the conversation references an arXiv ID
func TestStreamAugmentation(t *testing.T) {
	var gotPayload chatPayload

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		sseChunk(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
		sseChunk(w, "[DONE]")
	}))
	defer upstream.Close()

	r := New(config.LLMConfig{
		BaseURL: upstream.URL, Model: "qwen-plus", MaxHistory: 12, Timeout: 10 * time.Second,
	}, WithDocFetcher(&fakeDocs{doc: &docfetch.Document{
		ID: "2501.12345", Title: "A Paper", Markdown: "# A Paper\n\nAbstract text.",
	}}))
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "what does arxiv.org/abs/2501.12345 claim?"}},
	}, emitter)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(gotPayload.Messages), 2)
	assert.Equal(t, "system", gotPayload.Messages[0].Role)
	assert.Contains(t, gotPayload.Messages[0].Content, "Abstract text.")
	assert.Equal(t, EventDone, emitter.terminal())
}

// TestStreamAugmentationFetchFailure tests graceful degradation when the
// paper cannot be fetched
func TestStreamAugmentationFetchFailure(t *testing.T) {
	var gotPayload chatPayload

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		sseChunk(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
		sseChunk(w, "[DONE]")
	}))
	defer upstream.Close()

	r := New(config.LLMConfig{
		BaseURL: upstream.URL, Model: "qwen-plus", MaxHistory: 12, Timeout: 10 * time.Second,
	}, WithDocFetcher(&fakeDocs{err: errors.New("fetch refused")}))
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "explain 2501.12345"}},
		ArxivID:  "2501.12345",
	}, emitter)
	require.NoError(t, err)

	// The conversation went through without a system message.
	assert.Equal(t, "user", gotPayload.Messages[0].Role)
	assert.Equal(t, EventDone, emitter.terminal())
}

// TestStreamMidStreamFailureNoRetry tests that a connection lost after
// tokens were already delivered terminates with an error event and is never
// replayed, so the client-side concatenation stays single-copy
func TestStreamMidStreamFailureNoRetry(t *testing.T) {
	var calls int

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Declare more bytes than are written so the client sees the
		// connection die after the first token.
		w.Header().Set("Content-Length", "100000")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
	}))
	defer upstream.Close()

	r := New(config.LLMConfig{
		BaseURL: upstream.URL, Model: "qwen-plus", MaxHistory: 12, Timeout: 10 * time.Second,
	}, WithDocFetcher(&fakeDocs{doc: &docfetch.Document{
		ID: "2501.12345", Title: "A Paper", Markdown: "Abstract text.",
	}}))
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "explain 2501.12345"}},
		ArxivID:  "2501.12345",
	}, emitter)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "Hello", emitter.text())
	require.Equal(t, EventError, emitter.terminal())
}

// TestStreamAugmentedRetryWithoutContext tests the one bare retry after an
// augmented request is rejected before producing any tokens
func TestStreamAugmentedRetryWithoutContext(t *testing.T) {
	var calls int

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var payload chatPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload.Messages[0].Role == "system" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		sseChunk(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
		sseChunk(w, "[DONE]")
	}))
	defer upstream.Close()

	r := New(config.LLMConfig{
		BaseURL: upstream.URL, Model: "qwen-plus", MaxHistory: 12, Timeout: 10 * time.Second,
	}, WithDocFetcher(&fakeDocs{doc: &docfetch.Document{
		ID: "2501.12345", Title: "A Paper", Markdown: "Abstract text.",
	}}))
	emitter := &captureEmitter{}

	err := r.Stream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "explain 2501.12345"}},
		ArxivID:  "2501.12345",
	}, emitter)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "ok", emitter.text())
	assert.Equal(t, EventDone, emitter.terminal())

	var sawRetryStage bool
	for i, ev := range emitter.events {
		if ev == EventStage && emitter.payloads[i].(StageEvent).Name == "retry" {
			sawRetryStage = true
		}
	}
	assert.True(t, sawRetryStage)
}

// TestChatURL tests endpoint path handling for bare and full base URLs
func TestChatURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.example/v1", "https://api.example/v1/chat/completions"},
		{"https://api.example/v1/", "https://api.example/v1/chat/completions"},
		{"https://api.example/v1/chat/completions", "https://api.example/v1/chat/completions"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChatURL(tt.in))
	}
}
