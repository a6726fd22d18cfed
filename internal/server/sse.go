package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
)

// sseEmitter writes relay events as SSE blocks, flushing after every event
// so tokens reach the client without buffering delay.
type sseEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEEmitter(w http.ResponseWriter, flusher http.Flusher) *sseEmitter {
	return &sseEmitter{w: w, flusher: flusher}
}

// Emit sends one named event. Write failures mean the client is gone; the
// error propagates so the relay stops producing.
func (e *sseEmitter) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"event": event,
			"error": err.Error(),
		}).Error("Failed to marshal SSE event")
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
