package relay

// Downstream SSE event names. A stream carries any number of stage, token
// and chunk events and terminates with exactly one done or error.
const (
	EventStage = "stage"
	EventToken = "token"
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// Emitter delivers one named event downstream. Implementations flush after
// every call so tokens reach the client as they arrive.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// StageEvent announces a phase transition in the relay pipeline.
type StageEvent struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// TokenEvent carries one increment of generated text. Clients reconstruct
// the full answer by concatenating tokens in arrival order.
type TokenEvent struct {
	Text string `json:"text"`
}

// ChunkEvent reports progress through multi-part work, such as a document
// processed in segments.
type ChunkEvent struct {
	Index int `json:"index"`
	Total int `json:"total"`
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	OK    bool   `json:"ok"`
	Model string `json:"model,omitempty"`
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
