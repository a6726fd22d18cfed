package relay

import "strings"

// Message is one chat turn in the OpenAI-compatible wire shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrimMessages drops turns with empty content and keeps only the most recent
// maxHistory turns. Upstream providers reject empty-content messages, and
// unbounded history blows the context window on long conversations.
func TrimMessages(msgs []Message, maxHistory int) []Message {
	kept := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		kept = append(kept, m)
	}
	if maxHistory > 0 && len(kept) > maxHistory {
		kept = kept[len(kept)-maxHistory:]
	}
	return kept
}

// LastUserContent returns the content of the most recent user turn, used for
// arXiv reference detection.
func LastUserContent(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content
		}
	}
	return ""
}
