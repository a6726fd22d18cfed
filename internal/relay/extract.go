package relay

import "encoding/json"

// Providers behind OpenAI-compatible endpoints disagree on where generated
// text lives in a chunk. Extraction walks a fixed list of known shapes and
// takes the first that yields text, so a new provider variant degrades to
// "no token" rather than a parse failure.
type extractor func(map[string]interface{}) (string, bool)

var extractors = []extractor{
	tryDeltaContent,
	tryDeltaText,
	tryMessageContent,
	tryChoiceText,
	tryOutputText,
}

// ExtractToken pulls generated text out of one upstream JSON payload.
// Returns ok=false for heartbeats, role-only deltas and unknown shapes.
func ExtractToken(data []byte) (string, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", false
	}
	for _, try := range extractors {
		if text, ok := try(obj); ok {
			return text, true
		}
	}
	return "", false
}

// tryDeltaContent handles the standard streaming shape:
// choices[0].delta.content.
func tryDeltaContent(obj map[string]interface{}) (string, bool) {
	delta, ok := firstChoiceField(obj, "delta")
	if !ok {
		return "", false
	}
	return contentString(delta["content"])
}

// tryDeltaText handles providers that stream choices[0].delta.text.
func tryDeltaText(obj map[string]interface{}) (string, bool) {
	delta, ok := firstChoiceField(obj, "delta")
	if !ok {
		return "", false
	}
	return contentString(delta["text"])
}

// tryMessageContent handles non-streaming completions:
// choices[0].message.content.
func tryMessageContent(obj map[string]interface{}) (string, bool) {
	msg, ok := firstChoiceField(obj, "message")
	if !ok {
		return "", false
	}
	return contentString(msg["content"])
}

// tryChoiceText handles legacy completion shapes: choices[0].text.
func tryChoiceText(obj map[string]interface{}) (string, bool) {
	choice, ok := firstChoice(obj)
	if !ok {
		return "", false
	}
	return contentString(choice["text"])
}

// tryOutputText handles responses-API style payloads with a top-level
// output_text field.
func tryOutputText(obj map[string]interface{}) (string, bool) {
	return contentString(obj["output_text"])
}

func firstChoice(obj map[string]interface{}) (map[string]interface{}, bool) {
	choices, ok := obj["choices"].([]interface{})
	if !ok || len(choices) == 0 {
		return nil, false
	}
	choice, ok := choices[0].(map[string]interface{})
	return choice, ok
}

func firstChoiceField(obj map[string]interface{}, field string) (map[string]interface{}, bool) {
	choice, ok := firstChoice(obj)
	if !ok {
		return nil, false
	}
	inner, ok := choice[field].(map[string]interface{})
	return inner, ok
}

// contentString accepts both plain string content and the segmented
// [{"type":"text","text":...}] form some providers emit.
func contentString(v interface{}) (string, bool) {
	switch c := v.(type) {
	case string:
		if c == "" {
			return "", false
		}
		return c, true
	case []interface{}:
		var out string
		for _, part := range c {
			m, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				out += text
			}
		}
		if out == "" {
			return "", false
		}
		return out, true
	default:
		return "", false
	}
}
