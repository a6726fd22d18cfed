package relay

import "testing"

// TestExtractToken tests the known upstream payload shapes
func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   string
		wantOK bool
	}{
		{
			name:   "streaming delta content",
			data:   `{"choices":[{"delta":{"content":"hi"}}]}`,
			want:   "hi",
			wantOK: true,
		},
		{
			name:   "streaming delta text variant",
			data:   `{"choices":[{"delta":{"text":"hi"}}]}`,
			want:   "hi",
			wantOK: true,
		},
		{
			name:   "non-streaming message content",
			data:   `{"choices":[{"message":{"role":"assistant","content":"full"}}]}`,
			want:   "full",
			wantOK: true,
		},
		{
			name:   "legacy completion text",
			data:   `{"choices":[{"text":"legacy"}]}`,
			want:   "legacy",
			wantOK: true,
		},
		{
			name:   "top-level output_text",
			data:   `{"output_text":"resp"}`,
			want:   "resp",
			wantOK: true,
		},
		{
			name:   "segmented content parts",
			data:   `{"choices":[{"message":{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}}]}`,
			want:   "ab",
			wantOK: true,
		},
		{
			name: "role-only delta yields nothing",
			data: `{"choices":[{"delta":{"role":"assistant"}}]}`,
		},
		{
			name: "empty content yields nothing",
			data: `{"choices":[{"delta":{"content":""}}]}`,
		},
		{
			name: "empty choices yields nothing",
			data: `{"choices":[]}`,
		},
		{
			name: "unknown shape yields nothing",
			data: `{"result":{"answer":"hidden"}}`,
		},
		{
			name: "invalid json yields nothing",
			data: `not json`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractToken([]byte(tt.data))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestTrimMessages tests history bounding and empty-message dropping
func TestTrimMessages(t *testing.T) {
	msgs := []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: ""},
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "  "},
		{Role: "user", Content: "two"},
	}

	got := TrimMessages(msgs, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "one" || got[1].Content != "two" {
		t.Errorf("kept wrong messages: %+v", got)
	}

	// Zero limit keeps everything non-empty.
	if got := TrimMessages(msgs, 0); len(got) != 3 {
		t.Errorf("unlimited len = %d, want 3", len(got))
	}
}

// TestLastUserContent tests user-turn lookup for reference detection
func TestLastUserContent(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: "second"},
	}
	if got := LastUserContent(msgs); got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
	if got := LastUserContent(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
