package relay

import (
	"strings"
	"testing"
)

// TestScanStream tests SSE block parsing against upstream quirks
func TestScanStream(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "plain blocks",
			body: "data: {\"a\":1}\n\ndata: {\"a\":2}\n\ndata: [DONE]\n\n",
			want: []string{`{"a":1}`, `{"a":2}`},
		},
		{
			name: "crlf line endings",
			body: "data: one\r\n\r\ndata: [DONE]\r\n\r\n",
			want: []string{"one"},
		},
		{
			name: "multiple data lines join with newline",
			body: "data: line1\ndata: line2\n\n",
			want: []string{"line1\nline2"},
		},
		{
			name: "event and comment lines ignored",
			body: "event: message\n: keepalive\ndata: payload\n\n",
			want: []string{"payload"},
		},
		{
			name: "no space after colon",
			body: "data:tight\n\n",
			want: []string{"tight"},
		},
		{
			name: "missing trailing blank line still flushes",
			body: "data: last",
			want: []string{"last"},
		},
		{
			name: "done stops delivery",
			body: "data: before\n\ndata: [DONE]\n\ndata: after\n\n",
			want: []string{"before"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			err := scanStream(strings.NewReader(tt.body), func(data []byte) error {
				got = append(got, string(data))
				return nil
			})
			if err != nil {
				t.Fatalf("scanStream error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
