package docfetch

import "testing"

// TestDetectID tests arXiv reference recognition in free text
func TestDetectID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare modern id",
			in:   "what does 2501.12345 claim?",
			want: "2501.12345",
		},
		{
			name: "versioned id keeps base",
			in:   "see 2501.12345v2 please",
			want: "2501.12345",
		},
		{
			name: "abs url",
			in:   "https://arxiv.org/abs/2408.00001",
			want: "2408.00001",
		},
		{
			name: "pdf url drops extension",
			in:   "read http://arxiv.org/pdf/2408.00001.pdf now",
			want: "2408.00001",
		},
		{
			name: "url wins over other numbers",
			in:   "in 2024 the paper https://arxiv.org/abs/2408.00001 said",
			want: "2408.00001",
		},
		{
			name: "legacy id",
			in:   "classic work cs.CL/0301001 from 2003",
			want: "cs.CL/0301001",
		},
		{
			name: "no reference",
			in:   "what is the weather like",
			want: "",
		},
		{
			name: "version date is not an id",
			in:   "released 10.5 years ago",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectID(tt.in); got != tt.want {
				t.Errorf("DetectID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestAbsURL tests canonical abstract URL construction
func TestAbsURL(t *testing.T) {
	if got := AbsURL("2501.12345"); got != "https://arxiv.org/abs/2501.12345" {
		t.Errorf("AbsURL = %q", got)
	}
}
