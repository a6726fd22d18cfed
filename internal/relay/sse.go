package relay

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// doneSentinel terminates an OpenAI-compatible SSE stream.
const doneSentinel = "[DONE]"

// scanStream reads an upstream SSE body and invokes fn once per event with
// the joined data payload. Blocks are separated by blank lines; multiple
// data: lines within a block concatenate with newlines per the SSE spec.
// Returns nil on [DONE] or clean EOF.
func scanStream(r io.Reader, fn func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data bytes.Buffer

	flush := func() error {
		if data.Len() == 0 {
			return nil
		}
		payload := data.Bytes()
		data.Reset()
		if strings.TrimSpace(string(payload)) == doneSentinel {
			return io.EOF
		}
		return fn(payload)
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if line == "" {
			if err := flush(); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(value, " "))
		}
		// event:, id:, retry: and comment lines are irrelevant upstream.
	}

	if err := flush(); err != nil && err != io.EOF {
		return err
	}
	return scanner.Err()
}
