package scale

import (
	"bytes"
	"strings"
)

// maxLineBytes bounds a raw line. Longer lines are dropped whole, so the
// output does not depend on how the stream was chunked.
const maxLineBytes = 4096

// Reassembler turns a stream of byte chunks into trimmed, non-empty lines.
// A trailing fragment without a newline is held until the next chunk.
type Reassembler struct {
	pending    []byte
	discarding bool
}

// Feed appends chunk and returns every line completed by it
func (r *Reassembler) Feed(chunk []byte) []string {
	var lines []string

	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			if !r.discarding {
				r.pending = append(r.pending, chunk...)
				if len(r.pending) > maxLineBytes {
					r.pending = r.pending[:0]
					r.discarding = true
				}
			}
			break
		}

		segment := chunk[:idx]
		chunk = chunk[idx+1:]

		if r.discarding {
			r.discarding = false
			continue
		}

		if len(r.pending)+len(segment) > maxLineBytes {
			r.pending = r.pending[:0]
			continue
		}

		raw := append(r.pending, segment...)
		r.pending = r.pending[:0]

		line := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

// Pending returns the buffered fragment that has not been terminated yet
func (r *Reassembler) Pending() string {
	return string(r.pending)
}
