package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Flusher is implemented by writers that buffer, such as http.ResponseWriter.
type Flusher interface {
	Flush()
}

// WriteNDJSON writes every line from lines to w, one JSON object per line,
// flushing after each. It returns the first write error; the caller should
// then Detach the emitter. It returns nil when lines is closed.
func WriteNDJSON(w io.Writer, lines <-chan Line) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	flusher, _ := w.(Flusher)
	for line := range lines {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write stream line: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}

// ReadNDJSON decodes a stream written by WriteNDJSON.
func ReadNDJSON(r io.Reader) ([]Line, error) {
	var out []Line
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var line Line
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return out, fmt.Errorf("decode stream line: %w", err)
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// Collect drains lines into a slice.
func Collect(lines <-chan Line) []Line {
	var out []Line
	for line := range lines {
		out = append(out, line)
	}
	return out
}
