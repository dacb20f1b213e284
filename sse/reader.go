package sse

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Frame is one parsed server-sent event as seen by a client.
type Frame struct {
	// Event is the "event:" field. Empty for data-only frames.
	Event string
	// Data is the "data:" payload; multiple data lines are joined with newlines.
	Data string
	// ID is the "id:" field.
	ID string
}

// Kind returns the frame's event type.
func (f *Frame) Kind() Kind { return Kind(f.Event) }

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next frame. Returns io.EOF when the stream ends.
	Next() (*Frame, error)
	// Close releases the underlying resources.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// DefaultMaxLineSize bounds a single stream line. It matches the server's
// default request body cap, so any user payload the API accepts fits.
const DefaultMaxLineSize = 1 << 20

// NewReader creates an SSE reader over body with DefaultMaxLineSize.
// Comment lines, including heartbeats, are skipped.
func NewReader(body io.ReadCloser) Reader {
	return NewReaderSize(body, DefaultMaxLineSize)
}

// NewReaderSize creates an SSE reader that accepts lines up to maxLine
// bytes. A longer line ends the stream with bufio.ErrTooLong.
func NewReaderSize(body io.ReadCloser, maxLine int) Reader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, min(maxLine, 64<<10)), maxLine)
	return &reader{
		scanner: scanner,
		body:    body,
	}
}

func (r *reader) Next() (*Frame, error) {
	var frame Frame
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if hasData {
				return &frame, nil
			}
			frame = Frame{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "data":
			if hasData {
				frame.Data += "\n" + value
			} else {
				frame.Data = value
				hasData = true
			}
		case "event":
			frame.Event = value
		case "id":
			frame.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("sse: read stream: %w", err)
	}
	if hasData {
		return &frame, nil
	}
	return nil, io.EOF
}

func (r *reader) Close() error {
	return r.body.Close()
}

// splitField splits "field: value", dropping one leading space from value.
func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
