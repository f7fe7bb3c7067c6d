package edits

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// EventType identifies a streamed edit event.
type EventType string

const (
	// EventMeta opens a stream with session metadata.
	EventMeta EventType = "meta"
	// EventHunk carries one edit hunk for one document.
	EventHunk EventType = "hunk"
	// EventDone closes the stream cleanly.
	EventDone EventType = "done"
	// EventError aborts the stream with a producer-side failure.
	EventError EventType = "error"
)

// Event is one line of an edit stream, encoded as JSON lines.
type Event struct {
	Type EventType `json:"type"`

	// Doc is the workspace-relative document path (hunk events).
	Doc string `json:"doc,omitempty"`

	// Hunk is the edit payload (hunk events).
	Hunk *Hunk `json:"hunk,omitempty"`

	// TotalHunks is an optional hint (meta events).
	TotalHunks int `json:"totalHunks,omitempty"`

	// Message carries the failure description (error events).
	Message string `json:"message,omitempty"`
}

// Decoder reads edit events from a JSON-lines stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder creates a decoder for r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	// Hunks can carry whole rewritten files.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next event, io.EOF at end of stream.
func (d *Decoder) Next() (*Event, error) {
	for d.scanner.Scan() {
		d.line++
		raw := d.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("edit stream line %d: %w", d.line, err)
		}

		switch ev.Type {
		case EventMeta, EventDone, EventError:
		case EventHunk:
			if ev.Doc == "" || ev.Hunk == nil {
				return nil, fmt.Errorf("edit stream line %d: hunk event missing doc or hunk", d.line)
			}
		default:
			return nil, fmt.Errorf("edit stream line %d: unknown event type %q", d.line, ev.Type)
		}
		return &ev, nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
