// Package edits applies streamed assistant edit hunks to open documents,
// serialized per document and bounded globally.
package edits

import (
	"fmt"
	"strings"
	"sync"

	aideerrors "github.com/XC0R/aide/internal/errors"
)

// Hunk is one streamed edit: replace Count lines starting at Start with
// Lines. Count 0 inserts before Start. Start is 1-based; Start = lineCount+1
// with Count 0 appends at the end of the document.
type Hunk struct {
	// BaseVersion is the document version the hunk was computed against.
	BaseVersion int `json:"baseVersion"`

	Start int      `json:"start"`
	Count int      `json:"count"`
	Lines []string `json:"lines"`
}

// Document is a minimal service-side text buffer: content as lines plus a
// version counter bumped on every applied hunk. It is not the host editor's
// text model.
type Document struct {
	mu      sync.Mutex
	path    string
	lines   []string
	version int
	dirty   bool
}

// NewDocument creates a document from its current content.
func NewDocument(path, content string) *Document {
	return &Document{
		path:  path,
		lines: splitLines(content),
	}
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	// A trailing newline produces one phantom empty element.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Path returns the document's file path.
func (d *Document) Path() string {
	return d.path
}

// Version returns the current document version. Version 0 is the content
// the document was opened with.
func (d *Document) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Content returns the document text with a trailing newline when non-empty.
func (d *Document) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lines) == 0 {
		return ""
	}
	return strings.Join(d.lines, "\n") + "\n"
}

// Dirty reports whether the document has unflushed edits.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// MarkFlushed clears the dirty flag after a successful write-out.
func (d *Document) MarkFlushed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
}

// Apply applies a hunk. Hunks computed against an older document version
// are rejected with a STALE_HUNK error; out-of-bounds ranges with
// RANGE_INVALID. On success the version increments by one.
func (d *Document) Apply(h Hunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h.BaseVersion != d.version {
		return aideerrors.New(aideerrors.StaleHunk,
			fmt.Sprintf("hunk base version %d, document %s at %d", h.BaseVersion, d.path, d.version), nil).
			WithRemediation("recompute the edit against the current document")
	}
	if h.Start < 1 || h.Count < 0 || h.Start+h.Count-1 > len(d.lines) || h.Start > len(d.lines)+1 {
		return aideerrors.New(aideerrors.RangeInvalid,
			fmt.Sprintf("hunk start %d count %d outside document %s (%d lines)", h.Start, h.Count, d.path, len(d.lines)), nil)
	}

	start := h.Start - 1
	end := start + h.Count

	replaced := make([]string, 0, len(d.lines)-h.Count+len(h.Lines))
	replaced = append(replaced, d.lines[:start]...)
	replaced = append(replaced, h.Lines...)
	replaced = append(replaced, d.lines[end:]...)

	d.lines = replaced
	d.version++
	d.dirty = true
	return nil
}
