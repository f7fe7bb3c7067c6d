package edits

import (
	"errors"
	"testing"

	aideerrors "github.com/XC0R/aide/internal/errors"
)

func TestDocumentApplyReplace(t *testing.T) {
	d := NewDocument("main.go", "a\nb\nc\n")

	err := d.Apply(Hunk{BaseVersion: 0, Start: 2, Count: 1, Lines: []string{"B1", "B2"}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got := d.Content(); got != "a\nB1\nB2\nc\n" {
		t.Errorf("content = %q", got)
	}
	if d.Version() != 1 {
		t.Errorf("version = %d, want 1", d.Version())
	}
	if !d.Dirty() {
		t.Error("document not marked dirty")
	}
}

func TestDocumentApplyInsertAndAppend(t *testing.T) {
	d := NewDocument("f.txt", "a\nb\n")

	// Insert before line 1.
	if err := d.Apply(Hunk{BaseVersion: 0, Start: 1, Count: 0, Lines: []string{"top"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Append after the last line.
	if err := d.Apply(Hunk{BaseVersion: 1, Start: 4, Count: 0, Lines: []string{"tail"}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if got := d.Content(); got != "top\na\nb\ntail\n" {
		t.Errorf("content = %q", got)
	}
}

func TestDocumentApplyDeletion(t *testing.T) {
	d := NewDocument("f.txt", "a\nb\nc\n")

	if err := d.Apply(Hunk{BaseVersion: 0, Start: 1, Count: 3}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := d.Content(); got != "" {
		t.Errorf("content = %q, want empty", got)
	}
}

func TestDocumentApplyStaleVersion(t *testing.T) {
	d := NewDocument("f.txt", "a\n")

	if err := d.Apply(Hunk{BaseVersion: 0, Start: 1, Count: 1, Lines: []string{"a2"}}); err != nil {
		t.Fatal(err)
	}

	err := d.Apply(Hunk{BaseVersion: 0, Start: 1, Count: 1, Lines: []string{"a3"}})
	if err == nil {
		t.Fatal("stale hunk applied")
	}
	if aideerrors.CodeOf(err) != aideerrors.StaleHunk {
		t.Errorf("code = %v, want StaleHunk", aideerrors.CodeOf(err))
	}
	// Document unchanged by the rejected hunk.
	if got := d.Content(); got != "a2\n" {
		t.Errorf("content = %q", got)
	}
}

func TestDocumentApplyRangeValidation(t *testing.T) {
	d := NewDocument("f.txt", "a\nb\n")

	cases := []Hunk{
		{BaseVersion: 0, Start: 0, Count: 1},  // start below 1
		{BaseVersion: 0, Start: 1, Count: 3},  // range past end
		{BaseVersion: 0, Start: 4, Count: 0},  // insertion point past end+1
		{BaseVersion: 0, Start: 2, Count: -1}, // negative count
	}
	for i, h := range cases {
		err := d.Apply(h)
		if err == nil {
			t.Errorf("case %d: invalid range accepted", i)
			continue
		}
		if aideerrors.CodeOf(err) != aideerrors.RangeInvalid {
			t.Errorf("case %d: code = %v, want RangeInvalid", i, aideerrors.CodeOf(err))
		}
	}

	if d.Version() != 0 {
		t.Errorf("version advanced on rejected hunks: %d", d.Version())
	}
}

func TestDocumentEmptyContent(t *testing.T) {
	d := NewDocument("new.txt", "")

	if err := d.Apply(Hunk{BaseVersion: 0, Start: 1, Count: 0, Lines: []string{"first"}}); err != nil {
		t.Fatalf("insert into empty document: %v", err)
	}
	if got := d.Content(); got != "first\n" {
		t.Errorf("content = %q", got)
	}
}

func TestCodedErrorsUnwrap(t *testing.T) {
	d := NewDocument("f.txt", "a\n")
	err := d.Apply(Hunk{BaseVersion: 5, Start: 1, Count: 1})

	var coded *aideerrors.Error
	if !errors.As(err, &coded) {
		t.Fatalf("error is not a coded error: %v", err)
	}
	if coded.Remediation == "" {
		t.Error("stale hunk error has no remediation hint")
	}
}
