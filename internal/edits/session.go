package edits

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/XC0R/aide/internal/limiter"
	"github.com/XC0R/aide/internal/logging"
)

// SessionConfig controls a streamed edit session.
type SessionConfig struct {
	// MaxParallelApplies bounds how many documents apply hunks concurrently.
	MaxParallelApplies int
	// FlushDebounce is the quiet period before a dirty document is written
	// back to disk mid-stream. Zero disables debounced flushing; documents
	// are then written only when the stream completes.
	FlushDebounce time.Duration
}

// Session consumes a stream of edit hunks and applies them to workspace
// files. Hunks for one document apply strictly in stream order; distinct
// documents proceed in parallel under the shared concurrency ceiling.
type Session struct {
	root   string
	cfg    SessionConfig
	logger *logging.Logger

	shared *limiter.Limiter

	mu   sync.Mutex
	docs map[string]*openDoc
}

type openDoc struct {
	doc      *Document
	queue    *limiter.Limiter
	debounce *flushDebouncer
}

// HunkFailure records one hunk that could not be applied.
type HunkFailure struct {
	Doc   string `json:"doc"`
	Start int    `json:"start"`
	Error string `json:"error"`
}

// Summary reports the outcome of a completed session.
type Summary struct {
	Documents int           `json:"documents"`
	Applied   int           `json:"applied"`
	Failures  []HunkFailure `json:"failures,omitempty"`
}

// NewSession creates an edit session rooted at the workspace directory.
func NewSession(root string, cfg SessionConfig, logger *logging.Logger) *Session {
	if cfg.MaxParallelApplies < 1 {
		cfg.MaxParallelApplies = 1
	}
	return &Session{
		root:   root,
		cfg:    cfg,
		logger: logger.With("edits"),
		shared: limiter.New(cfg.MaxParallelApplies),
		docs:   make(map[string]*openDoc),
	}
}

// open returns the session's buffer for a document, reading it from disk on
// first use. A missing file opens as an empty document (file creation).
func (s *Session) open(docPath string) (*openDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if od, ok := s.docs[docPath]; ok {
		return od, nil
	}

	content := ""
	data, err := os.ReadFile(filepath.Join(s.root, docPath))
	if err == nil {
		content = string(data)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	od := &openDoc{
		doc:   NewDocument(docPath, content),
		queue: limiter.NewSerializer(),
	}
	if s.cfg.FlushDebounce > 0 {
		od.debounce = newFlushDebouncer(s.cfg.FlushDebounce)
	}
	s.docs[docPath] = od
	return od, nil
}

// ApplyHunk queues one hunk for a document and returns its future. The
// per-document serializer preserves stream order; the actual apply runs
// under the shared ceiling.
func (s *Session) ApplyHunk(ctx context.Context, docPath string, h Hunk) (*limiter.Future, error) {
	od, err := s.open(docPath)
	if err != nil {
		return nil, err
	}

	future := od.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		inner := s.shared.Submit(ctx, func(ctx context.Context) (interface{}, error) {
			if err := od.doc.Apply(h); err != nil {
				return nil, err
			}
			if od.debounce != nil {
				od.debounce.Trigger(func() {
					if err := s.flush(od); err != nil {
						s.logger.Warn("Debounced flush failed", logging.Fields{
							"doc":   od.doc.Path(),
							"error": err.Error(),
						})
					}
				})
			}
			return nil, nil
		})
		return inner.Result()
	})
	return future, nil
}

// Run decodes an edit stream and applies it, returning a per-hunk summary.
// A producer error event aborts the stream; hunks already queued still
// settle, and documents already modified keep their edits.
func (s *Session) Run(ctx context.Context, r io.Reader) (*Summary, error) {
	type tracked struct {
		doc    string
		start  int
		future *limiter.Future
	}

	decoder := NewDecoder(r)
	var futures []tracked

stream:
	for {
		ev, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch ev.Type {
		case EventMeta:
			s.logger.Debug("Edit stream opened", logging.Fields{
				"totalHunks": ev.TotalHunks,
			})
		case EventHunk:
			future, err := s.ApplyHunk(ctx, ev.Doc, *ev.Hunk)
			if err != nil {
				return nil, fmt.Errorf("opening %s: %w", ev.Doc, err)
			}
			futures = append(futures, tracked{doc: ev.Doc, start: ev.Hunk.Start, future: future})
		case EventError:
			return nil, fmt.Errorf("edit stream aborted by producer: %s", ev.Message)
		case EventDone:
			break stream
		}
	}

	summary := &Summary{}
	for _, tr := range futures {
		if _, err := tr.future.Wait(ctx); err != nil {
			summary.Failures = append(summary.Failures, HunkFailure{
				Doc:   tr.doc,
				Start: tr.start,
				Error: err.Error(),
			})
			continue
		}
		summary.Applied++
	}

	if err := s.shared.WhenDrained(ctx); err != nil {
		return summary, err
	}
	if err := s.FlushAll(); err != nil {
		return summary, err
	}

	s.mu.Lock()
	summary.Documents = len(s.docs)
	s.mu.Unlock()

	return summary, nil
}

// FlushAll writes every dirty document back to disk.
func (s *Session) FlushAll() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	docs := make([]*openDoc, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, s.docs[p])
	}
	s.mu.Unlock()

	for _, od := range docs {
		if od.debounce != nil {
			od.debounce.Cancel()
		}
		if err := s.flush(od); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) flush(od *openDoc) error {
	if !od.doc.Dirty() {
		return nil
	}

	target := filepath.Join(s.root, od.doc.Path())
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".aide-edit-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(od.doc.Content()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}

	od.doc.MarkFlushed()
	s.logger.Debug("Flushed document", logging.Fields{
		"doc":     od.doc.Path(),
		"version": od.doc.Version(),
	})
	return nil
}

// Close disposes the session's queues. Queued-but-unstarted hunks settle
// with a cancellation error.
func (s *Session) Close() {
	s.mu.Lock()
	docs := make([]*openDoc, 0, len(s.docs))
	for _, od := range s.docs {
		docs = append(docs, od)
	}
	s.mu.Unlock()

	for _, od := range docs {
		if od.debounce != nil {
			od.debounce.Cancel()
		}
		od.queue.Dispose()
	}
	s.shared.Dispose()
}
