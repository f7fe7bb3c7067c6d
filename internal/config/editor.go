package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	aideerrors "github.com/XC0R/aide/internal/errors"
	"github.com/XC0R/aide/internal/limiter"
	"github.com/XC0R/aide/internal/logging"
)

// Editor applies mutually-exclusive edits to the shared settings document.
// Every mutation is a full read-modify-write of .aide/settings.json, queued
// through a serializer so concurrent callers never interleave writes.
type Editor struct {
	path   string
	queue  *limiter.Limiter
	logger *logging.Logger
}

// NewEditor creates a settings editor for the given workspace root.
func NewEditor(workspaceRoot string, logger *logging.Logger) *Editor {
	return &Editor{
		path:   Path(workspaceRoot),
		queue:  limiter.NewSerializer(),
		logger: logger.With("settings"),
	}
}

// SetValue writes value at the dotted key path, creating intermediate
// objects as needed. The call blocks until its queued edit has been applied
// and returns that edit's own error.
func (e *Editor) SetValue(ctx context.Context, keyPath string, value interface{}) error {
	return e.edit(ctx, keyPath, func(parent map[string]interface{}, key string) error {
		parent[key] = value
		return nil
	})
}

// RemoveValue deletes the entry at the dotted key path. Removing a missing
// key is not an error.
func (e *Editor) RemoveValue(ctx context.Context, keyPath string) error {
	return e.edit(ctx, keyPath, func(parent map[string]interface{}, key string) error {
		delete(parent, key)
		return nil
	})
}

// Drain blocks until all queued edits have been applied.
func (e *Editor) Drain(ctx context.Context) error {
	return e.queue.WhenDrained(ctx)
}

// Close disposes the edit queue. Queued-but-unstarted edits settle with a
// cancellation error; the edit in progress finishes its write.
func (e *Editor) Close() {
	e.queue.Dispose()
}

func (e *Editor) edit(ctx context.Context, keyPath string, mutate func(parent map[string]interface{}, key string) error) error {
	segments := strings.Split(keyPath, ".")
	if keyPath == "" || len(segments) == 0 {
		return aideerrors.New(aideerrors.ConfigInvalid, "empty settings key path", nil)
	}

	future := e.queue.Submit(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, e.apply(segments, mutate)
	})

	_, err := future.Result()
	switch err {
	case limiter.ErrDisposed:
		return aideerrors.New(aideerrors.LimiterDisposed, "settings editor closed", err)
	case limiter.ErrCleared:
		return aideerrors.New(aideerrors.TaskCleared, "settings edit dropped before applying", err)
	}
	return err
}

func (e *Editor) apply(segments []string, mutate func(parent map[string]interface{}, key string) error) error {
	doc, err := e.read()
	if err != nil {
		return err
	}

	parent := doc
	for _, seg := range segments[:len(segments)-1] {
		existing, present := parent[seg]
		if present {
			child, ok := existing.(map[string]interface{})
			if !ok {
				return aideerrors.New(aideerrors.ConfigInvalid,
					fmt.Sprintf("settings key %q is not an object", seg), nil)
			}
			parent = child
			continue
		}
		child := make(map[string]interface{})
		parent[seg] = child
		parent = child
	}

	if err := mutate(parent, segments[len(segments)-1]); err != nil {
		return err
	}

	if err := e.write(doc); err != nil {
		return err
	}

	e.logger.Debug("Applied settings edit", logging.Fields{
		"path": strings.Join(segments, "."),
	})
	return nil
}

func (e *Editor) read() (map[string]interface{}, error) {
	data, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return make(map[string]interface{}), nil
	}
	if err != nil {
		return nil, err
	}

	doc := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, aideerrors.New(aideerrors.ConfigInvalid, "settings file is not valid JSON", err).
				WithRemediation("fix or delete " + e.path)
		}
	}
	return doc, nil
}

// write lands the document atomically: marshal, write a sibling temp file,
// rename over the original.
func (e *Editor) write(doc map[string]interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, SettingsFile+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, e.path)
}
