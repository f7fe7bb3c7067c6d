package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/XC0R/aide/internal/config"
	aideerrors "github.com/XC0R/aide/internal/errors"
	"github.com/XC0R/aide/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Format: logging.HumanFormat, Level: logging.ErrorLevel})
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSessionLifecycle(t *testing.T) {
	store := openTestStore(t)

	session := NewSession("auth-flow", "map the login path")
	if err := store.CreateSession(session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	loaded, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if loaded.Name != "auth-flow" || loaded.Status != StatusActive {
		t.Errorf("loaded = %+v", loaded)
	}

	session.MarkCompleted()
	if err := store.UpdateSession(session); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	loaded, err = store.GetSession(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusCompleted || loaded.CompletedAt == nil {
		t.Errorf("after completion: %+v", loaded)
	}
}

func TestStoreGetSessionNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSession("no-such-id")
	if aideerrors.CodeOf(err) != aideerrors.SessionNotFound {
		t.Errorf("got %v, want SessionNotFound", err)
	}
}

func TestStoreStepsSequencing(t *testing.T) {
	store := openTestStore(t)

	session := NewSession("seq", "")
	if err := store.CreateSession(session); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		step := NewStep(session.ID, "scan", fmt.Sprintf("file%d.go", i), "ok", time.Millisecond)
		if err := store.AppendStep(step); err != nil {
			t.Fatalf("AppendStep %d: %v", i, err)
		}
	}

	steps, err := store.Steps(session.ID)
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("got %d steps", len(steps))
	}
	for i, step := range steps {
		if step.Seq != i+1 {
			t.Errorf("step %d seq = %d", i, step.Seq)
		}
	}
}

func TestStoreListRecent(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		s := NewSession(fmt.Sprintf("probe-%d", i), "")
		s.CreatedAt = s.CreatedAt.Add(time.Duration(i) * time.Second)
		if err := store.CreateSession(s); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := store.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions", len(sessions))
	}
	if sessions[0].Name != "probe-2" {
		t.Errorf("newest first expected, got %s", sessions[0].Name)
	}
}

func writeProbeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"internal/auth/login.go":   "package auth\n\nfunc Login() {}\n",
		"internal/auth/token.go":   "package auth\n\nfunc Token() {}\n",
		"internal/session/s.go":    "package session\n",
		"internal/session/s.md":    "# notes\n",
		"internal/.hidden/skip.go": "package hidden\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestRunnerRun(t *testing.T) {
	root := writeProbeWorkspace(t)
	store := openTestStore(t)

	var active, peak int32
	scan := func(ctx context.Context, absPath string) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		if strings.HasSuffix(absPath, "token.go") {
			return "", errors.New("unreadable")
		}
		return "ok", nil
	}

	runner := NewRunner(root, store, scan, RunnerConfig{MaxParallelScans: 2, MaxSteps: 50}, testLogger())
	defer runner.Close()

	session, err := runner.Run(context.Background(), config.ProbeDeclaration{
		Name:    "auth-flow",
		Goal:    "map the login path",
		Roots:   []string{"internal"},
		Include: []string{"*.go"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if session.Status != StatusCompleted {
		t.Errorf("status = %s", session.Status)
	}
	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("observed %d concurrent scans, ceiling is 2", p)
	}

	steps, err := store.Steps(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	// Three .go files (hidden dir skipped, .md filtered) plus the summary.
	if len(steps) != 4 {
		for _, s := range steps {
			t.Logf("step %d %s %s", s.Seq, s.Kind, s.Input)
		}
		t.Fatalf("got %d steps, want 4", len(steps))
	}

	last := steps[len(steps)-1]
	if last.Kind != "summary" || !strings.Contains(last.Output, "scanned 2 files, 1 failed") {
		t.Errorf("summary = %+v", last)
	}

	var failedStep *Step
	for _, s := range steps {
		if strings.HasPrefix(s.Output, "error:") {
			failedStep = s
		}
	}
	if failedStep == nil || !strings.HasSuffix(failedStep.Input, "token.go") {
		t.Errorf("failed scan not recorded: %+v", failedStep)
	}
}

func TestRunnerMaxFilesBudget(t *testing.T) {
	root := writeProbeWorkspace(t)
	store := openTestStore(t)

	runner := NewRunner(root, store, nil, RunnerConfig{MaxParallelScans: 4, MaxSteps: 50}, testLogger())
	defer runner.Close()

	session, err := runner.Run(context.Background(), config.ProbeDeclaration{
		Name:     "capped",
		Roots:    []string{"internal"},
		Include:  []string{"*.go"},
		MaxFiles: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	steps, err := store.Steps(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Errorf("got %d steps, want 1 scan + summary", len(steps))
	}
}

func TestRunnerMissingRootAborts(t *testing.T) {
	store := openTestStore(t)

	runner := NewRunner(t.TempDir(), store, nil, RunnerConfig{MaxParallelScans: 1, MaxSteps: 10}, testLogger())
	defer runner.Close()

	session, err := runner.Run(context.Background(), config.ProbeDeclaration{
		Name:  "ghost",
		Roots: []string{"does/not/exist"},
	})
	if err == nil {
		t.Fatal("missing root did not fail")
	}
	if session.Status != StatusAborted {
		t.Errorf("status = %s, want aborted", session.Status)
	}

	loaded, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusAborted || loaded.Error == "" {
		t.Errorf("persisted session = %+v", loaded)
	}
}

func TestRunnerStepPersistFailureAborts(t *testing.T) {
	root := writeProbeWorkspace(t)
	store := openTestStore(t)

	// Break step persistence while leaving session writes intact.
	if _, err := store.db.Conn().Exec(`DROP TABLE steps`); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(root, store, nil, RunnerConfig{MaxParallelScans: 2, MaxSteps: 10}, testLogger())
	defer runner.Close()

	session, err := runner.Run(context.Background(), config.ProbeDeclaration{
		Name:    "broken-store",
		Roots:   []string{"internal"},
		Include: []string{"*.go"},
	})
	if err == nil {
		t.Fatal("step persistence failure did not fail the run")
	}
	if session.Status != StatusAborted {
		t.Errorf("status = %s, want aborted", session.Status)
	}

	loaded, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Status != StatusAborted || loaded.Error == "" {
		t.Errorf("persisted session = %+v", loaded)
	}
}

func TestRunnerStepDurationExcludesQueueWait(t *testing.T) {
	root := writeProbeWorkspace(t)
	store := openTestStore(t)

	// With one scan slot, later files queue behind the first slow scan.
	// Their recorded durations must not include that wait.
	var first int32
	scan := func(ctx context.Context, absPath string) (string, error) {
		if atomic.CompareAndSwapInt32(&first, 0, 1) {
			time.Sleep(60 * time.Millisecond)
		}
		return "ok", nil
	}

	runner := NewRunner(root, store, scan, RunnerConfig{MaxParallelScans: 1, MaxSteps: 10}, testLogger())
	defer runner.Close()

	session, err := runner.Run(context.Background(), config.ProbeDeclaration{
		Name:    "timing",
		Roots:   []string{"internal"},
		Include: []string{"*.go"},
	})
	if err != nil {
		t.Fatal(err)
	}

	steps, err := store.Steps(session.ID)
	if err != nil {
		t.Fatal(err)
	}

	slow := 0
	for _, s := range steps {
		if s.Kind == "scan" && s.Duration >= 50*time.Millisecond {
			slow++
		}
	}
	if slow > 1 {
		t.Errorf("%d scan steps charged for queue wait, want at most the slow one", slow)
	}
}

func TestExportRoundTrip(t *testing.T) {
	session := NewSession("export", "roundtrip")
	steps := []*Step{
		NewStep(session.ID, "scan", "a.go", "ok", time.Millisecond),
		NewStep(session.ID, "summary", "export", "scanned 1 files, 0 failed", 0),
	}

	for _, compress := range []bool{false, true} {
		var buf bytes.Buffer
		if err := Export(&buf, session, steps, compress); err != nil {
			t.Fatalf("Export(compress=%v): %v", compress, err)
		}

		transcript, err := ReadTranscript(&buf, compress)
		if err != nil {
			t.Fatalf("ReadTranscript(compress=%v): %v", compress, err)
		}
		if transcript.Session.ID != session.ID {
			t.Errorf("session id = %s", transcript.Session.ID)
		}
		if len(transcript.Steps) != 2 {
			t.Errorf("steps = %d", len(transcript.Steps))
		}
	}
}
