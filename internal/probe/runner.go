package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/XC0R/aide/internal/config"
	"github.com/XC0R/aide/internal/limiter"
	"github.com/XC0R/aide/internal/logging"
)

// ScanFunc produces the observation for one scanned file. The runner
// supplies the absolute path; the returned string becomes the step output.
type ScanFunc func(ctx context.Context, absPath string) (string, error)

// RunnerConfig controls probe execution.
type RunnerConfig struct {
	// MaxParallelScans bounds how many file scans run concurrently.
	MaxParallelScans int
	// MaxSteps caps the transcript length, summary step included.
	MaxSteps int
}

// Runner executes declared probes: it collects target files, scans them
// through a shared bounded limiter, and records each observation as a
// session step.
type Runner struct {
	root    string
	store   *Store
	scan    ScanFunc
	limiter *limiter.Limiter
	logger  *logging.Logger
	cfg     RunnerConfig
}

// NewRunner creates a probe runner rooted at the workspace directory.
// A nil scan falls back to a line-count observation.
func NewRunner(root string, store *Store, scan ScanFunc, cfg RunnerConfig, logger *logging.Logger) *Runner {
	if cfg.MaxParallelScans < 1 {
		cfg.MaxParallelScans = 1
	}
	if cfg.MaxSteps < 2 {
		cfg.MaxSteps = 2
	}
	if scan == nil {
		scan = defaultScan
	}
	return &Runner{
		root:    root,
		store:   store,
		scan:    scan,
		limiter: limiter.New(cfg.MaxParallelScans),
		logger:  logger.With("probe"),
		cfg:     cfg,
	}
}

// Close disposes the runner's scan limiter.
func (r *Runner) Close() {
	r.limiter.Dispose()
}

// Run executes one declared probe and returns its completed session.
// Scan failures become failed steps, not a failed session; only being
// unable to walk the target roots aborts the run.
func (r *Runner) Run(ctx context.Context, decl config.ProbeDeclaration) (*Session, error) {
	session := NewSession(decl.Name, decl.Goal)
	if err := r.store.CreateSession(session); err != nil {
		return nil, err
	}

	files, err := r.collectFiles(decl)
	if err != nil {
		r.abort(session, err)
		return session, err
	}

	r.logger.Info("Probe started", logging.Fields{
		"session": session.ID,
		"name":    decl.Name,
		"files":   len(files),
	})

	// took measures the scan itself, not time spent queued behind the
	// parallelism ceiling, so it is captured inside the submitted task.
	type scanOutcome struct {
		output string
		took   time.Duration
	}
	type scanResult struct {
		rel    string
		future *limiter.Future
	}

	results := make([]scanResult, 0, len(files))
	for _, rel := range files {
		abs := filepath.Join(r.root, rel)
		results = append(results, scanResult{
			rel: rel,
			future: r.limiter.Submit(ctx, func(ctx context.Context) (interface{}, error) {
				begun := time.Now()
				output, err := r.scan(ctx, abs)
				return scanOutcome{output: output, took: time.Since(begun)}, err
			}),
		})
	}

	scanned, failed := 0, 0
	for _, res := range results {
		value, err := res.future.Wait(ctx)
		outcome, _ := value.(scanOutcome)

		output := outcome.output
		if err != nil {
			failed++
			output = "error: " + err.Error()
		} else {
			scanned++
		}

		step := NewStep(session.ID, "scan", res.rel, output, outcome.took)
		if err := r.store.AppendStep(step); err != nil {
			r.abort(session, err)
			return session, err
		}
	}

	summary := NewStep(session.ID, "summary", decl.Name,
		fmt.Sprintf("scanned %d files, %d failed", scanned, failed), 0)
	if err := r.store.AppendStep(summary); err != nil {
		r.abort(session, err)
		return session, err
	}

	session.MarkCompleted()
	if err := r.store.UpdateSession(session); err != nil {
		return session, err
	}

	r.logger.Info("Probe completed", logging.Fields{
		"session": session.ID,
		"scanned": scanned,
		"failed":  failed,
	})
	return session, nil
}

// abort records a terminal failure on the session and persists it. A
// persistence failure here has nowhere left to go but the log.
func (r *Runner) abort(session *Session, cause error) {
	session.MarkAborted(cause)
	if err := r.store.UpdateSession(session); err != nil {
		r.logger.Warn("Failed to persist aborted session", logging.Fields{
			"session": session.ID,
			"error":   err.Error(),
		})
	}
}

// collectFiles walks the declared roots and returns workspace-relative
// target files, capped by the declaration and the step budget.
func (r *Runner) collectFiles(decl config.ProbeDeclaration) ([]string, error) {
	budget := r.cfg.MaxSteps - 1 // reserve the summary step
	if decl.MaxFiles > 0 && decl.MaxFiles < budget {
		budget = decl.MaxFiles
	}

	var files []string
	for _, root := range decl.Roots {
		abs := filepath.Join(r.root, root)
		err := filepath.Walk(abs, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				// An unwalkable root aborts the probe; unreadable
				// entries inside the tree are skipped.
				if path == abs {
					return err
				}
				return nil
			}
			if info.IsDir() {
				if name := info.Name(); path != abs && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if len(files) >= budget {
				return filepath.SkipAll
			}
			if !matchesInclude(decl.Include, info.Name()) {
				return nil
			}
			rel, err := filepath.Rel(r.root, path)
			if err != nil {
				return nil
			}
			files = append(files, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking probe root %s: %w", root, err)
		}
		if len(files) >= budget {
			break
		}
	}
	return files, nil
}

func matchesInclude(include []string, name string) bool {
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// defaultScan observes a file's size and line count.
func defaultScan(ctx context.Context, absPath string) (string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", err
	}
	lines := strings.Count(string(data), "\n")
	return fmt.Sprintf("%d bytes, %d lines", len(data), lines), nil
}
