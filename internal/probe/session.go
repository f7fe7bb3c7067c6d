// Package probe manages agentic code-exploration sessions: bounded scans
// over declared workspace targets with a persisted step transcript.
package probe

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a probe session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Session is one exploration run against a declared probe target.
type Session struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Goal        string     `json:"goal"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Step is one recorded observation within a session.
type Step struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	Seq       int           `json:"seq"`
	Kind      string        `json:"kind"` // "scan", "summary"
	Input     string        `json:"input"`
	Output    string        `json:"output"`
	Duration  time.Duration `json:"duration"`
}

// NewSession creates an active session for a named probe target.
func NewSession(name, goal string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Name:      name,
		Goal:      goal,
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

// IsTerminal reports whether the session has finished.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAborted
}

// MarkCompleted transitions the session to completed.
func (s *Session) MarkCompleted() {
	now := time.Now().UTC()
	s.Status = StatusCompleted
	s.CompletedAt = &now
}

// MarkAborted transitions the session to aborted with a reason.
func (s *Session) MarkAborted(err error) {
	now := time.Now().UTC()
	s.Status = StatusAborted
	s.CompletedAt = &now
	if err != nil {
		s.Error = err.Error()
	}
}

// NewStep creates a step for a session. Seq is assigned by the store.
func NewStep(sessionID, kind, input, output string, duration time.Duration) *Step {
	return &Step{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Kind:      kind,
		Input:     input,
		Output:    output,
		Duration:  duration,
	}
}
