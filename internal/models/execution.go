// Package models defines the core data structures for the SOAR console.
package models

import (
	"fmt"
	"sort"
	"time"
)

// SourceType identifies which kind of automation produced an execution.
type SourceType string

const (
	SourcePlaybook SourceType = "playbook"
	SourceRule     SourceType = "rule"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	return s == SourcePlaybook || s == SourceRule
}

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionAborted   ExecutionStatus = "aborted"
)

// Valid reports whether s is a known execution status.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionRunning, ExecutionCompleted, ExecutionFailed, ExecutionAborted:
		return true
	}
	return false
}

// IsTerminal returns true if the execution can no longer change state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed || s == ExecutionAborted
}

// StepStatus is the lifecycle state of a single step within an execution.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailure StepStatus = "failure"
	StepSkipped StepStatus = "skipped"
)

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepRunning, StepSuccess, StepFailure, StepSkipped:
		return true
	}
	return false
}

// IsTerminal returns true if the step has resolved.
func (s StepStatus) IsTerminal() bool {
	return s == StepSuccess || s == StepFailure || s == StepSkipped
}

// TriggerType classifies what started an execution.
type TriggerType string

const (
	TriggerUser     TriggerType = "user"
	TriggerRule     TriggerType = "rule"
	TriggerSchedule TriggerType = "schedule"
	TriggerAPI      TriggerType = "api"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerUser, TriggerRule, TriggerSchedule, TriggerAPI:
		return true
	}
	return false
}

// TriggerRef records what started an execution. Display-only provenance;
// no referential integrity is enforced against the referenced entity.
type TriggerRef struct {
	Type TriggerType `json:"type"`
	ID   string      `json:"id,omitempty"`
	Name string      `json:"name,omitempty"`
}

// Actor is an explicit acting identity, passed as a parameter to every
// operation that records who performed it.
type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Display returns a human-readable identity, falling back to "anonymous"
// when the actor is empty.
func (a Actor) Display() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.ID != "":
		return a.ID
	default:
		return "anonymous"
	}
}

// IsZero reports whether the actor carries no identity at all.
func (a Actor) IsZero() bool {
	return a.ID == "" && a.Name == ""
}

// ExecutionRecord is one run instance of a playbook or rule, as pushed by
// the owning engine. Records are snapshots: the console never mutates them
// beyond annotating an abort request.
type ExecutionRecord struct {
	ID            string          `json:"id"`
	SourceType    SourceType      `json:"source_type"`
	SourceID      string          `json:"source_id,omitempty"`
	SourceName    string          `json:"source_name,omitempty"`
	SourceVersion string          `json:"source_version,omitempty"`
	Status        ExecutionStatus `json:"status"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       *time.Time      `json:"end_time,omitempty"`
	TriggeredBy   TriggerRef      `json:"triggered_by"`
	Steps         []StepResult    `json:"steps,omitempty"`

	// CallbackURL is the engine endpoint abort requests are relayed to.
	CallbackURL string `json:"callback_url,omitempty"`

	// Abort bookkeeping. The displayed status never changes on request;
	// only an engine update moves the record to aborted.
	AbortRequestedAt *time.Time `json:"abort_requested_at,omitempty"`
	AbortRequestedBy string     `json:"abort_requested_by,omitempty"`
}

// Duration returns end - start when the record has finished, and false
// while it is still in progress.
func (e *ExecutionRecord) Duration() (time.Duration, bool) {
	if e.EndTime == nil {
		return 0, false
	}
	return e.EndTime.Sub(e.StartTime), true
}

// Normalize sorts steps into canonical execution order.
func (e *ExecutionRecord) Normalize() {
	sort.SliceStable(e.Steps, func(i, j int) bool {
		return e.Steps[i].Order < e.Steps[j].Order
	})
}

// Clone returns a deep copy safe to hand across goroutines.
func (e *ExecutionRecord) Clone() *ExecutionRecord {
	out := *e
	if e.EndTime != nil {
		t := *e.EndTime
		out.EndTime = &t
	}
	if e.AbortRequestedAt != nil {
		t := *e.AbortRequestedAt
		out.AbortRequestedAt = &t
	}
	if e.Steps != nil {
		out.Steps = make([]StepResult, len(e.Steps))
		for i, s := range e.Steps {
			out.Steps[i] = *s.clone()
		}
	}
	return &out
}

// Validate checks the record against its structural invariants.
func (e *ExecutionRecord) Validate() error {
	if e.ID == "" {
		return ErrIDRequired
	}
	if !e.SourceType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, e.SourceType)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if e.StartTime.IsZero() {
		return ErrStartTimeRequired
	}
	if e.Status == ExecutionRunning && e.EndTime != nil {
		return ErrEndTimeForbidden
	}
	if e.Status.IsTerminal() {
		if e.EndTime == nil {
			return ErrEndTimeRequired
		}
		if e.EndTime.Before(e.StartTime) {
			return ErrEndBeforeStart
		}
	}
	if e.TriggeredBy.Type != "" && !e.TriggeredBy.Type.Valid() {
		return fmt.Errorf("%w: trigger type %q", ErrInvalidStatus, e.TriggeredBy.Type)
	}
	seen := make(map[int]struct{}, len(e.Steps))
	for i := range e.Steps {
		s := &e.Steps[i]
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if _, dup := seen[s.Order]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateStepOrder, s.Order)
		}
		seen[s.Order] = struct{}{}
	}
	return nil
}

// StepResult is one unit of work within an execution.
type StepResult struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	Order      int        `json:"order"`
	ActionType string     `json:"action_type,omitempty"`
	Status     StepStatus `json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

// Duration returns end - start when both timestamps are known.
func (s *StepResult) Duration() (time.Duration, bool) {
	if s.StartTime == nil || s.EndTime == nil {
		return 0, false
	}
	return s.EndTime.Sub(*s.StartTime), true
}

func (s *StepResult) validate() error {
	if s.Order < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidStepOrder, s.Order)
	}
	if !s.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s.Status)
	}
	if s.Status == StepRunning && s.EndTime != nil {
		return ErrEndTimeForbidden
	}
	if s.StartTime != nil && s.EndTime != nil && s.EndTime.Before(*s.StartTime) {
		return ErrEndBeforeStart
	}
	return nil
}

func (s *StepResult) clone() *StepResult {
	out := *s
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return &out
}

// AbortRequest is the payload recorded for, and relayed on, an abort.
type AbortRequest struct {
	ExecutionID string    `json:"execution_id"`
	RequestedBy Actor     `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason,omitempty"`
}
