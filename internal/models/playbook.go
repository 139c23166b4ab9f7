package models

import (
	"fmt"
	"time"
)

// Playbook is a named, versioned sequence of response steps. Definitions
// only: execution lives in an external engine, which reports runs as
// ExecutionRecords.
type Playbook struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Version     string         `json:"version,omitempty"`
	Description string         `json:"description,omitempty"`
	Steps       []PlaybookStep `json:"steps,omitempty"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PlaybookStep is one step definition within a playbook.
type PlaybookStep struct {
	Name       string `json:"name"`
	Order      int    `json:"order"`
	ActionType string `json:"action_type"`
	Target     string `json:"target,omitempty"`
}

// Validate checks the definition's structural invariants.
func (p *Playbook) Validate() error {
	if p.ID == "" {
		return ErrIDRequired
	}
	if p.Name == "" {
		return ErrNameRequired
	}
	seen := make(map[int]struct{}, len(p.Steps))
	for i, s := range p.Steps {
		if s.Order < 1 {
			return fmt.Errorf("step %d: %w: %d", i, ErrInvalidStepOrder, s.Order)
		}
		if _, dup := seen[s.Order]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateStepOrder, s.Order)
		}
		seen[s.Order] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy.
func (p *Playbook) Clone() *Playbook {
	out := *p
	if p.Steps != nil {
		out.Steps = make([]PlaybookStep, len(p.Steps))
		copy(out.Steps, p.Steps)
	}
	return &out
}
