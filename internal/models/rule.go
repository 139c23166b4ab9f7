package models

import (
	"fmt"
	"time"
)

// Severity grades rules and anomalies.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// CompareOp is the operator of a rule condition.
type CompareOp string

const (
	OpEquals    CompareOp = "equals"
	OpNotEquals CompareOp = "not_equals"
	OpContains  CompareOp = "contains"
	OpGreater   CompareOp = "gt"
	OpLess      CompareOp = "lt"
)

// Valid reports whether op is a known operator.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpGreater, OpLess:
		return true
	}
	return false
}

// RuleCondition is the typed trigger condition of a detection rule.
type RuleCondition struct {
	Field    string    `json:"field"`
	Operator CompareOp `json:"operator"`
	Value    string    `json:"value"`
}

// Rule is a detection-rule definition. Evaluation happens in an external
// engine; matches arrive here as rule-sourced ExecutionRecords.
type Rule struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Severity    Severity      `json:"severity"`
	Condition   RuleCondition `json:"condition"`
	PlaybookID  string        `json:"playbook_id,omitempty"`
	Enabled     bool          `json:"enabled"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Validate checks the definition's structural invariants.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return ErrIDRequired
	}
	if r.Name == "" {
		return ErrNameRequired
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, r.Severity)
	}
	if r.Condition.Field == "" {
		return ErrConditionFieldRequired
	}
	if !r.Condition.Operator.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperator, r.Condition.Operator)
	}
	return nil
}
