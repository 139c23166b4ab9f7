package models

import (
	"fmt"
	"time"
)

// AnomalyCategory classifies where a deviation was observed.
type AnomalyCategory string

const (
	AnomalyUser    AnomalyCategory = "user"
	AnomalyNetwork AnomalyCategory = "network"
	AnomalySystem  AnomalyCategory = "system"
)

// Valid reports whether c is a known category.
func (c AnomalyCategory) Valid() bool {
	return c == AnomalyUser || c == AnomalyNetwork || c == AnomalySystem
}

// Anomaly is a flagged deviation pushed by the external detection
// pipeline, displayed with a severity and confidence score.
type Anomaly struct {
	ID          string          `json:"id"`
	Category    AnomalyCategory `json:"category"`
	Severity    Severity        `json:"severity"`
	Confidence  float64         `json:"confidence"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Entity      string          `json:"entity,omitempty"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// Validate checks the anomaly's structural invariants.
func (a *Anomaly) Validate() error {
	if a.ID == "" {
		return ErrIDRequired
	}
	if !a.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, a.Category)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, a.Severity)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidConfidence, a.Confidence)
	}
	if a.DetectedAt.IsZero() {
		return ErrDetectedAtRequired
	}
	return nil
}
