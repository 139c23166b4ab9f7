package models

import (
	"strings"
	"time"
)

// Window is a relative lookback over execution start times.
type Window string

const (
	WindowDay   Window = "1d"
	WindowWeek  Window = "7d"
	WindowMonth Window = "30d"
	WindowAll   Window = "all"
)

// Valid reports whether w is a known window, counting empty as "all".
func (w Window) Valid() bool {
	switch w {
	case WindowDay, WindowWeek, WindowMonth, WindowAll, "":
		return true
	}
	return false
}

// Span returns the window's extent. Unbounded windows ("all" or empty)
// return false.
func (w Window) Span() (time.Duration, bool) {
	switch w {
	case WindowDay:
		return 24 * time.Hour, true
	case WindowWeek:
		return 7 * 24 * time.Hour, true
	case WindowMonth:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// ExecutionQuery selects executions. Dimensions combine conjunctively:
// a record must pass every active dimension. A zero value or "all"
// disables a dimension.
type ExecutionQuery struct {
	Status ExecutionStatus `json:"status,omitempty"`
	Source SourceType      `json:"source,omitempty"`
	Window Window          `json:"window,omitempty"`
	Search string          `json:"search,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Validate rejects dimension values outside their enums. "all" and empty
// are accepted everywhere as "no filtering".
func (q ExecutionQuery) Validate() error {
	if s := q.Status; s != "" && s != "all" && !s.Valid() {
		return ErrInvalidStatus
	}
	if s := q.Source; s != "" && s != "all" && !s.Valid() {
		return ErrInvalidSourceType
	}
	if !q.Window.Valid() {
		return ErrInvalidWindow
	}
	return nil
}

// Match reports whether rec passes every active dimension of the query.
// The window is evaluated against now: a record passes if its start time
// is no older than the window (boundary inclusive).
func (q ExecutionQuery) Match(rec *ExecutionRecord, now time.Time) bool {
	if s := q.Status; s != "" && s != "all" && rec.Status != s {
		return false
	}
	if s := q.Source; s != "" && s != "all" && rec.SourceType != s {
		return false
	}
	if span, bounded := q.Window.Span(); bounded {
		if rec.StartTime.Before(now.Add(-span)) {
			return false
		}
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(rec.SourceName), needle) &&
			!strings.Contains(strings.ToLower(rec.ID), needle) &&
			!strings.Contains(strings.ToLower(rec.TriggeredBy.Name), needle) {
			return false
		}
	}
	return true
}
