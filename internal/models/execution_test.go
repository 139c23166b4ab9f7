package models

import (
	"errors"
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

var testStart = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func validRecord() *ExecutionRecord {
	return &ExecutionRecord{
		ID:         "exec-1",
		SourceType: SourcePlaybook,
		SourceID:   "pb-1",
		SourceName: "Phishing Response",
		Status:     ExecutionCompleted,
		StartTime:  testStart,
		EndTime:    timePtr(testStart.Add(30 * time.Second)),
		TriggeredBy: TriggerRef{
			Type: TriggerUser,
			ID:   "u-7",
			Name: "Dana Ortiz",
		},
		Steps: []StepResult{
			{ID: "s-1", Name: "isolate host", Order: 1, ActionType: "contain", Status: StepSuccess},
			{ID: "s-2", Name: "notify analyst", Order: 2, ActionType: "notify", Status: StepSuccess},
		},
	}
}

func TestExecutionStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   ExecutionStatus
		terminal bool
	}{
		{ExecutionRunning, false},
		{ExecutionCompleted, true},
		{ExecutionFailed, true},
		{ExecutionAborted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestStepStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   StepStatus
		terminal bool
	}{
		{StepPending, false},
		{StepRunning, false},
		{StepSuccess, true},
		{StepFailure, true},
		{StepSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestStatusValid(t *testing.T) {
	if ExecutionStatus("archived").Valid() {
		t.Error("unknown execution status reported valid")
	}
	if StepStatus("queued").Valid() {
		t.Error("unknown step status reported valid")
	}
	if !ExecutionAborted.Valid() || !StepSkipped.Valid() {
		t.Error("known status reported invalid")
	}
}

func TestExecutionDuration(t *testing.T) {
	rec := validRecord()
	d, ok := rec.Duration()
	if !ok {
		t.Fatal("Duration() not defined for finished record")
	}
	if d != 30*time.Second {
		t.Errorf("Duration() = %v, want 30s", d)
	}

	running := &ExecutionRecord{
		ID:         "exec-2",
		SourceType: SourceRule,
		Status:     ExecutionRunning,
		StartTime:  testStart,
	}
	if _, ok := running.Duration(); ok {
		t.Error("Duration() defined for in-progress record")
	}
}

func TestStepDuration(t *testing.T) {
	s := StepResult{
		Order:     1,
		Status:    StepSuccess,
		StartTime: timePtr(testStart),
		EndTime:   timePtr(testStart.Add(5 * time.Second)),
	}
	d, ok := s.Duration()
	if !ok || d != 5*time.Second {
		t.Errorf("Duration() = %v, %v, want 5s, true", d, ok)
	}

	s.EndTime = nil
	if _, ok := s.Duration(); ok {
		t.Error("Duration() defined without an end time")
	}
}

func TestExecutionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ExecutionRecord)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(e *ExecutionRecord) {},
		},
		{
			name:    "missing id",
			mutate:  func(e *ExecutionRecord) { e.ID = "" },
			wantErr: ErrIDRequired,
		},
		{
			name:    "bad source type",
			mutate:  func(e *ExecutionRecord) { e.SourceType = "webhook" },
			wantErr: ErrInvalidSourceType,
		},
		{
			name:    "bad status",
			mutate:  func(e *ExecutionRecord) { e.Status = "done" },
			wantErr: ErrInvalidStatus,
		},
		{
			name: "missing start time",
			mutate: func(e *ExecutionRecord) {
				e.StartTime = time.Time{}
			},
			wantErr: ErrStartTimeRequired,
		},
		{
			name: "running with end time",
			mutate: func(e *ExecutionRecord) {
				e.Status = ExecutionRunning
			},
			wantErr: ErrEndTimeForbidden,
		},
		{
			name: "terminal without end time",
			mutate: func(e *ExecutionRecord) {
				e.EndTime = nil
			},
			wantErr: ErrEndTimeRequired,
		},
		{
			name: "end before start",
			mutate: func(e *ExecutionRecord) {
				e.EndTime = timePtr(testStart.Add(-time.Second))
			},
			wantErr: ErrEndBeforeStart,
		},
		{
			name: "duplicate step order",
			mutate: func(e *ExecutionRecord) {
				e.Steps[1].Order = 1
			},
			wantErr: ErrDuplicateStepOrder,
		},
		{
			name: "non-positive step order",
			mutate: func(e *ExecutionRecord) {
				e.Steps[0].Order = 0
			},
			wantErr: ErrInvalidStepOrder,
		},
		{
			name: "unknown step status",
			mutate: func(e *ExecutionRecord) {
				e.Steps[0].Status = "paused"
			},
			wantErr: ErrInvalidStatus,
		},
		{
			name: "running step with end time",
			mutate: func(e *ExecutionRecord) {
				e.Steps[0].Status = StepRunning
				e.Steps[0].EndTime = timePtr(testStart.Add(time.Second))
			},
			wantErr: ErrEndTimeForbidden,
		},
		{
			name: "step end before step start",
			mutate: func(e *ExecutionRecord) {
				e.Steps[0].StartTime = timePtr(testStart.Add(10 * time.Second))
				e.Steps[0].EndTime = timePtr(testStart)
			},
			wantErr: ErrEndBeforeStart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExecutionNormalize(t *testing.T) {
	rec := validRecord()
	rec.Steps = []StepResult{
		{Order: 3, Name: "third", Status: StepPending},
		{Order: 1, Name: "first", Status: StepSuccess},
		{Order: 2, Name: "second", Status: StepRunning},
	}
	rec.Normalize()

	for i, want := range []string{"first", "second", "third"} {
		if rec.Steps[i].Name != want {
			t.Errorf("step %d = %q, want %q", i, rec.Steps[i].Name, want)
		}
	}
}

func TestExecutionClone(t *testing.T) {
	rec := validRecord()
	dup := rec.Clone()

	dup.Steps[0].Status = StepFailure
	*dup.EndTime = testStart.Add(time.Hour)

	if rec.Steps[0].Status != StepSuccess {
		t.Error("mutating clone's steps changed the original")
	}
	if !rec.EndTime.Equal(testStart.Add(30 * time.Second)) {
		t.Error("mutating clone's end time changed the original")
	}
}

func TestActorDisplay(t *testing.T) {
	tests := []struct {
		name  string
		actor Actor
		want  string
	}{
		{"named", Actor{ID: "u-1", Name: "Dana Ortiz"}, "Dana Ortiz"},
		{"id only", Actor{ID: "u-1"}, "u-1"},
		{"empty", Actor{}, "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}
