package view

import (
	"testing"
	"time"

	"github.com/logware/soar/internal/models"
)

func recordWithSteps(statuses ...models.StepStatus) *models.ExecutionRecord {
	rec := &models.ExecutionRecord{
		ID:         "exec-p",
		SourceType: models.SourcePlaybook,
		Status:     models.ExecutionRunning,
		StartTime:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	for i, s := range statuses {
		rec.Steps = append(rec.Steps, models.StepResult{
			Name:   "step",
			Order:  i + 1,
			Status: s,
		})
	}
	return rec
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.StepStatus
		want     int
	}{
		{"no steps", nil, 0},
		{"all pending", []models.StepStatus{models.StepPending, models.StepPending}, 0},
		{
			"two success one failure one pending",
			[]models.StepStatus{models.StepSuccess, models.StepSuccess, models.StepFailure, models.StepPending},
			75,
		},
		{
			"skipped counts as resolved",
			[]models.StepStatus{models.StepSkipped, models.StepPending},
			50,
		},
		{
			"running does not count",
			[]models.StepStatus{models.StepSuccess, models.StepRunning},
			50,
		},
		{
			"all terminal",
			[]models.StepStatus{models.StepSuccess, models.StepFailure, models.StepSkipped},
			100,
		},
		{
			"rounds to nearest",
			[]models.StepStatus{models.StepSuccess, models.StepPending, models.StepPending},
			33,
		},
		{
			"rounds up",
			[]models.StepStatus{models.StepSuccess, models.StepSuccess, models.StepPending},
			67,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := recordWithSteps(tt.statuses...)
			got := Progress(rec)
			if got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("Progress() = %d, outside [0,100]", got)
			}
		})
	}
}

func TestProgressMonotonic(t *testing.T) {
	// Resolve steps one at a time and check the percentage never drops.
	rec := recordWithSteps(
		models.StepPending, models.StepPending, models.StepPending,
		models.StepPending, models.StepPending,
	)

	prev := Progress(rec)
	if prev != 0 {
		t.Fatalf("initial Progress() = %d, want 0", prev)
	}

	terminal := []models.StepStatus{
		models.StepSuccess, models.StepFailure, models.StepSkipped,
		models.StepSuccess, models.StepFailure,
	}
	for i := range rec.Steps {
		rec.Steps[i].Status = terminal[i]
		got := Progress(rec)
		if got < prev {
			t.Fatalf("Progress() decreased from %d to %d after resolving step %d", prev, got, i+1)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("final Progress() = %d, want 100", prev)
	}
}
