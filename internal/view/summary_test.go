package view

import (
	"testing"
	"time"

	"github.com/logware/soar/internal/models"
)

func summaryRecord(id string, status models.ExecutionStatus, dur time.Duration) models.ExecutionRecord {
	rec := models.ExecutionRecord{
		ID:         id,
		SourceType: models.SourcePlaybook,
		SourceName: "Phishing Response",
		Status:     status,
		StartTime:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	if status.IsTerminal() {
		end := rec.StartTime.Add(dur)
		rec.EndTime = &end
	}
	return rec
}

func TestSummarize(t *testing.T) {
	records := []models.ExecutionRecord{
		summaryRecord("e1", models.ExecutionCompleted, 10*time.Second),
		summaryRecord("e2", models.ExecutionFailed, 30*time.Second),
		summaryRecord("e3", models.ExecutionRunning, 0),
	}

	got := Summarize(records)

	want := Summary{
		Total:                  3,
		Succeeded:              1,
		Failed:                 1,
		Running:                1,
		SuccessRatePercent:     33,
		AverageDurationSeconds: 20,
	}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize(nil)
	if got != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want all zeros", got)
	}
}

func TestSummarizeCountsSumToTotal(t *testing.T) {
	records := []models.ExecutionRecord{
		summaryRecord("e1", models.ExecutionCompleted, time.Second),
		summaryRecord("e2", models.ExecutionCompleted, time.Second),
		summaryRecord("e3", models.ExecutionFailed, time.Second),
		summaryRecord("e4", models.ExecutionAborted, time.Second),
		summaryRecord("e5", models.ExecutionRunning, 0),
		summaryRecord("e6", "mystery", 0), // unrecognized folds into Running
	}

	got := Summarize(records)
	if sum := got.Succeeded + got.Failed + got.Aborted + got.Running; sum != got.Total {
		t.Errorf("counts sum to %d, Total = %d", sum, got.Total)
	}
	if got.Running != 2 {
		t.Errorf("Running = %d, want 2 (unrecognized status is not provably terminal)", got.Running)
	}
}

func TestSummarizeRateRounding(t *testing.T) {
	tests := []struct {
		name      string
		succeeded int
		total     int
		want      int
	}{
		{"one of three", 1, 3, 33},
		{"two of three", 2, 3, 67},
		{"all", 4, 4, 100},
		{"none", 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []models.ExecutionRecord
			for i := 0; i < tt.succeeded; i++ {
				records = append(records, summaryRecord("s", models.ExecutionCompleted, time.Second))
			}
			for i := tt.succeeded; i < tt.total; i++ {
				records = append(records, summaryRecord("f", models.ExecutionFailed, time.Second))
			}
			if got := Summarize(records).SuccessRatePercent; got != tt.want {
				t.Errorf("SuccessRatePercent = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSummarizeAverageSkipsInFlight(t *testing.T) {
	records := []models.ExecutionRecord{
		summaryRecord("e1", models.ExecutionCompleted, 10*time.Second),
		summaryRecord("e2", models.ExecutionRunning, 0), // no duration yet
		summaryRecord("e3", models.ExecutionFailed, 50*time.Second),
	}

	got := Summarize(records)
	if got.AverageDurationSeconds != 30 {
		t.Errorf("AverageDurationSeconds = %v, want 30 (in-flight records excluded)", got.AverageDurationSeconds)
	}
}
