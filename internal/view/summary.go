package view

import (
	"math"
	"time"

	"github.com/logware/soar/internal/models"
)

// Summary holds the aggregate figures shown in the dashboard header.
type Summary struct {
	Total                  int     `json:"total"`
	Succeeded              int     `json:"succeeded"`
	Failed                 int     `json:"failed"`
	Aborted                int     `json:"aborted"`
	Running                int     `json:"running"`
	SuccessRatePercent     int     `json:"success_rate_percent"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}

// Summarize folds records into dashboard aggregates. The four status
// counts always sum to Total. Only records with a defined duration
// contribute to the average; in-flight records are counted, not averaged.
// An empty input yields all zeros, never a division artifact.
func Summarize(records []models.ExecutionRecord) Summary {
	var sum Summary
	var durTotal time.Duration
	durCount := 0

	for i := range records {
		rec := &records[i]
		sum.Total++
		switch rec.Status {
		case models.ExecutionCompleted:
			sum.Succeeded++
		case models.ExecutionFailed:
			sum.Failed++
		case models.ExecutionAborted:
			sum.Aborted++
		default:
			// running, plus anything unrecognized: not provably terminal.
			sum.Running++
		}
		if d, ok := rec.Duration(); ok {
			durTotal += d
			durCount++
		}
	}

	if sum.Total > 0 {
		sum.SuccessRatePercent = int(math.Round(float64(sum.Succeeded) / float64(sum.Total) * 100))
	}
	if durCount > 0 {
		sum.AverageDurationSeconds = durTotal.Seconds() / float64(durCount)
	}
	return sum
}
