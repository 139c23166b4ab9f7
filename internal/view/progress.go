package view

import (
	"math"

	"github.com/logware/soar/internal/models"
)

// Progress returns the percentage of steps that have resolved (success,
// failure, or skipped) out of the total, rounded to the nearest integer.
// A record with no steps reports 0. The result never decreases as steps
// move into terminal states.
func Progress(rec *models.ExecutionRecord) int {
	total := len(rec.Steps)
	if total == 0 {
		return 0
	}
	done := 0
	for i := range rec.Steps {
		if rec.Steps[i].Status.IsTerminal() {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}
