package view

import (
	"time"

	"github.com/logware/soar/internal/models"
)

// Apply filters records with q, evaluated at now. All active dimensions
// combine conjunctively. Filtering is stable: surviving records keep
// their input order. The input slice is never mutated, and applying the
// same query to its own output returns the output unchanged. A positive
// Limit caps the result after filtering.
func Apply(records []models.ExecutionRecord, q models.ExecutionQuery, now time.Time) []models.ExecutionRecord {
	out := make([]models.ExecutionRecord, 0, len(records))
	for i := range records {
		if !q.Match(&records[i], now) {
			continue
		}
		out = append(out, records[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}
