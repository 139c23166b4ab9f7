// Package view derives render-ready presentation state from execution
// records: status badges, progress percentages, filtered lists, and
// summary aggregates. Everything here is pure. Unknown enum values degrade
// to defined fallbacks; nothing in this package fails a render.
package view

import "github.com/logware/soar/internal/models"

// SemanticColor is a display color token from the fixed palette.
type SemanticColor string

const (
	ColorSuccess SemanticColor = "success"
	ColorWarning SemanticColor = "warning"
	ColorError   SemanticColor = "error"
	ColorInfo    SemanticColor = "info"
	ColorNeutral SemanticColor = "neutral"
)

// IconKind is a display icon token from the fixed palette.
type IconKind string

const (
	IconCheckCircle IconKind = "check-circle"
	IconXCircle     IconKind = "x-circle"
	IconSpinner     IconKind = "spinner"
	IconSlashCircle IconKind = "slash-circle"
	IconSkipForward IconKind = "skip-forward"
	IconClock       IconKind = "clock"
	IconHelpCircle  IconKind = "help-circle"
)

// Badge is the classified display form of a status.
type Badge struct {
	Label string        `json:"label"`
	Color SemanticColor `json:"color"`
	Icon  IconKind      `json:"icon"`
}

// FallbackBadge is the classification for any status outside the closed
// enums. A malformed record degrades to this; it never aborts rendering.
var FallbackBadge = Badge{Label: "unknown", Color: ColorNeutral, Icon: IconHelpCircle}

// ClassifyExecution maps an execution status to its badge.
func ClassifyExecution(s models.ExecutionStatus) Badge {
	switch s {
	case models.ExecutionRunning:
		return Badge{Label: "running", Color: ColorWarning, Icon: IconSpinner}
	case models.ExecutionCompleted:
		return Badge{Label: "completed", Color: ColorSuccess, Icon: IconCheckCircle}
	case models.ExecutionFailed:
		return Badge{Label: "failed", Color: ColorError, Icon: IconXCircle}
	case models.ExecutionAborted:
		return Badge{Label: "aborted", Color: ColorNeutral, Icon: IconSlashCircle}
	default:
		return FallbackBadge
	}
}

// ClassifyStep maps a step status to its badge.
func ClassifyStep(s models.StepStatus) Badge {
	switch s {
	case models.StepPending:
		return Badge{Label: "pending", Color: ColorNeutral, Icon: IconClock}
	case models.StepRunning:
		return Badge{Label: "running", Color: ColorWarning, Icon: IconSpinner}
	case models.StepSuccess:
		return Badge{Label: "success", Color: ColorSuccess, Icon: IconCheckCircle}
	case models.StepFailure:
		return Badge{Label: "failure", Color: ColorError, Icon: IconXCircle}
	case models.StepSkipped:
		return Badge{Label: "skipped", Color: ColorInfo, Icon: IconSkipForward}
	default:
		return FallbackBadge
	}
}
