package sdk

import "time"

// Actor identifies who requested an operation.
type Actor struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// TriggerRef describes what started an execution.
type TriggerRef struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// StepResult is one step of an execution run.
type StepResult struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name"`
	Order      int        `json:"order"`
	ActionType string     `json:"action_type,omitempty"`
	Status     string     `json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
}

// Badge is the visual classification the server derives for a status.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// Execution is an execution record as served by the API, including the
// derived display fields. Push operations send the record fields; the
// server ignores the derived ones.
type Execution struct {
	ID               string       `json:"id"`
	SourceType       string       `json:"source_type"`
	SourceID         string       `json:"source_id,omitempty"`
	SourceName       string       `json:"source_name,omitempty"`
	SourceVersion    string       `json:"source_version,omitempty"`
	Status           string       `json:"status"`
	StartTime        time.Time    `json:"start_time"`
	EndTime          *time.Time   `json:"end_time,omitempty"`
	TriggeredBy      TriggerRef   `json:"triggered_by"`
	Steps            []StepResult `json:"steps,omitempty"`
	CallbackURL      string       `json:"callback_url,omitempty"`
	AbortRequestedAt *time.Time   `json:"abort_requested_at,omitempty"`
	AbortRequestedBy string       `json:"abort_requested_by,omitempty"`

	Badge           Badge    `json:"badge"`
	ProgressPercent int      `json:"progress_percent"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	StepBadges      []Badge  `json:"step_badges,omitempty"`
}

// AbortRequest is the server's record of an accepted abort.
type AbortRequest struct {
	ExecutionID string    `json:"execution_id"`
	RequestedBy Actor     `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason,omitempty"`
}

// AbortResult is the response to an abort request.
type AbortResult struct {
	Abort   AbortRequest `json:"abort"`
	Relayed bool         `json:"relayed"`
}

// Summary holds the dashboard aggregates for a filtered execution set.
type Summary struct {
	Total                  int     `json:"total"`
	Succeeded              int     `json:"succeeded"`
	Failed                 int     `json:"failed"`
	Aborted                int     `json:"aborted"`
	Running                int     `json:"running"`
	SuccessRatePercent     int     `json:"success_rate_percent"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
}

// Playbook is a playbook definition.
type Playbook struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Version     string         `json:"version,omitempty"`
	Description string         `json:"description,omitempty"`
	Steps       []PlaybookStep `json:"steps,omitempty"`
	Enabled     bool           `json:"enabled"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// PlaybookStep is one step definition within a playbook.
type PlaybookStep struct {
	Name       string `json:"name"`
	Order      int    `json:"order"`
	ActionType string `json:"action_type"`
	Target     string `json:"target,omitempty"`
}

// RuleCondition is the trigger condition of a detection rule.
type RuleCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Rule is a detection-rule definition.
type Rule struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Severity    string        `json:"severity"`
	Condition   RuleCondition `json:"condition"`
	PlaybookID  string        `json:"playbook_id,omitempty"`
	Enabled     bool          `json:"enabled"`
	CreatedAt   time.Time     `json:"created_at,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at,omitempty"`
}

// Anomaly is a flagged deviation from the detection pipeline.
type Anomaly struct {
	ID          string    `json:"id,omitempty"`
	Category    string    `json:"category"`
	Severity    string    `json:"severity"`
	Confidence  float64   `json:"confidence"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Entity      string    `json:"entity,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Notice is a console notification.
type Notice struct {
	ID       string    `json:"id"`
	Severity string    `json:"severity"`
	Source   string    `json:"source"`
	Title    string    `json:"title"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Health is the server health payload.
type Health struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
