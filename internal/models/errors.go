package models

import "errors"

// Common errors.
var (
	ErrExecutionNotFound   = errors.New("execution not found")
	ErrExecutionExists     = errors.New("execution already exists")
	ErrExecutionNotRunning = errors.New("execution is not running")
	ErrPlaybookNotFound    = errors.New("playbook not found")
	ErrPlaybookExists      = errors.New("playbook already exists")
	ErrRuleNotFound        = errors.New("rule not found")
	ErrRuleExists          = errors.New("rule already exists")
	ErrAnomalyNotFound     = errors.New("anomaly not found")
	ErrAnomalyExists       = errors.New("anomaly already exists")

	ErrIDRequired             = errors.New("id is required")
	ErrNameRequired           = errors.New("name is required")
	ErrStartTimeRequired      = errors.New("start time is required")
	ErrDetectedAtRequired     = errors.New("detection time is required")
	ErrConditionFieldRequired = errors.New("condition field is required")
	ErrInvalidSourceType      = errors.New("invalid source type")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidWindow          = errors.New("invalid time window")
	ErrInvalidSeverity        = errors.New("invalid severity")
	ErrInvalidCategory        = errors.New("invalid anomaly category")
	ErrInvalidOperator        = errors.New("invalid condition operator")
	ErrInvalidConfidence      = errors.New("confidence must be between 0 and 1")
	ErrInvalidStepOrder       = errors.New("step order must be positive")
	ErrDuplicateStepOrder     = errors.New("duplicate step order")
	ErrEndTimeRequired        = errors.New("terminal execution requires an end time")
	ErrEndTimeForbidden       = errors.New("running execution must not carry an end time")
	ErrEndBeforeStart         = errors.New("end time precedes start time")
)
