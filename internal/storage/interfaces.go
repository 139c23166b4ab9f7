// Package storage persists the console's records: execution records
// pushed by external engines, playbook and rule definitions, and
// anomalies from the detection pipeline.
package storage

import (
	"time"

	"github.com/logware/soar/internal/models"
)

// ExecutionStore provides execution record persistence operations.
type ExecutionStore interface {
	// CreateExecution stores a new record. Returns models.ErrExecutionExists
	// if the ID is already present.
	CreateExecution(rec *models.ExecutionRecord) error
	// UpdateExecution replaces an existing record. Returns
	// models.ErrExecutionNotFound if the ID is unknown.
	UpdateExecution(rec *models.ExecutionRecord) error
	// GetExecution retrieves a record by ID. Returns
	// models.ErrExecutionNotFound if not found.
	GetExecution(id string) (*models.ExecutionRecord, error)
	// ListExecutions returns all records, newest start time first.
	ListExecutions() ([]*models.ExecutionRecord, error)
	// PruneExecutions deletes terminal records that started before cutoff.
	// Running records are never pruned. Returns the number removed.
	PruneExecutions(cutoff time.Time) (int, error)
}

// PlaybookStore provides playbook definition persistence operations.
type PlaybookStore interface {
	// CreatePlaybook stores a new definition. Returns
	// models.ErrPlaybookExists if the ID is already present.
	CreatePlaybook(pb *models.Playbook) error
	// UpdatePlaybook replaces an existing definition. Returns
	// models.ErrPlaybookNotFound if the ID is unknown.
	UpdatePlaybook(pb *models.Playbook) error
	// GetPlaybook retrieves a definition by ID.
	GetPlaybook(id string) (*models.Playbook, error)
	// DeletePlaybook deletes a definition by ID.
	DeletePlaybook(id string) error
	// ListPlaybooks returns all definitions, most recently updated first.
	ListPlaybooks() ([]*models.Playbook, error)
}

// RuleStore provides detection-rule definition persistence operations.
type RuleStore interface {
	// CreateRule stores a new rule. Returns models.ErrRuleExists if the
	// ID is already present.
	CreateRule(r *models.Rule) error
	// UpdateRule replaces an existing rule. Returns models.ErrRuleNotFound
	// if the ID is unknown.
	UpdateRule(r *models.Rule) error
	// GetRule retrieves a rule by ID.
	GetRule(id string) (*models.Rule, error)
	// DeleteRule deletes a rule by ID.
	DeleteRule(id string) error
	// ListRules returns all rules, most recently updated first.
	ListRules() ([]*models.Rule, error)
}

// AnomalyStore provides anomaly persistence operations.
type AnomalyStore interface {
	// CreateAnomaly stores a new anomaly. Returns models.ErrAnomalyExists
	// if the ID is already present.
	CreateAnomaly(a *models.Anomaly) error
	// GetAnomaly retrieves an anomaly by ID.
	GetAnomaly(id string) (*models.Anomaly, error)
	// ListAnomalies returns all anomalies, newest detection time first.
	ListAnomalies() ([]*models.Anomaly, error)
}

// Store combines all storage interfaces.
// This is the primary interface for components that need full storage access.
type Store interface {
	ExecutionStore
	PlaybookStore
	RuleStore
	AnomalyStore

	// Close closes the store and releases resources.
	Close() error
}
