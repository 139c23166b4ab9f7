package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/logware/soar/internal/models"
)

// MemoryStore implements the Store interface using in-memory data
// structures. Useful for testing and development; all state is lost on
// restart.
type MemoryStore struct {
	executions map[string]*models.ExecutionRecord
	playbooks  map[string]*models.Playbook
	rules      map[string]*models.Rule
	anomalies  map[string]*models.Anomaly
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*models.ExecutionRecord),
		playbooks:  make(map[string]*models.Playbook),
		rules:      make(map[string]*models.Rule),
		anomalies:  make(map[string]*models.Anomaly),
	}
}

// CreateExecution stores a new execution record.
func (s *MemoryStore) CreateExecution(rec *models.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[rec.ID]; exists {
		return models.ErrExecutionExists
	}
	s.executions[rec.ID] = rec.Clone()
	return nil
}

// UpdateExecution replaces an existing execution record.
func (s *MemoryStore) UpdateExecution(rec *models.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[rec.ID]; !exists {
		return models.ErrExecutionNotFound
	}
	s.executions[rec.ID] = rec.Clone()
	return nil
}

// GetExecution retrieves an execution record by ID.
func (s *MemoryStore) GetExecution(id string) (*models.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.executions[id]
	if !exists {
		return nil, models.ErrExecutionNotFound
	}
	return rec.Clone(), nil
}

// ListExecutions returns all execution records, newest start time first.
func (s *MemoryStore) ListExecutions() ([]*models.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*models.ExecutionRecord, 0, len(s.executions))
	for _, rec := range s.executions {
		recs = append(recs, rec.Clone())
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].StartTime.After(recs[j].StartTime)
	})
	return recs, nil
}

// PruneExecutions deletes terminal records that started before cutoff.
func (s *MemoryStore) PruneExecutions(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, rec := range s.executions {
		if rec.Status.IsTerminal() && rec.StartTime.Before(cutoff) {
			delete(s.executions, id)
			pruned++
		}
	}
	return pruned, nil
}

// CreatePlaybook stores a new playbook definition.
func (s *MemoryStore) CreatePlaybook(pb *models.Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.playbooks[pb.ID]; exists {
		return models.ErrPlaybookExists
	}
	s.playbooks[pb.ID] = pb.Clone()
	return nil
}

// UpdatePlaybook replaces an existing playbook definition.
func (s *MemoryStore) UpdatePlaybook(pb *models.Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.playbooks[pb.ID]; !exists {
		return models.ErrPlaybookNotFound
	}
	s.playbooks[pb.ID] = pb.Clone()
	return nil
}

// GetPlaybook retrieves a playbook definition by ID.
func (s *MemoryStore) GetPlaybook(id string) (*models.Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pb, exists := s.playbooks[id]
	if !exists {
		return nil, models.ErrPlaybookNotFound
	}
	return pb.Clone(), nil
}

// DeletePlaybook deletes a playbook definition by ID.
func (s *MemoryStore) DeletePlaybook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.playbooks[id]; !exists {
		return models.ErrPlaybookNotFound
	}
	delete(s.playbooks, id)
	return nil
}

// ListPlaybooks returns all playbook definitions, most recently updated first.
func (s *MemoryStore) ListPlaybooks() ([]*models.Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pbs := make([]*models.Playbook, 0, len(s.playbooks))
	for _, pb := range s.playbooks {
		pbs = append(pbs, pb.Clone())
	}
	sort.SliceStable(pbs, func(i, j int) bool {
		return pbs[i].UpdatedAt.After(pbs[j].UpdatedAt)
	})
	return pbs, nil
}

// CreateRule stores a new detection rule.
func (s *MemoryStore) CreateRule(r *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.ID]; exists {
		return models.ErrRuleExists
	}
	ruleCopy := *r
	s.rules[r.ID] = &ruleCopy
	return nil
}

// UpdateRule replaces an existing detection rule.
func (s *MemoryStore) UpdateRule(r *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[r.ID]; !exists {
		return models.ErrRuleNotFound
	}
	ruleCopy := *r
	s.rules[r.ID] = &ruleCopy
	return nil
}

// GetRule retrieves a detection rule by ID.
func (s *MemoryStore) GetRule(id string) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rules[id]
	if !exists {
		return nil, models.ErrRuleNotFound
	}
	ruleCopy := *r
	return &ruleCopy, nil
}

// DeleteRule deletes a detection rule by ID.
func (s *MemoryStore) DeleteRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return models.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

// ListRules returns all detection rules, most recently updated first.
func (s *MemoryStore) ListRules() ([]*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]*models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		ruleCopy := *r
		rules = append(rules, &ruleCopy)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].UpdatedAt.After(rules[j].UpdatedAt)
	})
	return rules, nil
}

// CreateAnomaly stores a new anomaly.
func (s *MemoryStore) CreateAnomaly(a *models.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.anomalies[a.ID]; exists {
		return models.ErrAnomalyExists
	}
	anomalyCopy := *a
	s.anomalies[a.ID] = &anomalyCopy
	return nil
}

// GetAnomaly retrieves an anomaly by ID.
func (s *MemoryStore) GetAnomaly(id string) (*models.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.anomalies[id]
	if !exists {
		return nil, models.ErrAnomalyNotFound
	}
	anomalyCopy := *a
	return &anomalyCopy, nil
}

// ListAnomalies returns all anomalies, newest detection time first.
func (s *MemoryStore) ListAnomalies() ([]*models.Anomaly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	as := make([]*models.Anomaly, 0, len(s.anomalies))
	for _, a := range s.anomalies {
		anomalyCopy := *a
		as = append(as, &anomalyCopy)
	}
	sort.SliceStable(as, func(i, j int) bool {
		return as[i].DetectedAt.After(as[j].DetectedAt)
	})
	return as, nil
}

// Close closes the store and releases resources.
func (s *MemoryStore) Close() error {
	return nil
}

// Reset clears all data (useful for testing).
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions = make(map[string]*models.ExecutionRecord)
	s.playbooks = make(map[string]*models.Playbook)
	s.rules = make(map[string]*models.Rule)
	s.anomalies = make(map[string]*models.Anomaly)
}
