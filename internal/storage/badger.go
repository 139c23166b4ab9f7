package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/logware/soar/internal/models"
)

// Compile-time check that BadgerStore implements all storage interfaces.
var (
	_ ExecutionStore = (*BadgerStore)(nil)
	_ PlaybookStore  = (*BadgerStore)(nil)
	_ RuleStore      = (*BadgerStore)(nil)
	_ AnomalyStore   = (*BadgerStore)(nil)
	_ Store          = (*BadgerStore)(nil)
)

// BadgerStore provides persistent storage using BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	stopCh chan struct{}
}

// Prefix keys for different data types.
const (
	prefixExecutions = "executions/"
	prefixPlaybooks  = "playbooks/"
	prefixRules      = "rules/"
	prefixAnomalies  = "anomalies/"
)

// NewBadgerStore opens (or creates) a BadgerDB store under dataDir.
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	dbPath := filepath.Join(dataDir, "soar.db")

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.ValueLogFileSize = 64 << 20 // 64MB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		stopCh: make(chan struct{}),
	}

	go s.runGC()

	return s, nil
}

// Close closes the database and stops background goroutines.
func (s *BadgerStore) Close() error {
	close(s.stopCh)
	return s.db.Close()
}

// runGC runs periodic value-log garbage collection.
func (s *BadgerStore) runGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == badger.ErrNoRewrite {
					break
				}
				if err != nil {
					break
				}
			}
		}
	}
}

// create stores a JSON value under key, failing with exists if the key
// is already present.
func (s *BadgerStore) create(key []byte, v any, exists error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return exists
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// update replaces the JSON value under key, failing with notFound if
// the key is absent.
func (s *BadgerStore) update(key []byte, v any, notFound error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return notFound
		}
		if err != nil {
			return err
		}

		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// get loads the JSON value under key into out.
func (s *BadgerStore) get(key []byte, out any, notFound error) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return notFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// remove deletes the key, failing with notFound if it is absent.
func (s *BadgerStore) remove(key []byte, notFound error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return notFound
		}
		if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// scan calls fn with every value stored under prefix.
func (s *BadgerStore) scan(prefix string, fn func(val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// Execution operations

// CreateExecution stores a new execution record.
func (s *BadgerStore) CreateExecution(rec *models.ExecutionRecord) error {
	return s.create(executionKey(rec.ID), rec, models.ErrExecutionExists)
}

// UpdateExecution replaces an existing execution record.
func (s *BadgerStore) UpdateExecution(rec *models.ExecutionRecord) error {
	return s.update(executionKey(rec.ID), rec, models.ErrExecutionNotFound)
}

// GetExecution retrieves an execution record by ID.
func (s *BadgerStore) GetExecution(id string) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord
	if err := s.get(executionKey(id), &rec, models.ErrExecutionNotFound); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListExecutions returns all execution records, newest start time first.
func (s *BadgerStore) ListExecutions() ([]*models.ExecutionRecord, error) {
	var recs []*models.ExecutionRecord
	err := s.scan(prefixExecutions, func(val []byte) error {
		var rec models.ExecutionRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			return err
		}
		recs = append(recs, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].StartTime.After(recs[j].StartTime)
	})
	return recs, nil
}

// PruneExecutions deletes terminal records that started before cutoff.
func (s *BadgerStore) PruneExecutions(cutoff time.Time) (int, error) {
	recs, err := s.ListExecutions()
	if err != nil {
		return 0, err
	}

	pruned := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range recs {
			if !rec.Status.IsTerminal() || !rec.StartTime.Before(cutoff) {
				continue
			}
			if err := txn.Delete(executionKey(rec.ID)); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

// Playbook operations

// CreatePlaybook stores a new playbook definition.
func (s *BadgerStore) CreatePlaybook(pb *models.Playbook) error {
	return s.create(playbookKey(pb.ID), pb, models.ErrPlaybookExists)
}

// UpdatePlaybook replaces an existing playbook definition.
func (s *BadgerStore) UpdatePlaybook(pb *models.Playbook) error {
	return s.update(playbookKey(pb.ID), pb, models.ErrPlaybookNotFound)
}

// GetPlaybook retrieves a playbook definition by ID.
func (s *BadgerStore) GetPlaybook(id string) (*models.Playbook, error) {
	var pb models.Playbook
	if err := s.get(playbookKey(id), &pb, models.ErrPlaybookNotFound); err != nil {
		return nil, err
	}
	return &pb, nil
}

// DeletePlaybook deletes a playbook definition by ID.
func (s *BadgerStore) DeletePlaybook(id string) error {
	return s.remove(playbookKey(id), models.ErrPlaybookNotFound)
}

// ListPlaybooks returns all playbook definitions, most recently updated first.
func (s *BadgerStore) ListPlaybooks() ([]*models.Playbook, error) {
	var pbs []*models.Playbook
	err := s.scan(prefixPlaybooks, func(val []byte) error {
		var pb models.Playbook
		if err := json.Unmarshal(val, &pb); err != nil {
			return err
		}
		pbs = append(pbs, &pb)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pbs, func(i, j int) bool {
		return pbs[i].UpdatedAt.After(pbs[j].UpdatedAt)
	})
	return pbs, nil
}

// Rule operations

// CreateRule stores a new detection rule.
func (s *BadgerStore) CreateRule(r *models.Rule) error {
	return s.create(ruleKey(r.ID), r, models.ErrRuleExists)
}

// UpdateRule replaces an existing detection rule.
func (s *BadgerStore) UpdateRule(r *models.Rule) error {
	return s.update(ruleKey(r.ID), r, models.ErrRuleNotFound)
}

// GetRule retrieves a detection rule by ID.
func (s *BadgerStore) GetRule(id string) (*models.Rule, error) {
	var r models.Rule
	if err := s.get(ruleKey(id), &r, models.ErrRuleNotFound); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRule deletes a detection rule by ID.
func (s *BadgerStore) DeleteRule(id string) error {
	return s.remove(ruleKey(id), models.ErrRuleNotFound)
}

// ListRules returns all detection rules, most recently updated first.
func (s *BadgerStore) ListRules() ([]*models.Rule, error) {
	var rules []*models.Rule
	err := s.scan(prefixRules, func(val []byte) error {
		var r models.Rule
		if err := json.Unmarshal(val, &r); err != nil {
			return err
		}
		rules = append(rules, &r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].UpdatedAt.After(rules[j].UpdatedAt)
	})
	return rules, nil
}

// Anomaly operations

// CreateAnomaly stores a new anomaly.
func (s *BadgerStore) CreateAnomaly(a *models.Anomaly) error {
	return s.create(anomalyKey(a.ID), a, models.ErrAnomalyExists)
}

// GetAnomaly retrieves an anomaly by ID.
func (s *BadgerStore) GetAnomaly(id string) (*models.Anomaly, error) {
	var a models.Anomaly
	if err := s.get(anomalyKey(id), &a, models.ErrAnomalyNotFound); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnomalies returns all anomalies, newest detection time first.
func (s *BadgerStore) ListAnomalies() ([]*models.Anomaly, error) {
	var as []*models.Anomaly
	err := s.scan(prefixAnomalies, func(val []byte) error {
		var a models.Anomaly
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		as = append(as, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(as, func(i, j int) bool {
		return as[i].DetectedAt.After(as[j].DetectedAt)
	})
	return as, nil
}

// Key helpers

func executionKey(id string) []byte {
	return []byte(prefixExecutions + id)
}

func playbookKey(id string) []byte {
	return []byte(prefixPlaybooks + id)
}

func ruleKey(id string) []byte {
	return []byte(prefixRules + id)
}

func anomalyKey(id string) []byte {
	return []byte(prefixAnomalies + id)
}
