package console

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/logware/soar/internal/models"
	"github.com/logware/soar/internal/notify"
	"github.com/logware/soar/pkg/clock"
	"github.com/logware/soar/pkg/sdk"
)

// DataSource is the narrow client surface the composer consumes. It is
// satisfied by *sdk.Client.
type DataSource interface {
	ListExecutions(ctx context.Context, q sdk.Query) ([]*sdk.Execution, error)
	ListPlaybooks(ctx context.Context) ([]*sdk.Playbook, error)
	ListRules(ctx context.Context) ([]*sdk.Rule, error)
	ListAnomalies(ctx context.Context) ([]*sdk.Anomaly, error)
	AbortExecution(ctx context.Context, id, reason string) (*sdk.AbortResult, error)
	GetSummary(ctx context.Context, q sdk.Query) (*sdk.Summary, error)
}

// Config holds per-surface poll intervals. Zero disables polling for
// that surface; manual refreshes still work.
type Config struct {
	ExecutionsInterval time.Duration
	PlaybooksInterval  time.Duration
	RulesInterval      time.Duration
	AnomaliesInterval  time.Duration
}

// DefaultConfig returns the default poll intervals.
func DefaultConfig() Config {
	return Config{
		ExecutionsInterval: 5 * time.Second,
		PlaybooksInterval:  time.Minute,
		RulesInterval:      time.Minute,
		AnomaliesInterval:  30 * time.Second,
	}
}

// Stats counts composer activity.
type Stats struct {
	Refreshes      uint64
	CoalescedJoins uint64
	StaleDrops     uint64
	Failures       uint64
}

// Selection is UI selection state. It is orthogonal to the fetch
// machines: changing it never dispatches or cancels a fetch.
type Selection struct {
	Tab        string
	RecordID   string
	DetailOpen bool
}

// Console owns the four data surfaces, their poll timers, and the
// executions query. All snapshot reads return copies.
type Console struct {
	ds      DataSource
	clk     clock.Clock
	logger  zerolog.Logger
	notices *notify.Center

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	executions *surface[*sdk.Execution]
	playbooks  *surface[*sdk.Playbook]
	rules      *surface[*sdk.Rule]
	anomalies  *surface[*sdk.Anomaly]

	queryMu sync.Mutex
	query   sdk.Query

	selMu sync.Mutex
	sel   Selection

	updates chan struct{}

	refreshes      atomic.Uint64
	coalescedJoins atomic.Uint64
	staleDrops     atomic.Uint64
	failures       atomic.Uint64

	closeMu   sync.RWMutex
	closing   bool
	closeOnce sync.Once
}

// New creates a Console and starts its poll timers. The notice center
// and clock may be nil; a nil clock means real time.
func New(ds DataSource, cfg Config, logger zerolog.Logger, notices *notify.Center, clk clock.Clock) *Console {
	if clk == nil {
		clk = clock.Real()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Console{
		ds:         ds,
		clk:        clk,
		logger:     logger.With().Str("component", "console").Logger(),
		notices:    notices,
		ctx:        ctx,
		cancel:     cancel,
		executions: newSurface[*sdk.Execution]("executions"),
		playbooks:  newSurface[*sdk.Playbook]("playbooks"),
		rules:      newSurface[*sdk.Rule]("rules"),
		anomalies:  newSurface[*sdk.Anomaly]("anomalies"),
		updates:    make(chan struct{}, 1),
	}

	c.poll(cfg.ExecutionsInterval, c.RefreshExecutions)
	c.poll(cfg.PlaybooksInterval, c.RefreshPlaybooks)
	c.poll(cfg.RulesInterval, c.RefreshRules)
	c.poll(cfg.AnomaliesInterval, c.RefreshAnomalies)

	return c
}

// poll runs refresh on every tick until the console closes.
func (c *Console) poll(interval time.Duration, refresh func()) {
	if interval <= 0 {
		return
	}
	ticker := c.clk.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C():
				refresh()
			}
		}
	}()
}

// spawn runs fn on the console's waitgroup. The lock orders the Add
// against Close's Wait: once Close marks the console closing, no further
// goroutine starts. Reports whether fn was dispatched.
func (c *Console) spawn(fn func()) bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	if c.closing {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
	return true
}

// refreshSurface dispatches a fetch for s unless one is already in
// flight, in which case the request joins it. Cancelled fetches are
// dropped silently; stale completions are counted and discarded.
func refreshSurface[T any](c *Console, s *surface[T], supersede bool, fetch func(context.Context) ([]T, error)) {
	ctx, seq, started, joined := s.begin(c.ctx, supersede)
	if !started {
		if joined {
			c.coalescedJoins.Add(1)
		}
		return
	}

	dispatched := c.spawn(func() {
		items, err := fetch(ctx)
		if err != nil && errors.Is(err, context.Canceled) {
			return
		}
		if !s.finish(seq, c.clk.Now(), items, err) {
			c.staleDrops.Add(1)
			c.logger.Debug().
				Str("surface", s.name).
				Uint64("seq", seq).
				Msg("stale fetch discarded")
			return
		}
		if err != nil {
			c.failures.Add(1)
			c.logger.Warn().Err(err).Str("surface", s.name).Msg("surface fetch failed")
			if c.notices != nil {
				c.notices.Errorf("console", s.name+" fetch failed", err.Error())
			}
		}
		c.notifyChange()
	})
	if dispatched {
		c.refreshes.Add(1)
	}
}

// RefreshExecutions fetches the executions surface with the current query.
func (c *Console) RefreshExecutions() {
	q := c.Query()
	refreshSurface(c, c.executions, false, func(ctx context.Context) ([]*sdk.Execution, error) {
		return c.ds.ListExecutions(ctx, q)
	})
}

// RefreshPlaybooks fetches the playbooks surface.
func (c *Console) RefreshPlaybooks() {
	refreshSurface(c, c.playbooks, false, func(ctx context.Context) ([]*sdk.Playbook, error) {
		return c.ds.ListPlaybooks(ctx)
	})
}

// RefreshRules fetches the rules surface.
func (c *Console) RefreshRules() {
	refreshSurface(c, c.rules, false, func(ctx context.Context) ([]*sdk.Rule, error) {
		return c.ds.ListRules(ctx)
	})
}

// RefreshAnomalies fetches the anomalies surface.
func (c *Console) RefreshAnomalies() {
	refreshSurface(c, c.anomalies, false, func(ctx context.Context) ([]*sdk.Anomaly, error) {
		return c.ds.ListAnomalies(ctx)
	})
}

// RefreshAll dispatches a fetch on every surface.
func (c *Console) RefreshAll() {
	c.RefreshExecutions()
	c.RefreshPlaybooks()
	c.RefreshRules()
	c.RefreshAnomalies()
}

// Query returns the current executions query.
func (c *Console) Query() sdk.Query {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()
	return c.query
}

// SetQuery replaces the executions query. A change dispatches a
// superseding fetch, cancelling any outstanding one.
func (c *Console) SetQuery(q sdk.Query) {
	c.queryMu.Lock()
	changed := c.query != q
	c.query = q
	c.queryMu.Unlock()
	if !changed {
		return
	}

	refreshSurface(c, c.executions, true, func(ctx context.Context) ([]*sdk.Execution, error) {
		return c.ds.ListExecutions(ctx, q)
	})
}

// Executions returns a snapshot of the executions surface.
func (c *Console) Executions() Snapshot[*sdk.Execution] { return c.executions.snapshot() }

// Playbooks returns a snapshot of the playbooks surface.
func (c *Console) Playbooks() Snapshot[*sdk.Playbook] { return c.playbooks.snapshot() }

// Rules returns a snapshot of the rules surface.
func (c *Console) Rules() Snapshot[*sdk.Rule] { return c.rules.snapshot() }

// Anomalies returns a snapshot of the anomalies surface.
func (c *Console) Anomalies() Snapshot[*sdk.Anomaly] { return c.anomalies.snapshot() }

// ExecutionView applies the current query to the cached executions
// snapshot. The server already filters; re-applying client-side is
// idempotent and keeps the view consistent while a query change is still
// in flight.
func (c *Console) ExecutionView() []*sdk.Execution {
	q := c.Query()
	now := c.clk.Now()
	snap := c.executions.snapshot()

	out := make([]*sdk.Execution, 0, len(snap.Items))
	for _, e := range snap.Items {
		if !matchExecution(e, q, now) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Abort requests an abort of id. Fire and forget: the outcome surfaces
// as a notice and the executions surface refreshes. The cached record's
// displayed status is never edited locally.
func (c *Console) Abort(id, reason string) {
	c.spawn(func() {
		ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
		defer cancel()

		_, err := c.ds.AbortExecution(ctx, id, reason)
		switch {
		case err == nil:
			if c.notices != nil {
				c.notices.Infof("console", "abort requested", "abort requested for execution "+id)
			}
		case errors.Is(err, context.Canceled):
			return
		default:
			c.logger.Warn().Err(err).Str("execution_id", id).Msg("abort request failed")
			if c.notices != nil {
				c.notices.Errorf("console", "abort failed",
					"abort of execution "+id+" failed: "+err.Error())
			}
		}
		c.RefreshExecutions()
	})
}

// Summary fetches aggregates for the current query.
func (c *Console) Summary(ctx context.Context) (*sdk.Summary, error) {
	return c.ds.GetSummary(ctx, c.Query())
}

// Selection returns the current UI selection state.
func (c *Console) Selection() Selection {
	c.selMu.Lock()
	defer c.selMu.Unlock()
	return c.sel
}

// SetSelection replaces the UI selection state.
func (c *Console) SetSelection(sel Selection) {
	c.selMu.Lock()
	c.sel = sel
	c.selMu.Unlock()
}

// Updates returns a coalesced change-notification channel: one pending
// signal at most, sent whenever a surface applies a completion.
func (c *Console) Updates() <-chan struct{} {
	return c.updates
}

// Stats returns composer activity counters.
func (c *Console) Stats() Stats {
	return Stats{
		Refreshes:      c.refreshes.Load(),
		CoalescedJoins: c.coalescedJoins.Load(),
		StaleDrops:     c.staleDrops.Load(),
		Failures:       c.failures.Load(),
	}
}

// Close tears down poll timers, cancels in-flight fetches, and waits for
// every composer goroutine to exit. Safe to call more than once.
func (c *Console) Close() {
	c.closeOnce.Do(func() {
		c.closeMu.Lock()
		c.closing = true
		c.closeMu.Unlock()

		c.cancel()
		c.executions.close()
		c.playbooks.close()
		c.rules.close()
		c.anomalies.close()
		c.wg.Wait()
	})
}

func (c *Console) notifyChange() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// matchExecution evaluates the server's own query predicate against a
// served record, so client-side and server-side filtering cannot drift.
func matchExecution(e *sdk.Execution, q sdk.Query, now time.Time) bool {
	rec := models.ExecutionRecord{
		ID:         e.ID,
		SourceType: models.SourceType(e.SourceType),
		SourceName: e.SourceName,
		Status:     models.ExecutionStatus(e.Status),
		StartTime:  e.StartTime,
		TriggeredBy: models.TriggerRef{
			Type: models.TriggerType(e.TriggeredBy.Type),
			Name: e.TriggeredBy.Name,
		},
	}
	mq := models.ExecutionQuery{
		Status: models.ExecutionStatus(q.Status),
		Source: models.SourceType(q.Source),
		Window: models.Window(q.Window),
		Search: q.Search,
	}
	return mq.Match(&rec, now)
}
