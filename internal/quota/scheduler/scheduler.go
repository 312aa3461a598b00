// Package scheduler owns the live quota checkers: it polls them on their intervals,
// persists successful results and serves the latest and historical snapshots.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/zhenzou/executors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"

	"github.com/looplj/quotahub/internal/log"
	"github.com/looplj/quotahub/internal/pkg/xtime"
	"github.com/looplj/quotahub/internal/quota"
	"github.com/looplj/quotahub/internal/quota/checker"
	"github.com/looplj/quotahub/internal/quota/estimator"
	"github.com/looplj/quotahub/internal/quota/store"
)

const (
	LatestLimit         = 100
	HistoryLimit        = 1000
	DefaultQueryTimeout = 15 * time.Second
)

var ErrQueryTimeout = errors.New("quota query timed out")

// SnapshotStore is the storage the scheduler writes polls to and reads them back from.
type SnapshotStore interface {
	Insert(ctx context.Context, snap *quota.Snapshot) error
	Select(ctx context.Context, q store.Query) ([]quota.Snapshot, error)
}

type Params struct {
	fx.In

	Config        Config
	Store         SnapshotStore
	Registry      *checker.Registry           `optional:"true"`
	MeterProvider metric.MeterProvider        `optional:"true"`
	Executor      executors.ScheduledExecutor `optional:"true"`
}

type Scheduler struct {
	registry     *checker.Registry
	store        SnapshotStore
	executor     executors.ScheduledExecutor
	sweepCron    string
	queryTimeout time.Duration
	instruments  *instruments

	// intervalOf is replaced in tests to poll faster than once a minute.
	intervalOf func(cfg quota.CheckerConfig) time.Duration

	mu          sync.RWMutex
	checkers    map[string]checker.Checker
	timers      map[string]context.CancelFunc
	cancelSweep func()
}

func New(params Params) *Scheduler {
	registry := params.Registry
	if registry == nil {
		registry = checker.Default()
	}

	if len(params.Config.Defaults) > 0 {
		registry.SetDefaults(params.Config.Defaults)
	}

	queryTimeout := params.Config.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	return &Scheduler{
		registry:     registry,
		store:        params.Store,
		executor:     params.Executor,
		sweepCron:    params.Config.SweepCron,
		queryTimeout: queryTimeout,
		instruments:  newInstruments(params.MeterProvider),
		intervalOf:   quota.CheckerConfig.Interval,
		checkers:     make(map[string]checker.Checker),
		timers:       make(map[string]context.CancelFunc),
	}
}

// Initialize builds a checker per enabled config, runs each once and then arms its periodic poll.
// A config that fails to build is logged and skipped; the returned error aggregates those
// failures for diagnostics and never means the other checkers were not started.
func (s *Scheduler) Initialize(ctx context.Context, configs []quota.CheckerConfig) error {
	var (
		errs    *multierror.Error
		started []checker.Checker
	)

	s.mu.Lock()

	for _, cfg := range configs {
		if !cfg.Enabled {
			log.Info(ctx, "quota checker disabled, skipping",
				log.String("checker_id", cfg.ID),
				log.String("type", cfg.Type))

			continue
		}

		if _, exists := s.checkers[cfg.ID]; exists {
			err := fmt.Errorf("duplicate quota checker id %q", cfg.ID)
			log.Warn(ctx, "quota checker already registered, skipping", log.String("checker_id", cfg.ID))
			errs = multierror.Append(errs, err)

			continue
		}

		c, err := s.create(cfg)
		if err != nil {
			log.Error(ctx, "failed to create quota checker",
				log.String("checker_id", cfg.ID),
				log.String("provider", cfg.Provider),
				log.String("type", cfg.Type),
				log.Cause(err))
			errs = multierror.Append(errs, fmt.Errorf("checker %s: %w", cfg.ID, err))

			continue
		}

		s.checkers[cfg.ID] = c
		started = append(started, c)
	}

	s.mu.Unlock()

	log.Info(ctx, "quota checkers registered",
		log.Int("registered", len(started)),
		log.Int("configured", len(configs)))

	for _, c := range started {
		s.runCheck(ctx, c)
		s.schedule(c)
	}

	s.scheduleSweep(ctx)

	return errs.ErrorOrNil()
}

func (s *Scheduler) create(cfg quota.CheckerConfig) (c checker.Checker, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("constructor panic: %v", r)
		}
	}()

	return s.registry.Create(cfg.Type, cfg)
}

func (s *Scheduler) schedule(c checker.Checker) {
	interval := s.intervalOf(c.Config())
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if _, ok := s.checkers[c.ID()]; !ok {
		// Stopped while the first run was in flight.
		s.mu.Unlock()
		cancel()

		return
	}

	s.timers[c.ID()] = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}

				// In-flight polls outlive Stop.
				s.runCheck(context.WithoutCancel(ctx), c)
			}
		}
	}()

	log.Debug(ctx, "quota checker scheduled",
		log.String("checker_id", c.ID()),
		log.Duration("interval", interval))
}

func (s *Scheduler) scheduleSweep(ctx context.Context) {
	if s.sweepCron == "" || s.executor == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelSweep != nil {
		return
	}

	cancel, err := s.executor.ScheduleFuncAtCronRate(
		func(ctx context.Context) {
			s.RunAll(ctx)
		},
		executors.CRONRule{Expr: s.sweepCron},
	)
	if err != nil {
		log.Error(ctx, "failed to schedule quota sweep", log.String("cron", s.sweepCron), log.Cause(err))
		return
	}

	s.cancelSweep = cancel

	log.Info(ctx, "quota sweep scheduled", log.String("cron", s.sweepCron))
}

// runCheck polls c and persists the outcome. It never panics.
func (s *Scheduler) runCheck(ctx context.Context, c checker.Checker) *quota.CheckResult {
	result := s.check(ctx, c)
	s.instruments.recordCheck(ctx, result)

	if !result.Success {
		log.Warn(ctx, "quota check failed",
			log.String("checker_id", result.CheckerID),
			log.String("provider", result.Provider),
			log.String("error", result.Error))
	}

	// Row failures are logged inside PersistResult.
	_ = s.PersistResult(ctx, result)

	return result
}

func (s *Scheduler) check(ctx context.Context, c checker.Checker) (result *quota.CheckResult) {
	cfg := c.Config()

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "quota checker panicked", log.String("checker_id", cfg.ID), log.Any("panic", r))

			result = &quota.CheckResult{
				Provider:  cfg.Provider,
				CheckerID: cfg.ID,
				CheckedAt: xtime.Now(),
				Error:     fmt.Sprintf("checker panic: %v", r),
			}
		}
	}()

	result = c.CheckQuota(ctx)
	if result == nil {
		result = &quota.CheckResult{
			Provider:  cfg.Provider,
			CheckerID: cfg.ID,
			CheckedAt: xtime.Now(),
			Error:     "checker returned no result",
		}
	}

	return result
}

// RunCheckNow polls the checker immediately. It returns nil when the id is unknown.
func (s *Scheduler) RunCheckNow(ctx context.Context, checkerID string) *quota.CheckResult {
	s.mu.RLock()
	c, ok := s.checkers[checkerID]
	s.mu.RUnlock()

	if !ok {
		log.Warn(ctx, "quota checker not found", log.String("checker_id", checkerID))
		return nil
	}

	return s.runCheck(ctx, c)
}

// RunAll polls every registered checker concurrently and waits for all of them.
func (s *Scheduler) RunAll(ctx context.Context) []*quota.CheckResult {
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.checkers))
	checkers := make([]checker.Checker, 0, len(ids))

	for _, id := range ids {
		checkers = append(checkers, s.checkers[id])
	}
	s.mu.RUnlock()

	results := make([]*quota.CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Go(func() {
			results[i] = s.runCheck(ctx, c)
		})
	}

	wg.Wait()

	return results
}

// PersistResult writes one row per window of a successful result. Failed results are not
// recorded. Rows are inserted one by one and a failing row does not stop the others;
// the returned error aggregates the failed rows.
func (s *Scheduler) PersistResult(ctx context.Context, result *quota.CheckResult) error {
	if result == nil || !result.Success {
		return nil
	}

	var errs *multierror.Error

	for _, snap := range toSnapshots(result) {
		s.instruments.recordWindow(ctx, &snap)

		if err := s.store.Insert(ctx, &snap); err != nil {
			s.instruments.recordPersistFailure(ctx, &snap)
			log.Error(ctx, "failed to persist quota snapshot",
				log.String("checker_id", snap.CheckerID),
				log.String("provider", snap.Provider),
				log.String("window_type", string(snap.WindowType)),
				log.Cause(err))

			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

func toSnapshots(result *quota.CheckResult) []quota.Snapshot {
	checkedAt := result.CheckedAt.UnixMilli()

	build := func(w quota.Window, groupID *string) quota.Snapshot {
		return quota.Snapshot{
			Provider:           result.Provider,
			CheckerID:          result.CheckerID,
			GroupID:            groupID,
			WindowType:         w.WindowType,
			WindowLabel:        w.WindowLabel,
			Description:        w.Description,
			CheckedAt:          checkedAt,
			Limit:              w.Limit,
			Used:               w.Used,
			Remaining:          w.Remaining,
			UtilizationPercent: w.UtilizationPercent,
			Unit:               w.Unit,
			ResetsAt:           xtime.UnixMilli(w.ResetsAt),
			Status:             w.Status,
			Success:            true,
		}
	}

	var snaps []quota.Snapshot

	switch data := result.Data.(type) {
	case quota.Windows:
		for _, w := range data {
			snaps = append(snaps, build(w, nil))
		}
	case quota.Groups:
		for _, g := range data {
			groupID := g.GroupID
			for _, w := range g.Windows {
				snaps = append(snaps, build(w, &groupID))
			}
		}
	}

	return snaps
}

// CheckerIDs returns the registered checker ids in sorted order.
func (s *Scheduler) CheckerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Sorted(maps.Keys(s.checkers))
}

// LatestQuota returns the newest snapshot of each window type of the checker, with the
// seconds until reset and a usage forecast built from the fetched rows.
func (s *Scheduler) LatestQuota(ctx context.Context, checkerID string) ([]quota.LatestWindow, error) {
	rows, err := s.query(ctx, store.Query{CheckerID: checkerID, Limit: LatestLimit})
	if err != nil {
		return nil, err
	}

	seen := make(map[quota.WindowType]struct{}, len(rows))
	latest := make([]quota.LatestWindow, 0)

	for _, row := range rows {
		if _, ok := seen[row.WindowType]; ok {
			continue
		}

		seen[row.WindowType] = struct{}{}

		latest = append(latest, quota.LatestWindow{
			Snapshot:       row,
			ResetInSeconds: checker.ResetSecondsFromMillis(row.ResetsAt),
			Estimation: estimator.EstimateUsageAtReset(estimator.Input{
				CheckerID:   checkerID,
				WindowType:  row.WindowType,
				GroupID:     row.GroupID,
				CurrentUsed: row.Used,
				Limit:       row.Limit,
				ResetsAt:    xtime.FromUnixMilli(row.ResetsAt),
			}, rows),
		})
	}

	return latest, nil
}

// QuotaHistory returns up to HistoryLimit snapshots of the checker, newest first.
// An empty windowType and a nil since disable the respective filter.
func (s *Scheduler) QuotaHistory(ctx context.Context, checkerID string, windowType quota.WindowType, since *time.Time) ([]quota.Snapshot, error) {
	rows, err := s.query(ctx, store.Query{
		CheckerID:  checkerID,
		WindowType: windowType,
		Since:      xtime.UnixMilli(since),
		Limit:      HistoryLimit,
	})
	if err != nil {
		return nil, err
	}

	if rows == nil {
		rows = []quota.Snapshot{}
	}

	return rows, nil
}

type queryResult struct {
	rows []quota.Snapshot
	err  error
}

// query races the select against the query timeout. A timed out select is left to finish on its own.
func (s *Scheduler) query(ctx context.Context, q store.Query) ([]quota.Snapshot, error) {
	done := make(chan queryResult, 1)

	go func() {
		rows, err := s.store.Select(context.WithoutCancel(ctx), q)
		done <- queryResult{rows: rows, err: err}
	}()

	timer := time.NewTimer(s.queryTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.rows, r.err
	case <-timer.C:
		log.Warn(ctx, "quota query timed out",
			log.String("checker_id", q.CheckerID),
			log.Duration("timeout", s.queryTimeout))

		return nil, fmt.Errorf("%w after %s", ErrQueryTimeout, s.queryTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop cancels every periodic poll and drops all checkers. Polls already running are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, cancel := range s.timers {
		cancel()
		delete(s.timers, id)
	}

	if s.cancelSweep != nil {
		s.cancelSweep()
		s.cancelSweep = nil
	}

	clear(s.checkers)
}
