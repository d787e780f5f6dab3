package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleet-alerts/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Evaluator inspects one domain and reports the entities violating its threshold.
type Evaluator interface {
	Type() models.AlertType
	Evaluate(ctx context.Context) (Evaluation, error)
}

// Notifier receives the alerts that entered CRITICAL during a pass.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert *models.Alert)
	NotifyDigest(ctx context.Context, alertType models.AlertType, fired []*models.Alert, snapshot []Finding)
}

// RunResult summarizes one reconciliation pass.
type RunResult struct {
	RunID    string           `json:"runId"`
	Type     models.AlertType `json:"type"`
	Created  int              `json:"created"`
	Updated  int              `json:"updated"`
	Resolved int              `json:"resolved"`
	Failed   int              `json:"failed"`
	Fired    int              `json:"fired"`
	Findings []Finding        `json:"findings"`
	Upcoming []Finding        `json:"upcoming,omitempty"`
	Overdue  []Finding        `json:"overdue,omitempty"`
}

func (r RunResult) changed() bool {
	return r.Created+r.Updated+r.Resolved > 0
}

// Engine reconciles evaluator findings against stored alerts.
//
// For one alert type, at most one open alert exists per match key. Passes of
// the same type are serialized through the Locker; passes of different types
// never touch each other's alerts.
type Engine struct {
	store    AlertStore
	notifier Notifier
	locker   Locker
	clock    Clock
	logger   *zap.Logger
	recorder Recorder
	stats    StatsInvalidator

	mu         sync.RWMutex
	evaluators map[models.AlertType]Evaluator
}

func NewEngine(store AlertStore, notifier Notifier, locker Locker, clock Clock, logger *zap.Logger) *Engine {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      store,
		notifier:   notifier,
		locker:     locker,
		clock:      clock,
		logger:     logger.With(zap.String("component", "alert-engine")),
		recorder:   nopRecorder{},
		evaluators: make(map[models.AlertType]Evaluator),
	}
}

func (e *Engine) SetRecorder(r Recorder) {
	if r != nil {
		e.recorder = r
	}
}

func (e *Engine) SetStatsInvalidator(s StatsInvalidator) {
	e.stats = s
}

// Register adds an evaluator, replacing any previous one of the same type.
func (e *Engine) Register(ev Evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluators[ev.Type()] = ev
}

// Types lists the alert types with a registered evaluator, in display order.
func (e *Engine) Types() []models.AlertType {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var types []models.AlertType
	for _, t := range models.AlertTypes {
		if _, ok := e.evaluators[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// Run evaluates one alert type and reconciles the findings. Scheduled and
// manual triggers both go through here.
func (e *Engine) Run(ctx context.Context, t models.AlertType) (RunResult, error) {
	e.mu.RLock()
	ev, ok := e.evaluators[t]
	e.mu.RUnlock()
	if !ok {
		return RunResult{Type: t}, fmt.Errorf("%w: no evaluator registered for %q", ErrUnknownAlertType, t)
	}

	evaluation, err := ev.Evaluate(ctx)
	if err != nil {
		e.recorder.PassFailed(t)
		e.logger.Error("evaluation failed, pass aborted", zap.String("alert_type", string(t)), zap.Error(err))
		return RunResult{Type: t}, fmt.Errorf("evaluate %s: %w", t, err)
	}

	result, err := e.Reconcile(ctx, t, evaluation.Findings)
	result.Upcoming = evaluation.Upcoming
	result.Overdue = evaluation.Overdue
	return result, err
}

// RunAll runs every registered evaluator concurrently. A failing type does not
// stop the others; the first error is returned alongside all results.
func (e *Engine) RunAll(ctx context.Context) (map[models.AlertType]RunResult, error) {
	types := e.Types()

	var (
		mu      sync.Mutex
		results = make(map[models.AlertType]RunResult, len(types))
		g       errgroup.Group
	)

	for _, t := range types {
		g.Go(func() error {
			result, err := e.Run(ctx, t)
			mu.Lock()
			results[t] = result
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	return results, err
}

// Reconcile brings the stored alerts of type t in line with findings: matching
// open alerts are refreshed, new ones created, and open alerts without a
// finding are resolved. A failed save skips that one alert only.
func (e *Engine) Reconcile(ctx context.Context, t models.AlertType, findings []Finding) (RunResult, error) {
	result := RunResult{RunID: uuid.NewString(), Type: t, Findings: findings}
	if result.Findings == nil {
		result.Findings = []Finding{}
	}
	if !t.Valid() {
		return result, fmt.Errorf("%w: %q", ErrUnknownAlertType, t)
	}

	log := e.logger.With(zap.String("run_id", result.RunID), zap.String("alert_type", string(t)))
	started := time.Now()

	release, lost, err := Acquire(ctx, e.locker, LockKey(t))
	if err != nil {
		e.recorder.PassFailed(t)
		log.Error("could not acquire reconciliation lock", zap.Error(err))
		if !errors.Is(err, ErrLockNotAcquired) {
			err = fmt.Errorf("%w: %v", ErrLockNotAcquired, err)
		}
		return result, err
	}

	fired, err := e.reconcileLocked(ctx, t, findings, lost, &result, log)
	release()

	// alerts saved before an abort are real and still get notified
	if len(fired) > 0 {
		result.Fired = len(fired)
		e.dispatch(ctx, t, fired, findings, log)
	}

	if result.changed() && e.stats != nil {
		e.stats.InvalidateAlertStats(context.WithoutCancel(ctx))
	}

	if err != nil {
		e.recorder.PassFailed(t)
		log.Error("reconciliation aborted",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("resolved", result.Resolved),
			zap.Error(err),
		)
		return result, err
	}

	e.recorder.ObservePass(result, time.Since(started))
	log.Info("reconciliation pass finished",
		zap.Int("findings", len(findings)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("resolved", result.Resolved),
		zap.Int("failed", result.Failed),
		zap.Int("fired", result.Fired),
	)
	return result, nil
}

// reconcileLocked applies findings while the lock is held. It stops before
// the next write once lost is closed and returns the alerts fired so far.
func (e *Engine) reconcileLocked(ctx context.Context, t models.AlertType, findings []Finding, lost <-chan struct{}, result *RunResult, log *zap.Logger) ([]*models.Alert, error) {
	stopped := func() error {
		if leaseLost(lost) {
			return fmt.Errorf("%w: %s", ErrLeaseLost, LockKey(t))
		}
		return nil
	}

	open, err := e.store.FindOpenByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load open %s alerts: %w", t, err)
	}

	index := make(map[string]*models.Alert, len(open))
	for _, a := range open {
		if a.AlertType != t || !a.IsOpen() {
			continue
		}
		key, err := MatchKey(t, a.ReferenceType, a.ReferenceID, a.Title)
		if err != nil {
			return nil, err
		}
		if prev, dup := index[key]; dup {
			// left unmatched so this pass resolves it
			log.Warn("duplicate open alert", zap.String("key", key), zap.Int64("kept", prev.ID), zap.Int64("duplicate", a.ID))
			continue
		}
		index[key] = a
	}

	now := e.clock()
	matched := make(map[int64]bool, len(open))
	var fired []*models.Alert

	for _, f := range findings {
		severity, err := Classify(t, f)
		if err != nil {
			return nil, err
		}
		key, err := MatchKey(t, f.ReferenceType, f.ReferenceID, f.Title)
		if err != nil {
			return nil, err
		}

		if existing, ok := index[key]; ok {
			matched[existing.ID] = true
			if existing.Message == f.Message && existing.Severity == severity {
				continue
			}

			if err := stopped(); err != nil {
				return fired, err
			}
			wasCritical := existing.Severity.IsCritical()
			next := *existing
			next.Message = f.Message
			next.Severity = severity

			saved, err := e.store.Save(ctx, &next)
			if err != nil {
				result.Failed++
				log.Error("failed to update alert", zap.Int64("alert_id", existing.ID), zap.String("key", key), zap.Error(err))
				continue
			}
			*existing = *saved
			result.Updated++
			if !wasCritical && severity.IsCritical() {
				fired = append(fired, saved)
			}
			continue
		}

		alert := &models.Alert{
			AlertType:     t,
			Severity:      severity,
			Status:        models.AlertStatusActive,
			Title:         f.Title,
			Message:       f.Message,
			ReferenceType: f.ReferenceType,
			ReferenceID:   f.ReferenceID,
			VehicleRef:    f.VehicleRef,
			CreatedAt:     now,
		}
		if err := stopped(); err != nil {
			return fired, err
		}
		saved, err := e.store.Save(ctx, alert)
		if err != nil {
			result.Failed++
			log.Error("failed to create alert", zap.String("key", key), zap.Error(err))
			continue
		}
		index[key] = saved
		matched[saved.ID] = true
		result.Created++
		if severity.IsCritical() {
			fired = append(fired, saved)
		}
	}

	for _, a := range open {
		if matched[a.ID] || a.AlertType != t || !a.IsOpen() {
			continue
		}
		if err := stopped(); err != nil {
			return fired, err
		}
		resolved := *a
		resolved.Status = models.AlertStatusResolved
		resolvedAt := now
		resolved.ResolvedAt = &resolvedAt

		if _, err := e.store.Save(ctx, &resolved); err != nil {
			result.Failed++
			log.Error("failed to resolve alert", zap.Int64("alert_id", a.ID), zap.Error(err))
			continue
		}
		result.Resolved++
	}

	return fired, nil
}

func (e *Engine) dispatch(ctx context.Context, t models.AlertType, fired []*models.Alert, findings []Finding, log *zap.Logger) {
	if e.notifier == nil {
		return
	}

	mode, err := DispatchModeFor(t)
	if err != nil {
		log.Error("no dispatch mode", zap.Error(err))
		return
	}

	// notifications outlive a cancelled caller; the dispatcher bounds them itself
	ctx = context.WithoutCancel(ctx)
	switch mode {
	case DispatchPerAlert:
		for _, a := range fired {
			e.notifier.NotifyAlert(ctx, a)
		}
	case DispatchDigest:
		e.notifier.NotifyDigest(ctx, t, fired, DigestSnapshot(t, findings))
	}
}

// PurgeResolved deletes resolved alerts whose resolution is older than retention.
func (e *Engine) PurgeResolved(ctx context.Context, retention time.Duration) (int64, error) {
	purger, ok := e.store.(PurgeStore)
	if !ok {
		return 0, errors.New("alert store does not support purging")
	}

	cutoff := e.clock().Add(-retention)
	n, err := purger.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge resolved alerts: %w", err)
	}

	if n > 0 && e.stats != nil {
		e.stats.InvalidateAlertStats(context.WithoutCancel(ctx))
	}
	e.logger.Info("purged resolved alerts", zap.Int64("deleted", n), zap.Time("before", cutoff))
	return n, nil
}
