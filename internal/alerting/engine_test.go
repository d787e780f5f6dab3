package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"fleet-alerts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(store *memStore, now time.Time) (*Engine, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewEngine(store, notifier, NewLocalLocker(), fixedClock(now), zap.NewNop()), notifier
}

func docFinding(refID int64, doc string, days int) Finding {
	title := doc + " - TR-" + string(rune('A'+refID))
	return Finding{
		ReferenceType: models.ReferenceTruckDocument,
		ReferenceID:   refID,
		Title:         title,
		Message:       documentMessage(doc, "TR", days),
		Urgency:       days,
	}
}

func stockFinding(partID int64, qty int) Finding {
	return Finding{
		ReferenceType: models.ReferencePartStock,
		ReferenceID:   partID,
		Title:         "Stock - P",
		Message:       stockMessage(&models.Part{Reference: "P", MinimumThreshold: 10}, qty),
		Urgency:       qty,
	}
}

func TestReconcile_CreatesAlerts(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)

	result, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{
		docFinding(1, "Assurance", 3),
		docFinding(2, "Assurance", 20),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Resolved)
	assert.Equal(t, 1, result.Fired)
	assert.NotEmpty(t, result.RunID)

	alerts := store.all()
	require.Len(t, alerts, 2)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.SeverityInfo, alerts[1].Severity)
	for _, a := range alerts {
		assert.Equal(t, models.AlertStatusActive, a.Status)
		assert.Equal(t, models.AlertTypeDocument, a.AlertType)
		assert.True(t, a.CreatedAt.Equal(testNow))
		assert.Nil(t, a.ResolvedAt)
		assert.Nil(t, a.AcknowledgedAt)
	}

	require.Equal(t, 1, notifier.alertCount())
	assert.Equal(t, alerts[0].ID, notifier.alerts[0].ID)
	assert.Zero(t, notifier.digestCount())
}

func TestReconcile_IdempotentOnUnchangedFindings(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)
	findings := []Finding{docFinding(1, "Assurance", 3), docFinding(2, "Licence", 12)}

	_, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, findings)
	require.NoError(t, err)
	before := store.all()
	saves := store.saveCount()

	result, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, findings)
	require.NoError(t, err)

	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Resolved)
	assert.Zero(t, result.Fired)
	assert.Equal(t, saves, store.saveCount())
	assert.Equal(t, before, store.all())
	assert.Equal(t, 1, notifier.alertCount())
}

func TestReconcile_AutoResolveMutatesOnlyStatusAndResolvedAt(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{docFinding(1, "Assurance", 3)})
	require.NoError(t, err)
	original := store.all()[0]

	later := testNow.Add(26 * time.Hour)
	engine.clock = fixedClock(later)
	result, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Resolved)
	assert.Equal(t, []Finding{}, result.Findings)

	got := store.get(original.ID)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(later))

	expected := original
	expected.Status = models.AlertStatusResolved
	expected.ResolvedAt = got.ResolvedAt
	assert.Equal(t, expected, got)
	assert.Equal(t, 1, notifier.alertCount(), "resolution never notifies")
}

func TestReconcile_ResolvedAlertIsNeverRematched(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	f := docFinding(1, "Assurance", 20)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{f})
	require.NoError(t, err)
	_, err = engine.Reconcile(context.Background(), models.AlertTypeDocument, nil)
	require.NoError(t, err)

	result, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{f})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	alerts := store.all()
	require.Len(t, alerts, 2)
	assert.Equal(t, models.AlertStatusResolved, alerts[0].Status)
	assert.Equal(t, models.AlertStatusActive, alerts[1].Status)
}

func TestReconcile_TransitionOnlyFiring(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)
	ctx := context.Background()

	// created critical: fires
	r, err := engine.Reconcile(ctx, models.AlertTypeStock, []Finding{stockFinding(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Fired)

	// held critical: silent
	r, err = engine.Reconcile(ctx, models.AlertTypeStock, []Finding{stockFinding(1, 0)})
	require.NoError(t, err)
	assert.Zero(t, r.Fired)

	// drops to warning: silent
	r, err = engine.Reconcile(ctx, models.AlertTypeStock, []Finding{stockFinding(1, 5)})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Zero(t, r.Fired)

	// re-enters critical: fires again
	r, err = engine.Reconcile(ctx, models.AlertTypeStock, []Finding{stockFinding(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 1, r.Fired)

	// warning then critical once more
	_, err = engine.Reconcile(ctx, models.AlertTypeStock, []Finding{stockFinding(1, 3)})
	require.NoError(t, err)
	r, err = engine.Reconcile(ctx, models.AlertTypeStock, []Finding{stockFinding(1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Fired)

	assert.Equal(t, 3, notifier.digestCount())
	assert.Zero(t, notifier.alertCount(), "stock never uses the per-alert path")
	assert.Len(t, store.all(), 1, "one alert across the whole oscillation")
}

func TestReconcile_DigestCarriesSnapshot(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{
		stockFinding(1, 0),
		stockFinding(2, 4),
	})
	require.NoError(t, err)

	// part 3 runs out: part 1 stays critical and shows up in the snapshot only
	_, err = engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{
		stockFinding(1, 0),
		stockFinding(2, 4),
		stockFinding(3, 0),
	})
	require.NoError(t, err)

	require.Equal(t, 2, notifier.digestCount())
	last := notifier.digests[1]
	assert.Equal(t, models.AlertTypeStock, last.alertType)
	require.Len(t, last.fired, 1)
	assert.Equal(t, int64(3), last.fired[0].ReferenceID)
	require.Len(t, last.snapshot, 2)
	assert.Equal(t, int64(1), last.snapshot[0].ReferenceID)
	assert.Equal(t, int64(3), last.snapshot[1].ReferenceID)
}

func TestReconcile_NoDigestWithoutTransition(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{stockFinding(1, 4)})
	require.NoError(t, err)

	assert.Zero(t, notifier.digestCount())
}

func TestReconcile_MultipleDocumentsPerTruck(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	insurance := docFinding(1, "Assurance", 10)
	inspection := docFinding(1, "Visite technique", 12)

	r, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{insurance, inspection})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Created)

	open := store.open(models.AlertTypeDocument)
	require.Len(t, open, 2)
	assert.Equal(t, open[0].ReferenceID, open[1].ReferenceID)

	// insurance renewed
	r, err = engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{inspection})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Resolved)

	open = store.open(models.AlertTypeDocument)
	require.Len(t, open, 1)
	assert.Equal(t, inspection.Title, open[0].Title)
}

func TestReconcile_ScopedToAlertType(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{docFinding(1, "Assurance", 3)})
	require.NoError(t, err)
	_, err = engine.Reconcile(context.Background(), models.AlertTypeMaintenance, []Finding{{
		ReferenceType: models.ReferenceMaintenance, ReferenceID: 1, Title: "Maintenance - Vidange TR", Urgency: 2,
	}})
	require.NoError(t, err)

	r, err := engine.Reconcile(context.Background(), models.AlertTypeStock, nil)
	require.NoError(t, err)
	assert.Zero(t, r.Resolved)

	assert.Len(t, store.open(models.AlertTypeDocument), 1)
	assert.Len(t, store.open(models.AlertTypeMaintenance), 1)
}

func TestReconcile_AcknowledgedAlertStillUpdatedAndResolved(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)
	ackAt := testNow.Add(-time.Hour)
	user := int64(42)

	existing := store.put(models.Alert{
		AlertType:      models.AlertTypeDocument,
		Severity:       models.SeverityWarning,
		Status:         models.AlertStatusAcknowledged,
		Title:          "Assurance - TR-B",
		Message:        "old",
		ReferenceType:  models.ReferenceTruckDocument,
		ReferenceID:    1,
		AcknowledgedBy: &user,
		AcknowledgedAt: &ackAt,
		CreatedAt:      testNow.Add(-48 * time.Hour),
	})

	r, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{docFinding(1, "Assurance", 2)})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 1, r.Fired)
	assert.Equal(t, 1, notifier.alertCount())

	got := store.get(existing.ID)
	assert.Equal(t, models.AlertStatusAcknowledged, got.Status)
	assert.Equal(t, models.SeverityCritical, got.Severity)
	assert.Equal(t, docFinding(1, "Assurance", 2).Message, got.Message)
	assert.Equal(t, &user, got.AcknowledgedBy)
	assert.True(t, got.CreatedAt.Equal(existing.CreatedAt))

	_, err = engine.Reconcile(context.Background(), models.AlertTypeDocument, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, store.get(existing.ID).Status)
}

func TestReconcile_DuplicateOpenAlertsCollapse(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	f := stockFinding(1, 4)

	for i := 0; i < 2; i++ {
		store.put(models.Alert{
			AlertType:     models.AlertTypeStock,
			Severity:      models.SeverityWarning,
			Status:        models.AlertStatusActive,
			Title:         f.Title,
			Message:       f.Message,
			ReferenceType: f.ReferenceType,
			ReferenceID:   f.ReferenceID,
		})
	}

	r, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{f})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Resolved)
	assert.Len(t, store.open(models.AlertTypeStock), 1)
}

func TestReconcile_DuplicateFindingsCreateOnce(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)

	r, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{stockFinding(1, 4), stockFinding(1, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Created)
	assert.Len(t, store.all(), 1)
}

func TestReconcile_PartialSaveFailure(t *testing.T) {
	store := newMemStore()
	store.failSave = func(a *models.Alert) bool { return a.ReferenceID == 2 }
	engine, _ := newTestEngine(store, testNow)

	r, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{
		stockFinding(1, 4),
		stockFinding(2, 4),
		stockFinding(3, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Created)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Fired)
	assert.Len(t, store.all(), 2)
}

func TestReconcile_FailedResolveLeavesAlertOpen(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{stockFinding(1, 4), stockFinding(2, 4)})
	require.NoError(t, err)

	store.failSave = func(a *models.Alert) bool { return a.ReferenceID == 1 }
	r, err := engine.Reconcile(context.Background(), models.AlertTypeStock, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Resolved)
	assert.Equal(t, 1, r.Failed)

	open := store.open(models.AlertTypeStock)
	require.Len(t, open, 1)
	assert.Equal(t, int64(1), open[0].ReferenceID)
}

func TestReconcile_LoadFailureAbortsPass(t *testing.T) {
	store := newMemStore()
	store.loadErr = errStoreDown
	engine, notifier := newTestEngine(store, testNow)
	recorder := &outcomeRecorder{}
	engine.SetRecorder(recorder)

	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{stockFinding(1, 0)})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, store.all())
	assert.Zero(t, notifier.digestCount())
	assert.Equal(t, []models.AlertType{models.AlertTypeStock}, recorder.failures)
}

func TestReconcile_LockFailure(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil, failingLocker{}, fixedClock(testNow), zap.NewNop())

	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{stockFinding(1, 0)})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.Empty(t, store.all())
}

func TestReconcile_StopsWritingOnceLeaseIsLost(t *testing.T) {
	store := newMemStore()
	stale := store.put(models.Alert{
		AlertType:     models.AlertTypeDocument,
		Severity:      models.SeverityInfo,
		Status:        models.AlertStatusActive,
		Title:         "Assurance - TR-J",
		Message:       documentMessage("Assurance", "TR", 25),
		ReferenceType: models.ReferenceTruckDocument,
		ReferenceID:   9,
	})

	locker := &leaseLocker{lost: make(chan struct{})}
	var once sync.Once
	store.failSave = func(*models.Alert) bool {
		// the lease expires right after the first write
		once.Do(func() { close(locker.lost) })
		return false
	}

	notifier := &recordingNotifier{}
	recorder := &outcomeRecorder{}
	engine := NewEngine(store, notifier, locker, fixedClock(testNow), zap.NewNop())
	engine.SetRecorder(recorder)

	result, err := engine.Reconcile(context.Background(), models.AlertTypeDocument, []Finding{
		docFinding(1, "Assurance", 3),
		docFinding(2, "Assurance", 20),
	})
	require.ErrorIs(t, err, ErrLeaseLost)

	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Resolved)
	assert.Len(t, store.all(), 2)
	assert.Equal(t, models.AlertStatusActive, store.get(stale.ID).Status)
	assert.Equal(t, []models.AlertType{models.AlertTypeDocument}, recorder.failures)

	// the critical alert saved before the loss is still announced
	require.Equal(t, 1, notifier.alertCount())
	assert.Equal(t, int64(1), notifier.alerts[0].ReferenceID)
}

func TestAcquire_ChainReportsLeaseLoss(t *testing.T) {
	redisLike := &leaseLocker{lost: make(chan struct{})}
	chain := WithWait(ChainLockers(NewLocalLocker(), redisLike), time.Second)

	release, lost, err := Acquire(context.Background(), chain, LockKey(models.AlertTypeStock))
	require.NoError(t, err)
	defer release()
	require.NotNil(t, lost)
	assert.False(t, leaseLost(lost))

	close(redisLike.lost)
	assert.True(t, leaseLost(lost))

	_, lost, err = Acquire(context.Background(), NewLocalLocker(), "k")
	require.NoError(t, err)
	assert.Nil(t, lost)
	assert.False(t, leaseLost(lost))
}

func TestReconcile_UnknownType(t *testing.T) {
	engine, _ := newTestEngine(newMemStore(), testNow)

	_, err := engine.Reconcile(context.Background(), models.AlertType("FUEL"), nil)
	assert.ErrorIs(t, err, ErrUnknownAlertType)
}

func TestReconcile_ConcurrentPassesNeverDuplicate(t *testing.T) {
	store := newMemStore()
	store.loadDelay = 5 * time.Millisecond
	engine, _ := newTestEngine(store, testNow)

	findings := []Finding{stockFinding(1, 0), stockFinding(2, 4), stockFinding(3, 7)}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, findings)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	open := store.open(models.AlertTypeStock)
	assert.Len(t, open, 3)
	assert.Len(t, store.all(), 3)
}

func TestReconcile_StatsInvalidatedOnChangeOnly(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	inv := &countingInvalidator{}
	engine.SetStatsInvalidator(inv)

	findings := []Finding{stockFinding(1, 4)}
	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, findings)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.count())

	_, err = engine.Reconcile(context.Background(), models.AlertTypeStock, findings)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.count())
}

func TestRun_ManualAndScheduledIdentical(t *testing.T) {
	storeA := newMemStore()
	storeB := newMemStore()
	evaluation := Evaluation{Findings: []Finding{stockFinding(1, 0), stockFinding(2, 5)}}

	engineA, _ := newTestEngine(storeA, testNow)
	engineA.Register(&staticEvaluator{alertType: models.AlertTypeStock, evaluation: evaluation})
	engineB, _ := newTestEngine(storeB, testNow)
	engineB.Register(&staticEvaluator{alertType: models.AlertTypeStock, evaluation: evaluation})

	ra, err := engineA.Run(context.Background(), models.AlertTypeStock)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rb, err := engineB.Run(context.WithoutCancel(ctx), models.AlertTypeStock)
	cancel()
	require.NoError(t, err)

	assert.Equal(t, ra.Created, rb.Created)
	assert.Equal(t, ra.Findings, rb.Findings)
	assert.Equal(t, storeA.all(), storeB.all())
}

func TestRun_MaintenanceCarriesSubsets(t *testing.T) {
	store := newMemStore()
	engine, notifier := newTestEngine(store, testNow)
	src := maintenanceSource{records: []*models.Maintenance{
		maintenanceAt(1, day(-2), models.MaintenanceStatusPlanned),
		maintenanceAt(2, day(1), models.MaintenanceStatusPlanned),
		maintenanceAt(3, day(4), models.MaintenanceStatusPlanned),
	}}
	engine.Register(NewMaintenanceEvaluator(src, fixedClock(testNow), 7))

	r, err := engine.Run(context.Background(), models.AlertTypeMaintenance)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Created)
	assert.Len(t, r.Overdue, 1)
	assert.Len(t, r.Upcoming, 2)
	assert.Equal(t, 1, r.Fired)

	require.Equal(t, 1, notifier.digestCount())
	digest := notifier.digests[0]
	assert.Len(t, digest.fired, 1)
	require.Len(t, digest.snapshot, 2, "overdue and due tomorrow")
	assert.Equal(t, int64(1), digest.snapshot[0].ReferenceID)
	assert.Equal(t, int64(2), digest.snapshot[1].ReferenceID)
}

func TestRun_EvaluationFailureLeavesAlertsUntouched(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	_, err := engine.Reconcile(context.Background(), models.AlertTypeStock, []Finding{stockFinding(1, 4)})
	require.NoError(t, err)

	engine.Register(&staticEvaluator{alertType: models.AlertTypeStock, err: errStoreDown})
	_, err = engine.Run(context.Background(), models.AlertTypeStock)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, store.open(models.AlertTypeStock), 1)
}

func TestRun_NoEvaluator(t *testing.T) {
	engine, _ := newTestEngine(newMemStore(), testNow)

	_, err := engine.Run(context.Background(), models.AlertTypeDocument)
	assert.ErrorIs(t, err, ErrUnknownAlertType)
}

func TestRunAll_FailureDoesNotStopOtherTypes(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	engine.Register(&staticEvaluator{alertType: models.AlertTypeDocument, err: errStoreDown})
	engine.Register(&staticEvaluator{alertType: models.AlertTypeStock, evaluation: Evaluation{Findings: []Finding{stockFinding(1, 4)}}})
	engine.Register(&staticEvaluator{alertType: models.AlertTypeMaintenance, evaluation: Evaluation{}})

	results, err := engine.RunAll(context.Background())
	assert.ErrorIs(t, err, errStoreDown)

	require.Len(t, results, 3)
	assert.Equal(t, 1, results[models.AlertTypeStock].Created)
	assert.Len(t, store.open(models.AlertTypeStock), 1)
	assert.Equal(t, []models.AlertType{models.AlertTypeDocument, models.AlertTypeStock, models.AlertTypeMaintenance}, engine.Types())
}

func TestPurgeResolved(t *testing.T) {
	store := newMemStore()
	engine, _ := newTestEngine(store, testNow)
	inv := &countingInvalidator{}
	engine.SetStatsInvalidator(inv)

	old := testNow.AddDate(0, 0, -100)
	recent := testNow.AddDate(0, 0, -10)
	store.put(models.Alert{AlertType: models.AlertTypeStock, Status: models.AlertStatusResolved, ResolvedAt: &old})
	store.put(models.Alert{AlertType: models.AlertTypeStock, Status: models.AlertStatusResolved, ResolvedAt: &recent})
	store.put(models.Alert{AlertType: models.AlertTypeStock, Status: models.AlertStatusActive})

	n, err := engine.PurgeResolved(context.Background(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, store.all(), 2)
	assert.Equal(t, 1, inv.count())
}

type storeWithoutPurge struct{ AlertStore }

func TestPurgeResolved_Unsupported(t *testing.T) {
	engine := NewEngine(storeWithoutPurge{newMemStore()}, nil, nil, nil, nil)

	_, err := engine.PurgeResolved(context.Background(), time.Hour)
	assert.Error(t, err)
}
