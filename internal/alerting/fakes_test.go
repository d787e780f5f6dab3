package alerting

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fleet-alerts/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory AlertStore with failure injection.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	alerts    map[int64]*models.Alert
	saves     int
	loadErr   error
	failSave  func(a *models.Alert) bool
	loadDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[int64]*models.Alert)}
}

func (s *memStore) FindOpenByType(_ context.Context, t models.AlertType) ([]*models.Alert, error) {
	if s.loadDelay > 0 {
		time.Sleep(s.loadDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	var out []*models.Alert
	for _, a := range s.sorted() {
		if a.AlertType == t && a.Status != models.AlertStatusResolved {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, a *models.Alert) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil && s.failSave(a) {
		return nil, errStoreDown
	}

	cp := *a
	if cp.ID == 0 {
		s.nextID++
		cp.ID = s.nextID
	} else if _, ok := s.alerts[cp.ID]; !ok {
		return nil, errors.New("alert not found")
	}
	s.alerts[cp.ID] = &cp
	s.saves++

	out := cp
	return &out, nil
}

func (s *memStore) DeleteResolvedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.alerts {
		if a.Status == models.AlertStatusResolved && a.ResolvedAt != nil && a.ResolvedAt.Before(before) {
			delete(s.alerts, id)
			n++
		}
	}
	return n, nil
}

// put stores a copy as-is, bypassing Save accounting.
func (s *memStore) put(a models.Alert) *models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}
	s.alerts[a.ID] = &a
	out := a
	return &out
}

func (s *memStore) get(id int64) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

func (s *memStore) all() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.sorted() {
		out = append(out, *a)
	}
	return out
}

func (s *memStore) open(t models.AlertType) []models.Alert {
	var out []models.Alert
	for _, a := range s.all() {
		if a.AlertType == t && a.IsOpen() {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) sorted() []*models.Alert {
	out := make([]*models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type digestCall struct {
	alertType models.AlertType
	fired     []*models.Alert
	snapshot  []Finding
}

type recordingNotifier struct {
	mu      sync.Mutex
	alerts  []*models.Alert
	digests []digestCall
}

func (n *recordingNotifier) NotifyAlert(_ context.Context, a *models.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

func (n *recordingNotifier) NotifyDigest(_ context.Context, t models.AlertType, fired []*models.Alert, snapshot []Finding) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digestCall{alertType: t, fired: fired, snapshot: snapshot})
}

func (n *recordingNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *recordingNotifier) digestCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.digests)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateAlertStats(context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis down")
}

// staticEvaluator returns a fixed evaluation or error.
type staticEvaluator struct {
	alertType  models.AlertType
	evaluation Evaluation
	err        error
}

func (s *staticEvaluator) Type() models.AlertType { return s.alertType }

func (s *staticEvaluator) Evaluate(context.Context) (Evaluation, error) {
	return s.evaluation, s.err
}

type truckSource struct {
	trucks []*models.Truck
	err    error
}

func (s truckSource) FindActive(context.Context) ([]*models.Truck, error) {
	var out []*models.Truck
	for _, t := range s.trucks {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, s.err
}

type driverSource struct {
	drivers []*models.Driver
	err     error
}

func (s driverSource) FindActive(context.Context) ([]*models.Driver, error) {
	var out []*models.Driver
	for _, d := range s.drivers {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, s.err
}

type partSource struct {
	parts []*models.Part
	err   error
}

func (s partSource) FindActive(context.Context) ([]*models.Part, error) {
	var out []*models.Part
	for _, p := range s.parts {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, s.err
}

type stockSource struct {
	entries []*models.StockEntry
	err     error
}

func (s stockSource) FindByParts(_ context.Context, ids []int64) ([]*models.StockEntry, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.StockEntry
	for _, e := range s.entries {
		if want[e.PartID] {
			out = append(out, e)
		}
	}
	return out, s.err
}

type maintenanceSource struct {
	records []*models.Maintenance
	err     error
}

func (s maintenanceSource) FindPlannedBetween(_ context.Context, from, to time.Time) ([]*models.Maintenance, error) {
	var out []*models.Maintenance
	for _, m := range s.records {
		if m.Status == models.MaintenanceStatusPlanned && !m.DatePlanned.Before(from) && !m.DatePlanned.After(to) {
			out = append(out, m)
		}
	}
	return out, s.err
}

func (s maintenanceSource) FindPlannedUntil(_ context.Context, until time.Time) ([]*models.Maintenance, error) {
	var out []*models.Maintenance
	for _, m := range s.records {
		if m.Status == models.MaintenanceStatusPlanned && !m.DatePlanned.After(until) {
			out = append(out, m)
		}
	}
	return out, s.err
}

type userDirectory struct {
	users []*models.User
	err   error
	calls [][]models.Role
	mu    sync.Mutex
}

func (d *userDirectory) FindActiveByRoles(_ context.Context, roles []models.Role) ([]*models.User, error) {
	d.mu.Lock()
	d.calls = append(d.calls, roles)
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}

	want := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []*models.User
	for _, u := range d.users {
		if u.Active && want[u.Role] {
			out = append(out, u)
		}
	}
	return out, nil
}

type sentMail struct {
	recipients []string
	subject    string
	body       string
}

type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	result     bool
	block      chan struct{}
	sent       []sentMail
}

func (m *fakeMailer) IsConfigured() bool { return m.configured }

func (m *fakeMailer) Send(_ context.Context, recipients []string, subject, body string) bool {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{recipients: recipients, subject: subject, body: body})
	return m.result
}

func (m *fakeMailer) mails() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
	passes   []RunResult
	failures []models.AlertType
}

func (r *outcomeRecorder) ObservePass(result RunResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes = append(r.passes, result)
}

func (r *outcomeRecorder) PassFailed(t models.AlertType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, t)
}

func (r *outcomeRecorder) Notification(_ models.AlertType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *outcomeRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func datePtr(t time.Time) *time.Time {
	return &t
}

// leaseLocker hands out a lease whose loss the test controls.
type leaseLocker struct {
	lost chan struct{}
}

func (l *leaseLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

func (l *leaseLocker) LockLease(context.Context, string) (func(), <-chan struct{}, error) {
	return func() {}, l.lost, nil
}
