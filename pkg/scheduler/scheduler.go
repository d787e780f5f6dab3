package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

var (
	// ErrStopped is returned by RunNow once Stop has been called.
	ErrStopped = errors.New("scheduler stopped")

	ErrJobRunning = errors.New("job is already running")
)

// JobFunc is the unit of work a job runs. The context is cancelled when the
// scheduler is stopped before the job returns.
type JobFunc func(ctx context.Context)

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	At      string    `json:"at"`
	NextRun time.Time `json:"nextRun"`
	Running bool      `json:"running"`
}

type job struct {
	name     string
	at       string
	schedule cron.Schedule
	fn       JobFunc
	running  bool
}

// Scheduler owns named jobs that fire once a day at a fixed wall-clock time.
// A job that is still running when its next trigger fires is skipped for that trigger.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	logger   *zap.Logger
	clock    func() time.Time

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	started bool
	stopped bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func New(location *time.Location, logger *zap.Logger) *Scheduler {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.NewWithLocation(location),
		location: location,
		logger:   logger.Named("scheduler"),
		clock:    time.Now,
		jobs:     make(map[string]*job),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddDaily registers fn to run every day at "HH:MM" in the scheduler's location.
func (s *Scheduler) AddDaily(name, at string, fn JobFunc) error {
	hour, minute, err := parseClock(at)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	schedule, err := cron.Parse(fmt.Sprintf("0 %d %d * * *", minute, hour))
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	j := &job{name: name, at: at, schedule: schedule, fn: fn}
	s.jobs[name] = j
	s.order = append(s.order, name)
	s.cron.Schedule(schedule, cron.FuncJob(func() { _ = s.trigger(j) }))

	s.logger.Info("job registered", zap.String("job", name), zap.String("at", at))
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)), zap.String("location", s.location.String()))
}

// Stop prevents new triggers and waits for running jobs. When ctx expires first,
// running jobs are cancelled and ctx's error is returned. Triggers arriving
// after Stop, scheduled or manual, are refused.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("scheduler stop timed out, running jobs cancelled")
		return ctx.Err()
	}
}

// RunNow runs the named job in the calling goroutine.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not registered", name)
	}
	if err := s.trigger(j); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// Jobs lists registered jobs in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().In(s.location)
	infos := make([]JobInfo, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		infos = append(infos, JobInfo{
			Name:    j.name,
			At:      j.at,
			NextRun: j.schedule.Next(now),
			Running: j.running,
		})
	}
	return infos
}

// trigger runs j unless the scheduler is stopped or j is still running.
// wg.Add happens under mu so it cannot race the Wait in Stop.
func (s *Scheduler) trigger(j *job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("scheduler stopped, trigger skipped", zap.String("job", j.name))
		return ErrStopped
	}
	if j.running {
		s.mu.Unlock()
		s.logger.Warn("job still running, trigger skipped", zap.String("job", j.name))
		return ErrJobRunning
	}
	j.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		j.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	s.execute(j)
	return nil
}

func (s *Scheduler) execute(j *job) {
	start := s.clock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()

	s.logger.Info("job started", zap.String("job", j.name))
	j.fn(s.ctx)
	s.logger.Info("job finished", zap.String("job", j.name), zap.Duration("duration", s.clock().Sub(start)))
}

func parseClock(at string) (int, int, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", at)
	}
	return t.Hour(), t.Minute(), nil
}
