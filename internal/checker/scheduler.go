// Package checker runs dependency checks in the background and reports
// their latest results into the readiness set. Probe handlers never run a
// check themselves; they only read what the scheduler last reported.
package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/leslieo2/go-probe/internal/probe"
)

// Func checks one dependency. A nil error means the dependency is usable.
type Func func(ctx context.Context) error

// Definition describes a scheduled dependency check.
type Definition struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Check    Func
	// Closer releases the client behind Check when the check is removed.
	Closer io.Closer
	// Fingerprint identifies the configuration the definition was built
	// from. Sync replaces a check whose fingerprint changed.
	Fingerprint string
}

// Reporter receives check results.
type Reporter interface {
	Expect(names ...string)
	Report(name string, status probe.CheckStatus, message string) error
	Remove(name string) bool
}

// Observer records check outcomes, typically as metrics.
type Observer interface {
	ObserveCheck(name string, ok bool, duration time.Duration)
	ForgetCheck(name string)
}

// BreakerSettings configures the circuit breaker wrapped around each check.
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures    uint32
	OpenTimeout time.Duration
}

type Option func(*Scheduler)

// WithObserver sets the observer notified after every run.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(b BreakerSettings) Option {
	return func(s *Scheduler) {
		s.breaker = b
	}
}

var (
	ErrInvalidDefinition = errors.New("invalid check definition")
	ErrDuplicateCheck    = errors.New("check already scheduled")
	ErrSchedulerStopped  = errors.New("scheduler stopped")
)

// Scheduler runs each check on its own interval through cron.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	reporter Reporter
	observer Observer
	logger   *zap.Logger
	breaker  BreakerSettings

	ctx    context.Context
	cancel context.CancelFunc
	jobs   map[string]*job
	order  []string

	// immediate first runs started outside cron
	pending sync.WaitGroup
	started bool
	stopped bool
}

type job struct {
	def     Definition
	entry   cron.EntryID
	breaker *gobreaker.CircuitBreaker
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	removed bool
	last    probe.CheckStatus
	lastErr string
}

// NewScheduler creates a scheduler that reports into r.
func NewScheduler(r Reporter, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		reporter: r,
		logger:   zap.NewNop(),
		breaker:  BreakerSettings{Failures: constants.CheckBreakerFailures, OpenTimeout: constants.CheckBreakerTimeout},
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]*job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.logger.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{s.logger.Sugar()}),
	))
	return s
}

// Start begins periodic execution. Checks added before Start get their
// first run now; checks added later run immediately on Add.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true
	for _, name := range s.order {
		s.runAsync(s.jobs[name])
	}
	s.cron.Start()

	s.logger.Info("Dependency check scheduler started", zap.Int("checks", len(s.jobs)))
}

// Add schedules a check. The check is expected by the reporter right away,
// so readiness stays not-ready until its first result arrives.
func (s *Scheduler) Add(def Definition) error {
	if def.Name == "" || def.Check == nil {
		return fmt.Errorf("%w: name and check function are required", ErrInvalidDefinition)
	}
	if def.Interval <= 0 || def.Timeout <= 0 {
		return fmt.Errorf("%w: %s needs a positive interval and timeout", ErrInvalidDefinition, def.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	if _, ok := s.jobs[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, def.Name)
	}
	s.addLocked(def)
	return nil
}

func (s *Scheduler) addLocked(def Definition) {
	j := &job{def: def, last: probe.CheckUnknown}
	j.ctx, j.cancel = context.WithCancel(s.ctx)
	j.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    def.Name,
		Timeout: s.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.breaker.Failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.logger.Info("Check circuit breaker state changed",
				zap.String("check", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	j.entry = s.cron.Schedule(cron.Every(def.Interval), cron.FuncJob(func() {
		s.run(j)
	}))

	s.reporter.Expect(def.Name)
	s.jobs[def.Name] = j
	s.order = append(s.order, def.Name)

	if s.started {
		s.runAsync(j)
	}

	s.logger.Debug("Dependency check scheduled",
		zap.String("check", def.Name),
		zap.Duration("interval", def.Interval),
		zap.Duration("timeout", def.Timeout),
	)
}

// Remove unschedules the named check and drops it from readiness.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(name, true)
}

func (s *Scheduler) removeLocked(name string, forget bool) bool {
	j, ok := s.jobs[name]
	if !ok {
		return false
	}

	j.mu.Lock()
	j.removed = true
	j.mu.Unlock()

	j.cancel()
	s.cron.Remove(j.entry)
	delete(s.jobs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}

	if forget {
		s.reporter.Remove(name)
		if s.observer != nil {
			s.observer.ForgetCheck(name)
		}
	}
	s.closeDefinition(j.def)
	return true
}

// Sync reconciles the scheduled checks with defs. New names are added,
// missing names removed and definitions whose fingerprint changed are
// replaced while keeping their last reported result.
func (s *Scheduler) Sync(defs []Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		for _, def := range defs {
			s.closeDefinition(def)
		}
		return ErrSchedulerStopped
	}

	wanted := make(map[string]bool, len(defs))
	for _, def := range defs {
		wanted[def.Name] = true
	}
	for _, name := range append([]string(nil), s.order...) {
		if !wanted[name] {
			s.removeLocked(name, true)
			s.logger.Info("Dependency check removed", zap.String("check", name))
		}
	}

	var errs []error
	for _, def := range defs {
		existing, ok := s.jobs[def.Name]
		if ok && existing.def.Fingerprint == def.Fingerprint {
			s.closeDefinition(def)
			continue
		}
		if ok {
			s.removeLocked(def.Name, false)
			s.logger.Info("Dependency check replaced", zap.String("check", def.Name))
		}
		if def.Name == "" || def.Check == nil || def.Interval <= 0 || def.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidDefinition, def.Name))
			s.closeDefinition(def)
			continue
		}
		s.addLocked(def)
	}
	return errors.Join(errs...)
}

// Names returns the scheduled check names in the order they were added.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

// RunOnce runs every scheduled check synchronously.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.order))
	for _, name := range s.order {
		jobs = append(jobs, s.jobs[name])
	}
	s.mu.Unlock()

	for _, j := range jobs {
		s.run(j)
	}
}

// Stop stops scheduling, cancels in-flight checks, waits for them to
// return and closes every check resource.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	s.pending.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range s.order {
		s.closeDefinition(s.jobs[name].def)
	}
	s.logger.Info("Dependency check scheduler stopped")
}

func (s *Scheduler) runAsync(j *job) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.run(j)
	}()
}

func (s *Scheduler) run(j *job) {
	if j.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(j.ctx, j.def.Timeout)
	defer cancel()

	start := time.Now()
	_, err := j.breaker.Execute(func() (any, error) {
		return nil, safeCheck(ctx, j.def.Check)
	})
	elapsed := time.Since(start)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.removed {
		return
	}

	status := probe.CheckOK
	message := ""
	if err != nil {
		status = probe.CheckFailing
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			message = fmt.Sprintf("circuit breaker open: %s", j.lastErr)
		} else {
			message = err.Error()
			j.lastErr = message
		}
	}

	if rerr := s.reporter.Report(j.def.Name, status, message); rerr != nil {
		s.logger.Error("Failed to report check result", zap.String("check", j.def.Name), zap.Error(rerr))
	}
	if s.observer != nil {
		s.observer.ObserveCheck(j.def.Name, err == nil, elapsed)
	}

	if status != j.last {
		if status == probe.CheckOK {
			s.logger.Info("Dependency check passing", zap.String("check", j.def.Name), zap.Duration("duration", elapsed))
		} else {
			s.logger.Warn("Dependency check failing", zap.String("check", j.def.Name), zap.String("error", message))
		}
	}
	j.last = status
}

func (s *Scheduler) closeDefinition(def Definition) {
	if def.Closer == nil {
		return
	}
	if err := def.Closer.Close(); err != nil {
		s.logger.Warn("Failed to close check resources", zap.String("check", def.Name), zap.Error(err))
	}
}

func safeCheck(ctx context.Context, fn Func) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("check panicked: %v", rec)
		}
	}()
	return fn(ctx)
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	*zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, append(keysAndValues, "error", err)...)
}
