package probe

import (
	"time"

	"go.uber.org/zap"
)

// Set is the process-scoped probe state: one liveness tracker, one
// readiness set and one metrics registry. It is built once at startup and
// handed to whatever serves the probe routes.
type Set struct {
	liveness  *Liveness
	readiness *Readiness
	registry  *Registry
	logger    *zap.Logger
}

// Option configures a Set.
type Option func(*setOptions)

type setOptions struct {
	startedAt time.Time
	clock     Clock
	logger    *zap.Logger
}

// WithStartTime anchors uptime at t instead of the construction time.
func WithStartTime(t time.Time) Option {
	return func(o *setOptions) {
		o.startedAt = t
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *setOptions) {
		o.clock = c
	}
}

// WithLogger sets the logger used to report producer faults.
func WithLogger(l *zap.Logger) Option {
	return func(o *setOptions) {
		o.logger = l
	}
}

// New creates a Set with an empty readiness set and registry.
func New(opts ...Option) *Set {
	o := setOptions{clock: realClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	return &Set{
		liveness:  NewLiveness(o.startedAt, o.clock),
		readiness: NewReadiness(o.clock),
		registry:  NewRegistry(),
		logger:    o.logger,
	}
}

// Liveness returns the liveness tracker.
func (s *Set) Liveness() *Liveness {
	return s.liveness
}

// Readiness returns the readiness set dependency checkers report into.
func (s *Set) Readiness() *Readiness {
	return s.readiness
}

// Registry returns the metrics registry producers register into.
func (s *Set) Registry() *Registry {
	return s.registry
}

// QueryLiveness answers a liveness probe from memory. A nil Set still
// answers alive with zero uptime: being able to answer is liveness.
func (s *Set) QueryLiveness() LivenessState {
	if s == nil {
		return LivenessState{Status: StatusAlive}
	}
	return s.liveness.Snapshot()
}

// QueryReadiness answers a readiness probe from the cached check results.
// It never runs a check itself.
func (s *Set) QueryReadiness() ReadinessState {
	if s == nil {
		return ReadinessState{Status: StatusNotReady}
	}
	return s.readiness.Snapshot()
}

// QueryMetrics samples every registered producer in registration order.
// Faulting producers are logged and counted, never propagated.
func (s *Set) QueryMetrics() Scrape {
	if s == nil {
		return Scrape{}
	}
	scrape := s.registry.Gather()
	for _, f := range scrape.Faults {
		s.logger.Warn("Metric producer skipped",
			zap.String("producer", f.Producer),
			zap.Error(f.Err),
		)
	}
	return scrape
}
