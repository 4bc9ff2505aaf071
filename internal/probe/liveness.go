package probe

import (
	"sync/atomic"
	"time"
)

// LivenessStatus is informational only; an orchestrator decides to restart
// on a failed or timed out call, not on this value.
type LivenessStatus string

const (
	StatusAlive    LivenessStatus = "alive"
	StatusDegraded LivenessStatus = "degraded"
)

// Clock is the time source used for uptime.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// LivenessState is a point-in-time liveness snapshot.
type LivenessState struct {
	Status    LivenessStatus
	Reason    string
	Uptime    time.Duration
	StartedAt time.Time
}

// Liveness tracks process uptime and an optional degraded marker.
type Liveness struct {
	startedAt time.Time
	clock     Clock
	degraded  atomic.Pointer[string]
	// high-water mark of reported uptime, in nanoseconds
	maxUptime atomic.Int64
}

// NewLiveness creates a Liveness anchored at startedAt.
func NewLiveness(startedAt time.Time, clock Clock) *Liveness {
	if clock == nil {
		clock = realClock{}
	}
	if startedAt.IsZero() {
		startedAt = clock.Now()
	}
	return &Liveness{startedAt: startedAt, clock: clock}
}

// MarkDegraded flags the process as degraded with a human readable reason.
func (l *Liveness) MarkDegraded(reason string) {
	l.degraded.Store(&reason)
}

// ClearDegraded resets the status to alive.
func (l *Liveness) ClearDegraded() {
	l.degraded.Store(nil)
}

// Snapshot returns the current liveness state. Uptime never decreases
// between calls, even if the clock steps backwards.
func (l *Liveness) Snapshot() LivenessState {
	uptime := int64(l.clock.Now().Sub(l.startedAt))
	for {
		prev := l.maxUptime.Load()
		if uptime <= prev {
			uptime = prev
			break
		}
		if l.maxUptime.CompareAndSwap(prev, uptime) {
			break
		}
	}

	state := LivenessState{
		Status:    StatusAlive,
		Uptime:    time.Duration(uptime),
		StartedAt: l.startedAt,
	}
	if reason := l.degraded.Load(); reason != nil {
		state.Status = StatusDegraded
		state.Reason = *reason
	}
	return state
}
