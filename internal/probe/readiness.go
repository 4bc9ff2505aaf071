package probe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// CheckStatus is the latest result of a single dependency check.
type CheckStatus string

const (
	CheckOK      CheckStatus = "ok"
	CheckFailing CheckStatus = "failing"
	CheckUnknown CheckStatus = "unknown"
)

// Valid reports whether s is one of the known check statuses.
func (s CheckStatus) Valid() bool {
	switch s {
	case CheckOK, CheckFailing, CheckUnknown:
		return true
	}
	return false
}

// ReadinessStatus is the aggregated readiness of the process.
type ReadinessStatus string

const (
	StatusReady    ReadinessStatus = "ready"
	StatusNotReady ReadinessStatus = "not-ready"
)

// DependencyCheck is an immutable view of one named check.
type DependencyCheck struct {
	Name      string
	Status    CheckStatus
	Message   string
	UpdatedAt time.Time
}

// ReadinessState is a point-in-time readiness snapshot. Checks are in
// registration order.
type ReadinessState struct {
	Status ReadinessStatus
	Checks []DependencyCheck
}

// Failing returns the names of every check that is not ok.
func (s ReadinessState) Failing() []string {
	var names []string
	for _, c := range s.Checks {
		if c.Status != CheckOK {
			names = append(names, c.Name)
		}
	}
	return names
}

type readinessSnapshot struct {
	status ReadinessStatus
	checks []DependencyCheck
	index  map[string]int
}

var emptyReadiness = &readinessSnapshot{status: StatusReady, index: map[string]int{}}

// Readiness holds the cached result of every dependency check. Writers
// copy the current snapshot, apply their change and publish the copy;
// readers only ever load a complete snapshot.
type Readiness struct {
	mu    sync.Mutex
	snap  atomic.Pointer[readinessSnapshot]
	clock Clock
}

// NewReadiness creates an empty readiness set, which is vacuously ready.
func NewReadiness(clock Clock) *Readiness {
	if clock == nil {
		clock = realClock{}
	}
	r := &Readiness{clock: clock}
	r.snap.Store(emptyReadiness)
	return r
}

// Expect registers checks that must report before the process is ready.
// A check that has not reported yet is unknown, which is not ok.
func (r *Readiness) Expect(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	next := cur.clone()
	changed := false
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := next.index[name]; ok {
			continue
		}
		next.index[name] = len(next.checks)
		next.checks = append(next.checks, DependencyCheck{Name: name, Status: CheckUnknown})
		changed = true
	}
	if changed {
		r.publish(next)
	}
}

// Report records the latest result of the named check, registering it on
// first use.
func (r *Readiness) Report(name string, status CheckStatus, message string) error {
	if name == "" {
		return fmt.Errorf("check name cannot be empty")
	}
	if !status.Valid() {
		return fmt.Errorf("check %s: invalid status %q", name, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.load().clone()
	check := DependencyCheck{
		Name:      name,
		Status:    status,
		Message:   message,
		UpdatedAt: r.clock.Now(),
	}
	if i, ok := next.index[name]; ok {
		next.checks[i] = check
	} else {
		next.index[name] = len(next.checks)
		next.checks = append(next.checks, check)
	}
	r.publish(next)
	return nil
}

// Remove deregisters the named check. It returns false if it was unknown.
func (r *Readiness) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	i, ok := cur.index[name]
	if !ok {
		return false
	}

	next := &readinessSnapshot{
		checks: make([]DependencyCheck, 0, len(cur.checks)-1),
		index:  make(map[string]int, len(cur.index)-1),
	}
	next.checks = append(next.checks, cur.checks[:i]...)
	next.checks = append(next.checks, cur.checks[i+1:]...)
	for j, c := range next.checks {
		next.index[c.Name] = j
	}
	r.publish(next)
	return true
}

// Snapshot returns the current readiness state. A Readiness that was never
// initialised reports not-ready.
func (r *Readiness) Snapshot() ReadinessState {
	if r == nil {
		return ReadinessState{Status: StatusNotReady}
	}
	snap := r.snap.Load()
	if snap == nil {
		return ReadinessState{Status: StatusNotReady}
	}
	checks := make([]DependencyCheck, len(snap.checks))
	copy(checks, snap.checks)
	return ReadinessState{Status: snap.status, Checks: checks}
}

func (r *Readiness) load() *readinessSnapshot {
	if snap := r.snap.Load(); snap != nil {
		return snap
	}
	return emptyReadiness
}

// publish must be called with r.mu held.
func (r *Readiness) publish(next *readinessSnapshot) {
	next.status = StatusReady
	for _, c := range next.checks {
		if c.Status != CheckOK {
			next.status = StatusNotReady
			break
		}
	}
	r.snap.Store(next)
}

func (s *readinessSnapshot) clone() *readinessSnapshot {
	next := &readinessSnapshot{
		checks: make([]DependencyCheck, len(s.checks), len(s.checks)+1),
		index:  make(map[string]int, len(s.index)+1),
	}
	copy(next.checks, s.checks)
	for k, v := range s.index {
		next.index[k] = v
	}
	return next
}
