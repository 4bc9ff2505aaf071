package checker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-probe/internal/probe"
)

type recordingObserver struct {
	mu        sync.Mutex
	observed  map[string][]bool
	forgotten []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{observed: make(map[string][]bool)}
}

func (o *recordingObserver) ObserveCheck(name string, ok bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observed[name] = append(o.observed[name], ok)
}

func (o *recordingObserver) ForgetCheck(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.forgotten = append(o.forgotten, name)
}

type countingCloser struct {
	closed atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func okCheck(context.Context) error { return nil }

func definition(name string, fn Func) Definition {
	return Definition{
		Name:        name,
		Interval:    time.Hour,
		Timeout:     time.Second,
		Check:       fn,
		Fingerprint: name,
	}
}

func checkByName(t *testing.T, r *probe.Readiness, name string) probe.DependencyCheck {
	t.Helper()
	for _, c := range r.Snapshot().Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return probe.DependencyCheck{}
}

func TestScheduler_AddIsUnknownUntilFirstRun(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)
	defer s.Stop()

	require.NoError(t, s.Add(definition("db", okCheck)))

	state := readiness.Snapshot()
	assert.Equal(t, probe.StatusNotReady, state.Status)
	assert.Equal(t, probe.CheckUnknown, checkByName(t, readiness, "db").Status)

	s.RunOnce()

	assert.Equal(t, probe.StatusReady, readiness.Snapshot().Status)
	assert.Equal(t, probe.CheckOK, checkByName(t, readiness, "db").Status)
}

func TestScheduler_FailingCheck(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	observer := newRecordingObserver()
	s := NewScheduler(readiness, WithObserver(observer))
	defer s.Stop()

	require.NoError(t, s.Add(definition("db", func(context.Context) error {
		return errors.New("connection refused")
	})))
	require.NoError(t, s.Add(definition("cache", okCheck)))

	s.RunOnce()

	state := readiness.Snapshot()
	assert.Equal(t, probe.StatusNotReady, state.Status)
	assert.Equal(t, []string{"db"}, state.Failing())
	assert.Equal(t, "connection refused", checkByName(t, readiness, "db").Message)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, []bool{false}, observer.observed["db"])
	assert.Equal(t, []bool{true}, observer.observed["cache"])
}

func TestScheduler_Timeout(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)
	defer s.Stop()

	def := definition("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	def.Timeout = 20 * time.Millisecond
	require.NoError(t, s.Add(def))

	s.RunOnce()

	check := checkByName(t, readiness, "slow")
	assert.Equal(t, probe.CheckFailing, check.Status)
	assert.Contains(t, check.Message, "deadline exceeded")
}

func TestScheduler_PanicReportsFailing(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)
	defer s.Stop()

	require.NoError(t, s.Add(definition("boom", func(context.Context) error {
		panic("kaboom")
	})))

	assert.NotPanics(t, s.RunOnce)
	check := checkByName(t, readiness, "boom")
	assert.Equal(t, probe.CheckFailing, check.Status)
	assert.Contains(t, check.Message, "kaboom")
}

func TestScheduler_BreakerOpens(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness, WithBreaker(BreakerSettings{Failures: 2, OpenTimeout: time.Hour}))
	defer s.Stop()

	var calls atomic.Int32
	require.NoError(t, s.Add(definition("flaky", func(context.Context) error {
		calls.Add(1)
		return errors.New("refused")
	})))

	s.RunOnce()
	s.RunOnce()
	s.RunOnce()

	assert.Equal(t, int32(2), calls.Load())
	check := checkByName(t, readiness, "flaky")
	assert.Equal(t, probe.CheckFailing, check.Status)
	assert.Equal(t, "circuit breaker open: refused", check.Message)
}

func TestScheduler_AddValidation(t *testing.T) {
	s := NewScheduler(probe.NewReadiness(nil))
	defer s.Stop()

	assert.ErrorIs(t, s.Add(Definition{Name: "x"}), ErrInvalidDefinition)
	assert.ErrorIs(t, s.Add(Definition{Name: "x", Check: okCheck}), ErrInvalidDefinition)

	require.NoError(t, s.Add(definition("x", okCheck)))
	assert.ErrorIs(t, s.Add(definition("x", okCheck)), ErrDuplicateCheck)
}

func TestScheduler_Remove(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	observer := newRecordingObserver()
	s := NewScheduler(readiness, WithObserver(observer))
	defer s.Stop()

	closer := &countingCloser{}
	def := definition("db", func(context.Context) error { return errors.New("down") })
	def.Closer = closer
	require.NoError(t, s.Add(def))
	s.RunOnce()
	assert.Equal(t, probe.StatusNotReady, readiness.Snapshot().Status)

	assert.True(t, s.Remove("db"))
	assert.False(t, s.Remove("db"))

	assert.Equal(t, probe.StatusReady, readiness.Snapshot().Status)
	assert.Empty(t, readiness.Snapshot().Checks)
	assert.Equal(t, int32(1), closer.closed.Load())
	assert.Equal(t, []string{"db"}, observer.forgotten)
}

func TestScheduler_Sync(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)
	defer s.Stop()

	aCloser, bCloser := &countingCloser{}, &countingCloser{}
	a := definition("a", okCheck)
	a.Closer = aCloser
	b := definition("b", okCheck)
	b.Closer = bCloser
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))
	s.RunOnce()

	unchangedCloser := &countingCloser{}
	sameB := definition("b", okCheck)
	sameB.Closer = unchangedCloser
	c := definition("c", func(context.Context) error { return errors.New("down") })

	require.NoError(t, s.Sync([]Definition{sameB, c}))

	assert.Equal(t, []string{"b", "c"}, s.Names())
	assert.Equal(t, int32(1), aCloser.closed.Load(), "removed check is closed")
	assert.Equal(t, int32(0), bCloser.closed.Load(), "unchanged check keeps its client")
	assert.Equal(t, int32(1), unchangedCloser.closed.Load(), "unused duplicate client is closed")

	// b keeps its result, c is expected but has not run
	assert.Equal(t, probe.CheckOK, checkByName(t, readiness, "b").Status)
	assert.Equal(t, probe.CheckUnknown, checkByName(t, readiness, "c").Status)

	changedB := definition("b", func(context.Context) error { return errors.New("moved") })
	changedB.Fingerprint = "b-v2"
	require.NoError(t, s.Sync([]Definition{changedB, c}))

	assert.Equal(t, int32(1), bCloser.closed.Load(), "replaced check is closed")
	assert.Equal(t, probe.CheckOK, checkByName(t, readiness, "b").Status, "replacement keeps the last result")

	s.RunOnce()
	assert.Equal(t, probe.CheckFailing, checkByName(t, readiness, "b").Status)
	assert.ElementsMatch(t, []string{"b", "c"}, readiness.Snapshot().Failing())
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)

	closer := &countingCloser{}
	def := definition("db", okCheck)
	def.Closer = closer
	require.NoError(t, s.Add(def))

	s.Start()
	assert.Eventually(t, func() bool {
		return readiness.Snapshot().Status == probe.StatusReady
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Add(definition("late", okCheck)))
	assert.Eventually(t, func() bool {
		return checkByName(t, readiness, "late").Status == probe.CheckOK
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), closer.closed.Load())
	assert.ErrorIs(t, s.Add(definition("after", okCheck)), ErrSchedulerStopped)
}

func TestScheduler_StopCancelsInFlightChecks(t *testing.T) {
	readiness := probe.NewReadiness(nil)
	s := NewScheduler(readiness)

	started := make(chan struct{})
	def := definition("hang", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	def.Timeout = time.Hour
	require.NoError(t, s.Add(def))
	s.Start()

	<-started
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
