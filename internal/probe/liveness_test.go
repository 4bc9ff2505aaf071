package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLiveness_UptimeAdvances(t *testing.T) {
	clock := newMockClock()
	set := New(WithClock(clock))

	first := set.QueryLiveness()
	clock.Advance(5 * time.Second)
	second := set.QueryLiveness()

	assert.Equal(t, StatusAlive, first.Status)
	assert.GreaterOrEqual(t, second.Uptime, first.Uptime+5*time.Second)
}

func TestLiveness_UptimeNeverDecreases(t *testing.T) {
	clock := newMockClock()
	l := NewLiveness(time.Time{}, clock)

	clock.Advance(10 * time.Second)
	before := l.Snapshot().Uptime

	clock.Advance(-3 * time.Second)
	after := l.Snapshot().Uptime

	assert.Equal(t, 10*time.Second, before)
	assert.GreaterOrEqual(t, after, before)
}

func TestLiveness_StartTimeOption(t *testing.T) {
	clock := newMockClock()
	started := clock.Now().Add(-time.Minute)
	set := New(WithClock(clock), WithStartTime(started))

	state := set.QueryLiveness()
	assert.Equal(t, time.Minute, state.Uptime)
	assert.Equal(t, started, state.StartedAt)
}

func TestLiveness_Degraded(t *testing.T) {
	l := NewLiveness(time.Time{}, nil)

	l.MarkDegraded("shutting down")
	state := l.Snapshot()
	assert.Equal(t, StatusDegraded, state.Status)
	assert.Equal(t, "shutting down", state.Reason)

	l.ClearDegraded()
	assert.Equal(t, StatusAlive, l.Snapshot().Status)
}
