package probe

import (
	"math"
	"sync/atomic"
)

// Counter is a lock-free, monotonically increasing float64 suitable as the
// backing value of a counter producer.
type Counter struct {
	bits atomic.Uint64
}

// Inc adds one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add adds delta. Negative and NaN deltas are ignored so the counter never
// decreases.
func (c *Counter) Add(delta float64) {
	if delta <= 0 || math.IsNaN(delta) {
		return
	}
	for {
		old := c.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if c.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Value returns the current count.
func (c *Counter) Value() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Sample adapts the counter to a SampleFunc.
func (c *Counter) Sample() (float64, error) {
	return c.Value(), nil
}

// Gauge is a lock-free float64 that can be set to any value.
type Gauge struct {
	bits atomic.Uint64
}

// Set stores v.
func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Value returns the current value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Sample adapts the gauge to a SampleFunc.
func (g *Gauge) Sample() (float64, error) {
	return g.Value(), nil
}
