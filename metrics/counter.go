// Package metrics provides small atomic counters and timers shared by the
// engine's components (index, pipeline) to accumulate observability data
// in-process, with an explicit Reset rather than any process-wide
// registry. Grounded on original_source's IndexMetrics, which accumulates
// the same shape of counts/durations behind std::atomic fields plus a
// reset() method; no pack dependency offers an in-process counter that can
// be read back synchronously without an exporter, so this stays on
// sync/atomic rather than wrapping a metrics client library.
package metrics

import "sync/atomic"

// Counter is an atomic monotonic count, reset to zero by Reset.
type Counter struct {
	n atomic.Int64
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.n.Add(1) }

// Add increments the counter by delta.
func (c *Counter) Add(delta int64) { c.n.Add(delta) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Reset zeroes the counter.
func (c *Counter) Reset() { c.n.Store(0) }

// Timer accumulates a count of observations and their total duration,
// giving a cheap running average without storing individual samples.
type Timer struct {
	count atomic.Int64
	nanos atomic.Int64
}

// Observe records one occurrence that took d.
func (t *Timer) Observe(d int64) {
	t.count.Add(1)
	t.nanos.Add(d)
}

// Count returns the number of observations recorded.
func (t *Timer) Count() int64 { return t.count.Load() }

// TotalNanos returns the summed duration of every observation, in
// nanoseconds.
func (t *Timer) TotalNanos() int64 { return t.nanos.Load() }

// MeanNanos returns the average observation duration, or 0 if nothing has
// been observed.
func (t *Timer) MeanNanos() float64 {
	n := t.count.Load()
	if n == 0 {
		return 0
	}

	return float64(t.nanos.Load()) / float64(n)
}

// Reset zeroes the timer.
func (t *Timer) Reset() {
	t.count.Store(0)
	t.nanos.Store(0)
}
