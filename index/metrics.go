package index

import "github.com/arloliu/tsdbcore/metrics"

// Metrics aggregates one shard's add/lookup/intersect activity: counts
// plus total elapsed time for each, exposed for observability and reset
// atomically (spec's aggregated-metrics requirement for the sharded
// index, grounded on original_source's IndexMetrics counters).
type Metrics struct {
	Adds       metrics.Counter
	Lookups    metrics.Timer
	Intersects metrics.Timer
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.Adds.Reset()
	m.Lookups.Reset()
	m.Intersects.Reset()
}

// Snapshot is a point-in-time copy of Metrics' values, safe to read
// without racing a concurrent Reset.
type Snapshot struct {
	AddCount         int64
	LookupCount      int64
	LookupTotalNS    int64
	IntersectCount   int64
	IntersectTotalNS int64
}

func (m *Metrics) snapshot() Snapshot {
	return Snapshot{
		AddCount:         m.Adds.Value(),
		LookupCount:      m.Lookups.Count(),
		LookupTotalNS:    m.Lookups.TotalNanos(),
		IntersectCount:   m.Intersects.Count(),
		IntersectTotalNS: m.Intersects.TotalNanos(),
	}
}
