package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }
func (c *Counter) Reset()       { c.val.Store(0) }

type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.samples)
}

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if len(lt.samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(lt.samples))
	copy(sorted, lt.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// Metrics is the global fetch/run registry. Single writer in practice.
var Metrics = struct {
	RequestsSent    Counter
	RequestRetries  Counter
	RateLimited     Counter
	RequestFailures Counter
	ParseFailures   Counter
	EntitiesSkipped Counter
	FetchLatency    *LatencyTracker
}{
	FetchLatency: NewLatencyTracker(5000),
}

// LogSummary prints the run counters at info level.
func LogSummary() {
	m := &Metrics
	Infof("fetch summary: requests=%d retries=%d rate_limited=%d failed=%d parse_errors=%d skipped=%d p50=%s p99=%s",
		m.RequestsSent.Value(), m.RequestRetries.Value(), m.RateLimited.Value(),
		m.RequestFailures.Value(), m.ParseFailures.Value(), m.EntitiesSkipped.Value(),
		m.FetchLatency.P50(), m.FetchLatency.P99())
}
