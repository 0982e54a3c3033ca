package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds live counters for one process. Workers update it concurrently;
// it never holds per-request records.
type Stats struct {
	Requests uint64
	Success  uint64
	Aborted  uint64
	Users    uint64
	Inflight int64

	// Elapsed holds service-reported latency of successful requests (microseconds).
	Elapsed *SafeHistogram
}

func NewStats() *Stats {
	return &Stats{
		Elapsed: NewSafeHistogram(),
	}
}

func (s *Stats) AddRequest(aborted bool, elapsed time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	if aborted {
		atomic.AddUint64(&s.Aborted, 1)
		return
	}
	atomic.AddUint64(&s.Success, 1)
	s.Elapsed.RecordDuration(elapsed)
}

func (s *Stats) AddUser() {
	atomic.AddUint64(&s.Users, 1)
}

func (s *Stats) Begin() {
	atomic.AddInt64(&s.Inflight, 1)
}

func (s *Stats) Finish() {
	atomic.AddInt64(&s.Inflight, -1)
}

func (s *Stats) P50Ms() float64 {
	return float64(s.Elapsed.ValueAtQuantile(50)) / 1000.0
}

func (s *Stats) P90Ms() float64 {
	return float64(s.Elapsed.ValueAtQuantile(90)) / 1000.0
}

func (s *Stats) P99Ms() float64 {
	return float64(s.Elapsed.ValueAtQuantile(99)) / 1000.0
}
