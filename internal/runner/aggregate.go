package runner

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"miload/internal/stats"
)

// Merge concatenates worker buffers and orders the result by start time.
// Records with equal start times keep their buffer order.
func Merge(buffers [][]RequestRecord) []RequestRecord {
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	merged := make([]RequestRecord, 0, total)
	for _, b := range buffers {
		merged = append(merged, b...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start.Before(merged[j].Start)
	})
	return merged
}

// Description holds descriptive statistics over a result set. Elapsed and
// match statistics only consider successful requests and are NaN when there
// are none.
type Description struct {
	Count   int
	Success int
	Aborted int

	MeanElapsed float64 // seconds
	StdElapsed  float64 // seconds, sample standard deviation
	P50Elapsed  float64
	P90Elapsed  float64
	P99Elapsed  float64

	MinMatches  float64
	MeanMatches float64
	MaxMatches  float64
}

func Describe(records []RequestRecord) Description {
	nan := math.NaN()
	d := Description{
		Count:       len(records),
		MeanElapsed: nan,
		StdElapsed:  nan,
		P50Elapsed:  nan,
		P90Elapsed:  nan,
		P99Elapsed:  nan,
		MinMatches:  nan,
		MeanMatches: nan,
		MaxMatches:  nan,
	}

	hist := stats.NewHistogram()
	var sum, sumMatches float64
	minMatches, maxMatches := math.MaxInt, math.MinInt
	for _, r := range records {
		if r.Aborted() {
			d.Aborted++
			continue
		}
		d.Success++
		sum += r.Elapsed.Seconds()
		sumMatches += float64(r.Matches)
		if r.Matches < minMatches {
			minMatches = r.Matches
		}
		if r.Matches > maxMatches {
			maxMatches = r.Matches
		}
		us := r.Elapsed.Microseconds()
		if us < 1 {
			us = 1
		}
		if us > hist.HighestTrackableValue() {
			us = hist.HighestTrackableValue()
		}
		hist.RecordValue(us)
	}
	if d.Success == 0 {
		return d
	}

	n := float64(d.Success)
	d.MeanElapsed = sum / n
	d.MeanMatches = sumMatches / n
	d.MinMatches = float64(minMatches)
	d.MaxMatches = float64(maxMatches)
	d.P50Elapsed = usToSeconds(hist.ValueAtQuantile(50))
	d.P90Elapsed = usToSeconds(hist.ValueAtQuantile(90))
	d.P99Elapsed = usToSeconds(hist.ValueAtQuantile(99))

	if d.Success > 1 {
		var sq float64
		for _, r := range records {
			if r.Aborted() {
				continue
			}
			diff := r.Elapsed.Seconds() - d.MeanElapsed
			sq += diff * diff
		}
		d.StdElapsed = math.Sqrt(sq / (n - 1))
	}
	return d
}

func usToSeconds(us int64) float64 {
	return float64(us) / float64(time.Second/time.Microsecond)
}

// Summarize folds a pool result into the summary a process reports.
func Summarize(index int, res *PoolResult) ProcessSummary {
	s := ProcessSummary{
		Index:   index,
		Elapsed: res.Elapsed,
	}
	for _, b := range res.Buffers {
		s.ResultCount += len(b)
		for _, r := range b {
			if r.Aborted() {
				s.Aborted++
			}
		}
	}
	for _, u := range res.Users {
		s.Users += u
	}
	if res.Elapsed > 0 {
		s.UserRate = float64(s.Users) / res.Elapsed.Minutes()
	}
	return s
}

// Combine folds process summaries into a run summary: results and rates are
// summed, elapsed time is the mean since processes run concurrently.
func Combine(cfg Config, summaries []ProcessSummary) *RunSummary {
	sorted := make([]ProcessSummary, len(summaries))
	copy(sorted, summaries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	rs := &RunSummary{
		ID:                uuid.New().String(),
		Mode:              cfg.Mode,
		SimulateUsers:     cfg.SimulateUsers,
		Processes:         cfg.Processes,
		Workers:           cfg.Workers,
		SimultaneousUsers: cfg.Processes * cfg.Workers,
	}
	var elapsed time.Duration
	for _, s := range sorted {
		rs.TotalResults += s.ResultCount
		rs.TotalAborted += s.Aborted
		rs.TotalUsers += s.Users
		rs.UserRate += s.UserRate
		elapsed += s.Elapsed
	}
	if len(sorted) > 0 {
		rs.Elapsed = elapsed / time.Duration(len(sorted))
	}
	return rs
}

// SnapshotSet keeps the latest snapshot of every process.
type SnapshotSet map[int]StatsSnapshot

func (s SnapshotSet) Add(snap StatsSnapshot) {
	s[snap.Process] = snap
}

// Total sums counters across processes. Percentiles cannot be summed, so the
// worst process is reported.
func (s SnapshotSet) Total() StatsSnapshot {
	var t StatsSnapshot
	for _, snap := range s {
		t.Requests += snap.Requests
		t.Success += snap.Success
		t.Aborted += snap.Aborted
		t.Users += snap.Users
		t.Inflight += snap.Inflight
		t.P50ElapsedMs = math.Max(t.P50ElapsedMs, snap.P50ElapsedMs)
		t.P90ElapsedMs = math.Max(t.P90ElapsedMs, snap.P90ElapsedMs)
		t.P99ElapsedMs = math.Max(t.P99ElapsedMs, snap.P99ElapsedMs)
		if snap.MaxElapsedMs > t.MaxElapsedMs {
			t.MaxElapsedMs = snap.MaxElapsedMs
		}
	}
	return t
}
