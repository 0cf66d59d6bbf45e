package wiki

import (
	"slices"
	"sync"
	"time"
)

type fetchSample struct {
	at      time.Time
	latency time.Duration
	failed  bool
}

// StatsSnapshot aggregates the fetches that fall inside the stats window.
type StatsSnapshot struct {
	Count       int       `json:"count"`
	Failed      int       `json:"failed"`
	MinMs       int64     `json:"min_ms"`
	MaxMs       int64     `json:"max_ms"`
	AvgMs       float64   `json:"avg_ms"`
	P50Ms       float64   `json:"p50_ms"`
	P95Ms       float64   `json:"p95_ms"`
	LastFetchAt time.Time `json:"last_fetch_at,omitzero"`
}

// FetchStats keeps a rolling window of wiki API round trips.
type FetchStats struct {
	mu      sync.Mutex
	window  time.Duration
	samples []fetchSample
}

func NewFetchStats(window time.Duration) *FetchStats {
	if window <= 0 {
		window = time.Hour
	}
	return &FetchStats{window: window}
}

// Record adds one round trip. Negative latencies are clamped to zero.
func (s *FetchStats) Record(latency time.Duration, failed bool) {
	latency = max(latency, 0)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(now)
	s.samples = append(s.samples, fetchSample{at: now, latency: latency, failed: failed})
}

func (s *FetchStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	ms := make([]int64, len(s.samples))
	var total int64
	snap := StatsSnapshot{Count: len(s.samples)}
	for i, sm := range s.samples {
		ms[i] = sm.latency.Milliseconds()
		total += ms[i]
		if sm.failed {
			snap.Failed++
		}
	}
	snap.LastFetchAt = s.samples[len(s.samples)-1].at
	slices.Sort(ms)

	snap.MinMs = ms[0]
	snap.MaxMs = ms[len(ms)-1]
	snap.AvgMs = float64(total) / float64(len(ms))
	snap.P50Ms = rank(ms, 0.50)
	snap.P95Ms = rank(ms, 0.95)
	return snap
}

// expireLocked drops samples older than the window. Samples are appended in
// time order, so the expired ones form a prefix.
func (s *FetchStats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.samples) && s.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.samples = slices.Delete(s.samples, 0, i)
	}
}

// rank interpolates the q-quantile (0..1) of sorted values.
func rank(sorted []int64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[len(sorted)-1])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
