package observability

import (
	"sync"
	"time"
)

// SearchMetrics aggregates search counters. The average result count is a
// running mean updated per search; history is never replayed.
type SearchMetrics struct {
	mu sync.Mutex

	totalSearches      int64
	failedSearches     int64
	averageResultCount float64
	totalDuration      time.Duration
	byMode             map[string]int64
}

// NewSearchMetrics creates a new metrics collector.
func NewSearchMetrics() *SearchMetrics {
	return &SearchMetrics{byMode: make(map[string]int64)}
}

// RecordSearch records a completed search that ran in mode and returned
// resultCount results.
func (m *SearchMetrics) RecordSearch(mode string, resultCount int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalSearches++
	n := float64(m.totalSearches)
	m.averageResultCount = (m.averageResultCount*(n-1) + float64(resultCount)) / n
	m.totalDuration += duration
	m.byMode[mode]++
}

// RecordFailure records a search that returned an error.
func (m *SearchMetrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedSearches++
}

// Reset resets all metrics (useful for testing).
func (m *SearchMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSearches = 0
	m.failedSearches = 0
	m.averageResultCount = 0
	m.totalDuration = 0
	m.byMode = make(map[string]int64)
}

// Snapshot returns a snapshot of current metrics.
func (m *SearchMetrics) Snapshot() SearchMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byMode := make(map[string]int64, len(m.byMode))
	for mode, count := range m.byMode {
		byMode[mode] = count
	}

	var avgDuration time.Duration
	if m.totalSearches > 0 {
		avgDuration = m.totalDuration / time.Duration(m.totalSearches)
	}

	return SearchMetricsSnapshot{
		TotalSearches:      m.totalSearches,
		FailedSearches:     m.failedSearches,
		AverageResultCount: m.averageResultCount,
		AverageDuration:    avgDuration,
		ByMode:             byMode,
	}
}

// SearchMetricsSnapshot represents a point-in-time snapshot of metrics.
type SearchMetricsSnapshot struct {
	TotalSearches      int64
	FailedSearches     int64
	AverageResultCount float64
	AverageDuration    time.Duration
	ByMode             map[string]int64
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s SearchMetricsSnapshot) SuccessRate() float64 {
	total := s.TotalSearches + s.FailedSearches
	if total == 0 {
		return 100.0
	}
	return float64(s.TotalSearches) / float64(total) * 100.0
}
