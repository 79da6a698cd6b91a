// Package profiler records per-stage latencies and reports percentiles.
package profiler

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Profiler tracks execution times for named stages
type Profiler struct {
	mu    sync.RWMutex
	times map[string][]time.Duration
}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{
		times: make(map[string][]time.Duration),
	}
}

// Timer represents a timing operation
type Timer struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// Start begins timing a stage
func (p *Profiler) Start(name string) *Timer {
	return &Timer{profiler: p, name: name, start: time.Now()}
}

// Stop records the elapsed time and returns it
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	t.profiler.Record(t.name, d)
	return d
}

// Record adds one sample for name
func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	p.times[name] = append(p.times[name], d)
	p.mu.Unlock()
}

// Time runs fn and records its duration under name
func (p *Profiler) Time(name string, fn func() error) error {
	timer := p.Start(name)
	err := fn()
	timer.Stop()
	return err
}

// Stats contains timing statistics for one stage
type Stats struct {
	Name    string        `json:"name"`
	Count   int           `json:"count"`
	Total   time.Duration `json:"total"`
	Average time.Duration `json:"average"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Median  time.Duration `json:"median"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// GetStats returns timing statistics for a stage
func (p *Profiler) GetStats(name string) *Stats {
	p.mu.RLock()
	sorted := append([]time.Duration(nil), p.times[name]...)
	p.mu.RUnlock()

	if len(sorted) == 0 {
		return &Stats{Name: name}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	n := len(sorted)
	return &Stats{
		Name:    name,
		Count:   n,
		Total:   total,
		Average: total / time.Duration(n),
		Min:     sorted[0],
		Max:     sorted[n-1],
		Median:  sorted[n/2],
		P95:     sorted[percentileIndex(n, 0.95)],
		P99:     sorted[percentileIndex(n, 0.99)],
	}
}

// nearest-rank index
func percentileIndex(n int, q float64) int {
	i := int(float64(n)*q+0.5) - 1
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// GetAllStats returns statistics for every stage, sorted by name
func (p *Profiler) GetAllStats() []*Stats {
	p.mu.RLock()
	names := make([]string, 0, len(p.times))
	for name := range p.times {
		names = append(names, name)
	}
	p.mu.RUnlock()

	sort.Strings(names)
	stats := make([]*Stats, 0, len(names))
	for _, name := range names {
		stats = append(stats, p.GetStats(name))
	}
	return stats
}

// Reset clears all timing data
func (p *Profiler) Reset() {
	p.mu.Lock()
	p.times = make(map[string][]time.Duration)
	p.mu.Unlock()
}

// PrintReport writes a formatted timing table
func (p *Profiler) PrintReport(w io.Writer) {
	stats := p.GetAllStats()
	if len(stats) == 0 {
		fmt.Fprintln(w, "No timing data available")
		return
	}

	fmt.Fprintf(w, "⏱️  Performance Profile Report\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "%-20s %8s %10s %8s %8s %8s %8s %8s\n",
		"Stage", "Count", "Total", "Avg", "Min", "Max", "P95", "P99")
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────────────\n")
	for _, s := range stats {
		fmt.Fprintf(w, "%-20s %8d %10s %8s %8s %8s %8s %8s\n",
			truncate(s.Name, 20),
			s.Count,
			FormatDuration(s.Total),
			FormatDuration(s.Average),
			FormatDuration(s.Min),
			FormatDuration(s.Max),
			FormatDuration(s.P95),
			FormatDuration(s.P99),
		)
	}
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════════\n")
}

// FormatDuration formats a duration for display
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
