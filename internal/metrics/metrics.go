// Package metrics collects per-function call statistics for hooked functions.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects call statistics keyed by function name.
type Metrics struct {
	mu sync.RWMutex

	functions map[string]*FunctionMetrics

	totalCalls    uint64
	totalPanics   uint64
	totalDuration time.Duration
}

// FunctionMetrics holds metrics for one function.
type FunctionMetrics struct {
	Name          string
	CallCount     uint64
	PanicCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastCall      time.Time
}

// New creates an empty metrics collector.
func New() *Metrics {
	return &Metrics{
		functions: make(map[string]*FunctionMetrics),
	}
}

// RecordCall records one completed or panicked call.
func (m *Metrics) RecordCall(function string, duration time.Duration, panicked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalCalls++
	m.totalDuration += duration
	if panicked {
		m.totalPanics++
	}

	fm := m.functions[function]
	if fm == nil {
		fm = &FunctionMetrics{
			Name:        function,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.functions[function] = fm
	}

	fm.CallCount++
	fm.TotalDuration += duration
	fm.LastCall = time.Now()
	if panicked {
		fm.PanicCount++
	}
	if duration < fm.MinDuration {
		fm.MinDuration = duration
	}
	if duration > fm.MaxDuration {
		fm.MaxDuration = duration
	}
}

// TotalCalls returns the number of recorded calls.
func (m *Metrics) TotalCalls() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalCalls
}

// TotalPanics returns the number of recorded panics.
func (m *Metrics) TotalPanics() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalPanics
}

// TotalDuration returns the summed duration of all calls.
func (m *Metrics) TotalDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDuration
}

// Function returns a copy of the metrics for one function, or nil.
func (m *Metrics) Function(name string) *FunctionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fm := m.functions[name]
	if fm == nil {
		return nil
	}
	c := *fm
	return &c
}

// Names returns the recorded function names, sorted.
func (m *Metrics) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.functions))
	for name := range m.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Busiest returns the n most called functions.
func (m *Metrics) Busiest(n int) []*FunctionMetrics {
	return m.top(n, func(a, b *FunctionMetrics) bool {
		return a.CallCount > b.CallCount
	})
}

// Slowest returns the n functions with the highest average duration.
func (m *Metrics) Slowest(n int) []*FunctionMetrics {
	return m.top(n, func(a, b *FunctionMetrics) bool {
		return a.Average() > b.Average()
	})
}

func (m *Metrics) top(n int, less func(a, b *FunctionMetrics) bool) []*FunctionMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*FunctionMetrics, 0, len(m.functions))
	for _, fm := range m.functions {
		c := *fm
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool {
		if less(all[i], all[j]) {
			return true
		}
		if less(all[j], all[i]) {
			return false
		}
		return all[i].Name < all[j].Name
	})

	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.functions = make(map[string]*FunctionMetrics)
	m.totalCalls = 0
	m.totalPanics = 0
	m.totalDuration = 0
}

// Snapshot is a point-in-time summary.
type Snapshot struct {
	TotalCalls      uint64
	TotalPanics     uint64
	TotalDuration   time.Duration
	AverageDuration time.Duration
	FunctionCount   int
	Timestamp       time.Time
}

// Snapshot returns a summary of current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		TotalCalls:    m.totalCalls,
		TotalPanics:   m.totalPanics,
		TotalDuration: m.totalDuration,
		FunctionCount: len(m.functions),
		Timestamp:     time.Now(),
	}
	if m.totalCalls > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(m.totalCalls)
	}
	return s
}

// Average returns the mean call duration.
func (fm *FunctionMetrics) Average() time.Duration {
	if fm.CallCount == 0 {
		return 0
	}
	return fm.TotalDuration / time.Duration(fm.CallCount)
}

// PanicRate returns the share of calls that panicked, as a percentage.
func (fm *FunctionMetrics) PanicRate() float64 {
	if fm.CallCount == 0 {
		return 0
	}
	return float64(fm.PanicCount) / float64(fm.CallCount) * 100
}
