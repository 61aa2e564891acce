package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/vigil/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Discovery
	DiscoveryTotal    map[string]int64
	DiscoveryErrors   map[string]int64
	DiscoveryDuration map[string][]float64
	SentinelErrors    map[string]int64 // key: "set/sentinel"
	BackoffDelays     map[string][]float64

	// Failover
	FailoverTotal map[string]int64 // key: "set/reason"

	// Commands
	CommandTotal    map[string]int64
	CommandErrors   map[string]int64
	CommandDuration map[string][]float64
	CommandRetries  map[string]int64 // key: "set/reason"

	// Atomic counters for quick access
	totalDiscoveries atomic.Int64
	totalFailovers   atomic.Int64
	totalRetries     atomic.Int64
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		DiscoveryTotal:    make(map[string]int64),
		DiscoveryErrors:   make(map[string]int64),
		DiscoveryDuration: make(map[string][]float64),
		SentinelErrors:    make(map[string]int64),
		BackoffDelays:     make(map[string][]float64),
		FailoverTotal:     make(map[string]int64),
		CommandTotal:      make(map[string]int64),
		CommandErrors:     make(map[string]int64),
		CommandDuration:   make(map[string][]float64),
		CommandRetries:    make(map[string]int64),
	}
}

// ----------------------
// Discovery
// ----------------------

// IncDiscoveryTotal implements types.MetricsCollector.
func (m *TestMetricsCollector) IncDiscoveryTotal(replicaSet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiscoveryTotal[replicaSet]++
	m.totalDiscoveries.Add(1)
}

// IncDiscoveryError implements types.MetricsCollector.
func (m *TestMetricsCollector) IncDiscoveryError(replicaSet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiscoveryErrors[replicaSet]++
}

// ObserveDiscoveryDuration implements types.MetricsCollector.
func (m *TestMetricsCollector) ObserveDiscoveryDuration(replicaSet string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DiscoveryDuration[replicaSet] = append(m.DiscoveryDuration[replicaSet], seconds)
}

// IncSentinelError implements types.MetricsCollector.
func (m *TestMetricsCollector) IncSentinelError(replicaSet, sentinel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentinelErrors[replicaSet+"/"+sentinel]++
}

// ObserveBackoffDelay implements types.MetricsCollector.
func (m *TestMetricsCollector) ObserveBackoffDelay(replicaSet string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BackoffDelays[replicaSet] = append(m.BackoffDelays[replicaSet], seconds)
}

// ----------------------
// Failover
// ----------------------

// IncFailoverTotal implements types.MetricsCollector.
func (m *TestMetricsCollector) IncFailoverTotal(replicaSet string, reason types.FailoverReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailoverTotal[replicaSet+"/"+string(reason)]++
	m.totalFailovers.Add(1)
}

// ----------------------
// Commands
// ----------------------

// IncCommandTotal implements types.MetricsCollector.
func (m *TestMetricsCollector) IncCommandTotal(replicaSet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandTotal[replicaSet]++
}

// IncCommandError implements types.MetricsCollector.
func (m *TestMetricsCollector) IncCommandError(replicaSet string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandErrors[replicaSet]++
}

// ObserveCommandDuration implements types.MetricsCollector.
func (m *TestMetricsCollector) ObserveCommandDuration(replicaSet string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandDuration[replicaSet] = append(m.CommandDuration[replicaSet], seconds)
}

// IncCommandRetry implements types.MetricsCollector.
func (m *TestMetricsCollector) IncCommandRetry(replicaSet string, reason types.FailoverReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandRetries[replicaSet+"/"+string(reason)]++
	m.totalRetries.Add(1)
}

// ----------------------
// Accessors
// ----------------------

// TotalDiscoveries returns the number of discoveries across all replica sets.
func (m *TestMetricsCollector) TotalDiscoveries() int64 {
	return m.totalDiscoveries.Load()
}

// TotalFailovers returns the number of failovers across all replica sets.
func (m *TestMetricsCollector) TotalFailovers() int64 {
	return m.totalFailovers.Load()
}

// TotalRetries returns the number of retried commands across all replica sets.
func (m *TestMetricsCollector) TotalRetries() int64 {
	return m.totalRetries.Load()
}

// GetSentinelErrors returns the skip count for one sentinel.
func (m *TestMetricsCollector) GetSentinelErrors(replicaSet, sentinel string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.SentinelErrors[replicaSet+"/"+sentinel]
}

// GetFailovers returns the failover count for a replica set and reason.
func (m *TestMetricsCollector) GetFailovers(replicaSet string, reason types.FailoverReason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.FailoverTotal[replicaSet+"/"+string(reason)]
}

// GetCommandRetries returns the retry count for a replica set and reason.
func (m *TestMetricsCollector) GetCommandRetries(replicaSet string, reason types.FailoverReason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.CommandRetries[replicaSet+"/"+string(reason)]
}

// GetBackoffDelays returns a copy of the recorded back-off delays.
func (m *TestMetricsCollector) GetBackoffDelays(replicaSet string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]float64, len(m.BackoffDelays[replicaSet]))
	copy(out, m.BackoffDelays[replicaSet])

	return out
}

// GetCommandTotal returns the command count for a replica set.
func (m *TestMetricsCollector) GetCommandTotal(replicaSet string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.CommandTotal[replicaSet]
}

// GetCommandErrors returns the failed command count for a replica set.
func (m *TestMetricsCollector) GetCommandErrors(replicaSet string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.CommandErrors[replicaSet]
}
