// Package metrics provides internal metrics utilities for vigil.
package metrics

import "github.com/arloliu/vigil/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks throughout the codebase.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns m, or a NopMetrics when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNopMetrics()
	}

	return m
}

// ----------------------
// Discovery
// ----------------------

// IncDiscoveryTotal discards the metric.
func (m *NopMetrics) IncDiscoveryTotal(_ string) {}

// IncDiscoveryError discards the metric.
func (m *NopMetrics) IncDiscoveryError(_ string) {}

// ObserveDiscoveryDuration discards the metric.
func (m *NopMetrics) ObserveDiscoveryDuration(_ string, _ float64) {}

// IncSentinelError discards the metric.
func (m *NopMetrics) IncSentinelError(_, _ string) {}

// ObserveBackoffDelay discards the metric.
func (m *NopMetrics) ObserveBackoffDelay(_ string, _ float64) {}

// ----------------------
// Failover
// ----------------------

// IncFailoverTotal discards the metric.
func (m *NopMetrics) IncFailoverTotal(_ string, _ types.FailoverReason) {}

// ----------------------
// Commands
// ----------------------

// IncCommandTotal discards the metric.
func (m *NopMetrics) IncCommandTotal(_ string) {}

// IncCommandError discards the metric.
func (m *NopMetrics) IncCommandError(_ string) {}

// ObserveCommandDuration discards the metric.
func (m *NopMetrics) ObserveCommandDuration(_ string, _ float64) {}

// IncCommandRetry discards the metric.
func (m *NopMetrics) IncCommandRetry(_ string, _ types.FailoverReason) {}
