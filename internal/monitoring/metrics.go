// Package monitoring records the remote round trips made by a session.
package monitoring

import (
	"sync"
	"time"
)

// CallMetrics describes a single round trip to the cluster.
type CallMetrics struct {
	Operation string        `json:"operation"` // submit, delete, describe, download, poll
	Key       string        `json:"key"`       // Frame key involved, if any
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed"`
}

// MetricsCollector collects and stores round-trip metrics.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []CallMetrics
	enabled bool
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{
		metrics: make([]CallMetrics, 0),
		enabled: enabled,
	}
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// RecordCall executes fn and records how long it took and whether it failed.
func (mc *MetricsCollector) RecordCall(operation, key string, fn func() error) error {
	if !mc.IsEnabled() {
		return fn()
	}

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, CallMetrics{
		Operation: operation,
		Key:       key,
		Duration:  duration,
		Failed:    err != nil,
	})
	mc.mu.Unlock()

	return err
}

// GetMetrics returns a copy of all collected metrics.
func (mc *MetricsCollector) GetMetrics() []CallMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]CallMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// Clear removes all collected metrics.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	var totalDuration time.Duration
	failures := 0
	operationCounts := make(map[string]int)

	for _, metric := range mc.metrics {
		totalDuration += metric.Duration
		if metric.Failed {
			failures++
		}
		operationCounts[metric.Operation]++
	}

	return MetricsSummary{
		TotalCalls:      len(mc.metrics),
		Failures:        failures,
		TotalDuration:   totalDuration,
		OperationCounts: operationCounts,
		AverageDuration: totalDuration / time.Duration(len(mc.metrics)),
	}
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalCalls      int            `json:"total_calls"`
	Failures        int            `json:"failures"`
	TotalDuration   time.Duration  `json:"total_duration"`
	OperationCounts map[string]int `json:"operation_counts"`
	AverageDuration time.Duration  `json:"average_duration"`
}
