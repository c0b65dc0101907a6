// Package monitoring provides throughput metrics for parse sessions and an
// optional HTTP endpoint to watch them while a long load runs.
package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// OperationMetrics represents performance metrics for one parsed source.
type OperationMetrics struct {
	Duration      time.Duration `json:"duration"`
	RowsProcessed int64         `json:"rows_processed"`
	RowsFailed    int64         `json:"rows_failed"`
	BytesRead     int64         `json:"bytes_read"`
	MemoryUsed    int64         `json:"memory_used"`
	Operation     string        `json:"operation"`
	Source        string        `json:"source,omitempty"`
	Failed        bool          `json:"failed"`
}

// OperationStats is what a recorded operation reports about its work.
type OperationStats struct {
	RowsProcessed int64
	RowsFailed    int64
	BytesRead     int64
}

// MetricsCollector collects and stores performance metrics.
type MetricsCollector struct {
	mu      sync.RWMutex
	metrics []OperationMetrics
	enabled bool
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(enabled bool) *MetricsCollector {
	return &MetricsCollector{
		metrics: make([]OperationMetrics, 0),
		enabled: enabled,
	}
}

// IsEnabled returns whether metrics collection is enabled.
func (mc *MetricsCollector) IsEnabled() bool {
	if mc == nil {
		return false
	}
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.enabled
}

// RecordOperation executes fn and records its duration, memory growth and
// reported stats. A nil or disabled collector only runs fn.
func (mc *MetricsCollector) RecordOperation(operation, source string, fn func() (OperationStats, error)) error {
	if !mc.IsEnabled() {
		_, err := fn()
		return err
	}

	var memBefore runtime.MemStats
	runtime.ReadMemStats(&memBefore)

	start := time.Now()
	stats, err := fn()
	duration := time.Since(start)

	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)

	memoryUsed := int64(memAfter.TotalAlloc - memBefore.TotalAlloc) //nolint:gosec // monotonic counter

	metrics := OperationMetrics{
		Duration:      duration,
		RowsProcessed: stats.RowsProcessed,
		RowsFailed:    stats.RowsFailed,
		BytesRead:     stats.BytesRead,
		MemoryUsed:    memoryUsed,
		Operation:     operation,
		Source:        source,
		Failed:        err != nil,
	}

	mc.mu.Lock()
	mc.metrics = append(mc.metrics, metrics)
	mc.mu.Unlock()

	return err
}

// GetMetrics returns a copy of all collected metrics.
func (mc *MetricsCollector) GetMetrics() []OperationMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	result := make([]OperationMetrics, len(mc.metrics))
	copy(result, mc.metrics)
	return result
}

// Clear removes all collected metrics.
func (mc *MetricsCollector) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.metrics = mc.metrics[:0]
}

// SetEnabled enables or disables metrics collection.
func (mc *MetricsCollector) SetEnabled(enabled bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.enabled = enabled
}

// GetSummary returns a summary of collected metrics.
func (mc *MetricsCollector) GetSummary() MetricsSummary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	if len(mc.metrics) == 0 {
		return MetricsSummary{}
	}

	var summary MetricsSummary
	summary.OperationCounts = make(map[string]int)
	for _, metric := range mc.metrics {
		summary.TotalDuration += metric.Duration
		summary.TotalMemory += metric.MemoryUsed
		summary.TotalRows += metric.RowsProcessed
		summary.TotalFailedRows += metric.RowsFailed
		summary.TotalBytes += metric.BytesRead
		summary.OperationCounts[metric.Operation]++
	}
	summary.TotalOperations = len(mc.metrics)
	summary.AverageDuration = summary.TotalDuration / time.Duration(len(mc.metrics))
	if secs := summary.TotalDuration.Seconds(); secs > 0 {
		summary.RowsPerSecond = float64(summary.TotalRows) / secs
	}
	return summary
}

// MetricsSummary provides aggregate statistics for collected metrics.
type MetricsSummary struct {
	TotalOperations int            `json:"total_operations"`
	TotalDuration   time.Duration  `json:"total_duration"`
	TotalMemory     int64          `json:"total_memory"`
	TotalRows       int64          `json:"total_rows"`
	TotalFailedRows int64          `json:"total_failed_rows"`
	TotalBytes      int64          `json:"total_bytes"`
	RowsPerSecond   float64        `json:"rows_per_second"`
	OperationCounts map[string]int `json:"operation_counts"`
	AverageDuration time.Duration  `json:"average_duration"`
}
