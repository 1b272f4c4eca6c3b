// metrics.go - Metrics collection for the vault daemon
package main

import (
	"sync"
	"time"
)

// MetricsCollector tracks operation counters and latency histograms.
// Rejections are counted without their variant; only totals are exported.
type MetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	histograms map[string][]float64
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter increments a counter metric
func (mc *MetricsCollector) IncrementCounter(name string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counters[name]++
}

// RecordHistogram records a value in a histogram
func (mc *MetricsCollector) RecordHistogram(name string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	values := append(mc.histograms[name], value)
	// Keep only last 1000 values for memory efficiency
	if len(values) > 1000 {
		values = values[len(values)-1000:]
	}
	mc.histograms[name] = values
}

// Summary returns all counters plus min/max/avg/count per histogram.
func (mc *MetricsCollector) Summary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	counters := make(map[string]int64, len(mc.counters))
	for name, value := range mc.counters {
		counters[name] = value
	}

	histograms := make(map[string]map[string]float64, len(mc.histograms))
	for name, values := range mc.histograms {
		if len(values) == 0 {
			continue
		}
		h := map[string]float64{
			"count": float64(len(values)),
			"min":   values[0],
			"max":   values[0],
			"sum":   0,
		}
		for _, v := range values {
			if v < h["min"] {
				h["min"] = v
			}
			if v > h["max"] {
				h["max"] = v
			}
			h["sum"] += v
		}
		h["avg"] = h["sum"] / h["count"]
		histograms[name] = h
	}

	return map[string]interface{}{
		"counters":   counters,
		"histograms": histograms,
	}
}

// Predefined metric names
const (
	MetricRegistrations  = "registrations"
	MetricDeposits       = "deposits"
	MetricPayments       = "payments"
	MetricWithdrawals    = "withdrawals"
	MetricAuthRejections = "auth_rejections"
	MetricRateLimited    = "rate_limited"
	MetricVerifyTime     = "verify_seconds"
	MetricSettlementTime = "settlement_seconds"
)

// RecordVerify records the duration of a verification-and-apply step.
func (mc *MetricsCollector) RecordVerify(d time.Duration) {
	mc.RecordHistogram(MetricVerifyTime, d.Seconds())
}

// RecordSettlement records the time a withdrawal waited for a terminal
// settlement status.
func (mc *MetricsCollector) RecordSettlement(d time.Duration) {
	mc.RecordHistogram(MetricSettlementTime, d.Seconds())
}
