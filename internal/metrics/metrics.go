// Package metrics provides the metrics abstraction used by the guardian
// scheduler.
//
// The Metrics interface supports gauges, counters and histograms keyed by
// name. Collection fans calls out to several backends so the log backend and
// the Prometheus exporter can run side by side.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Metrics defines the interface for collecting and managing guardian metrics.
type Metrics interface {
	// Initialize prepares the metrics system for data collection.
	Initialize(ctx context.Context) error

	// Flush sends any buffered metrics data to ensure all metrics are reported.
	Flush(ctx context.Context) error

	// Shutdown gracefully shuts down the metrics system, performing cleanup.
	Shutdown(ctx context.Context) error

	// UpdateGauge sets a gauge metric to the specified value.
	UpdateGauge(ctx context.Context, name string, value float64) error

	// IncrementCounter increments a counter metric by the specified value.
	IncrementCounter(ctx context.Context, name string, value uint64) error

	// RecordHistogram records a value in a histogram metric.
	RecordHistogram(ctx context.Context, name string, value float64) error
}

// Collection manages multiple Metrics implementations and delegates calls to all of them.
// A failing backend does not prevent the others from receiving the call.
type Collection struct {
	metrics []Metrics
	mu      sync.RWMutex
}

// NewCollection creates a new Collection with the given metrics implementations.
func NewCollection(metrics ...Metrics) *Collection {
	return &Collection{
		metrics: metrics,
	}
}

// Add adds a new Metrics implementation to the collection.
func (c *Collection) Add(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, m)
}

func (c *Collection) each(fn func(Metrics) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	for _, m := range c.metrics {
		if err := fn(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialize initializes all metrics in the collection.
func (c *Collection) Initialize(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Initialize(ctx) })
}

// Flush flushes all metrics in the collection.
func (c *Collection) Flush(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Flush(ctx) })
}

// Shutdown shuts down all metrics in the collection.
func (c *Collection) Shutdown(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Shutdown(ctx) })
}

// UpdateGauge updates a gauge metric across all implementations.
func (c *Collection) UpdateGauge(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.UpdateGauge(ctx, name, value) })
}

// IncrementCounter increments a counter across all implementations.
func (c *Collection) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return c.each(func(m Metrics) error { return m.IncrementCounter(ctx, name, value) })
}

// RecordHistogram records a histogram value across all implementations.
func (c *Collection) RecordHistogram(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.RecordHistogram(ctx, name, value) })
}

// Len returns the number of metrics implementations in the collection.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metrics)
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

// NewNoopMetrics creates a new NoopMetrics.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) Initialize(ctx context.Context) error                              { return nil }
func (n *NoopMetrics) Flush(ctx context.Context) error                                   { return nil }
func (n *NoopMetrics) Shutdown(ctx context.Context) error                                { return nil }
func (n *NoopMetrics) UpdateGauge(ctx context.Context, name string, value float64) error { return nil }
func (n *NoopMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return nil
}
func (n *NoopMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	return nil
}

// LogMetrics keeps metric values in memory and logs them on Flush.
type LogMetrics struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	gauges   map[string]float64
	counters map[string]uint64
}

// NewLogMetrics creates a new LogMetrics with the given logger.
// If logger is nil, the default logger is used.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{
		logger:   logger,
		gauges:   make(map[string]float64),
		counters: make(map[string]uint64),
	}
}

// Initialize initializes the log metrics.
func (l *LogMetrics) Initialize(ctx context.Context) error {
	l.logger.Debug("metrics initialized")
	return nil
}

// Flush logs all current metric values.
func (l *LogMetrics) Flush(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	l.logger.Info("metrics flush",
		"gauges", l.gauges,
		"counters", l.counters,
	)
	return nil
}

// Shutdown flushes once more so the final totals reach the log.
func (l *LogMetrics) Shutdown(ctx context.Context) error {
	return l.Flush(ctx)
}

// UpdateGauge stores the gauge value.
func (l *LogMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gauges[name] = value
	return nil
}

// IncrementCounter adds to the counter.
func (l *LogMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[name] += value
	return nil
}

// RecordHistogram logs the observation at debug level.
func (l *LogMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	l.logger.Debug("histogram recorded", "name", name, "value", value)
	return nil
}

// Counter returns the current value of a counter.
func (l *LogMetrics) Counter(name string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[name]
}

// Gauge returns the current value of a gauge.
func (l *LogMetrics) Gauge(name string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gauges[name]
}

// Metric names used by the scheduler.
const (
	MetricTicks             = "ticks_total"
	MetricProgramsWatched   = "programs_watched"
	MetricProgramsChecked   = "programs_checked_total"
	MetricFetchFailures     = "fetch_failures_total"
	MetricFetchRetries      = "fetch_retries_total"
	MetricAlertsEmitted     = "alerts_emitted_total"
	MetricAlertsCritical    = "alerts_critical_total"
	MetricAlertsHigh        = "alerts_high_total"
	MetricAlertsMedium      = "alerts_medium_total"
	MetricSinkErrors        = "sink_errors_total"
	MetricSnapshotsUpdated  = "snapshots_updated_total"
	MetricSnapshotsBaseline = "snapshots_baselined_total"
	MetricTickDuration      = "tick_duration_seconds"
	MetricFetchDuration     = "fetch_duration_seconds"
)
