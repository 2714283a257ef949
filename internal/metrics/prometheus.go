package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const prometheusNamespace = "guardian"

// PrometheusMetrics exports metrics through a Prometheus registry.
// Collectors are created on first use of a name.
type PrometheusMetrics struct {
	registry *prometheus.Registry
	listen   string
	logger   *slog.Logger

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
	server     *http.Server
}

// NewPrometheusMetrics creates an exporter. When listen is empty no HTTP
// endpoint is started and the registry can be scraped through Registry().
func NewPrometheusMetrics(listen string) *PrometheusMetrics {
	return &PrometheusMetrics{
		registry:   prometheus.NewRegistry(),
		listen:     listen,
		logger:     slog.Default(),
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// WithLogger sets a custom logger.
func (p *PrometheusMetrics) WithLogger(logger *slog.Logger) *PrometheusMetrics {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Registry returns the underlying registry.
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns the scrape handler for the registry.
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Initialize starts the /metrics endpoint when a listen address is configured.
func (p *PrometheusMetrics) Initialize(ctx context.Context) error {
	if p.listen == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())

	p.mu.Lock()
	p.server = &http.Server{
		Addr:              p.listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := p.server
	p.mu.Unlock()

	go func() {
		p.logger.Info("prometheus exporter listening", "addr", p.listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("prometheus exporter stopped", "error", err)
		}
	}()
	return nil
}

// Flush is a no-op; Prometheus pulls.
func (p *PrometheusMetrics) Flush(ctx context.Context) error { return nil }

// Shutdown stops the HTTP endpoint.
func (p *PrometheusMetrics) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	server := p.server
	p.server = nil
	p.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// UpdateGauge sets a gauge.
func (p *PrometheusMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	g, err := p.gauge(name)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

// IncrementCounter adds to a counter.
func (p *PrometheusMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	c, err := p.counter(name)
	if err != nil {
		return err
	}
	c.Add(float64(value))
	return nil
}

// RecordHistogram observes a histogram value.
func (p *PrometheusMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	h, err := p.histogram(name)
	if err != nil {
		return err
	}
	h.Observe(value)
	return nil
}

func (p *PrometheusMetrics) counter(name string) (prometheus.Counter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c, nil
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: prometheusNamespace,
		Name:      name,
		Help:      fmt.Sprintf("Guardian counter %s", name),
	})
	if err := p.registry.Register(c); err != nil {
		return nil, fmt.Errorf("failed to register counter %s: %w", name, err)
	}
	p.counters[name] = c
	return c, nil
}

func (p *PrometheusMetrics) gauge(name string) (prometheus.Gauge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.gauges[name]; ok {
		return g, nil
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: prometheusNamespace,
		Name:      name,
		Help:      fmt.Sprintf("Guardian gauge %s", name),
	})
	if err := p.registry.Register(g); err != nil {
		return nil, fmt.Errorf("failed to register gauge %s: %w", name, err)
	}
	p.gauges[name] = g
	return g, nil
}

func (p *PrometheusMetrics) histogram(name string) (prometheus.Histogram, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.histograms[name]; ok {
		return h, nil
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: prometheusNamespace,
		Name:      name,
		Help:      fmt.Sprintf("Guardian histogram %s", name),
		Buckets:   prometheus.DefBuckets,
	})
	if err := p.registry.Register(h); err != nil {
		return nil, fmt.Errorf("failed to register histogram %s: %w", name, err)
	}
	p.histograms[name] = h
	return h, nil
}
