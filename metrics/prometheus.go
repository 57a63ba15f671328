package metrics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-router/types"
	"github.com/saiset-co/sai-router/utils"
)

// Registry is the prometheus backed types.MetricsManager. Every service gets
// its own prometheus.Registry, so tests and embedded routers never collide
// on the global default registry.
type Registry struct {
	logger     types.Logger
	config     *types.MetricsConfig
	registry   *prometheus.Registry
	exposition fasthttp.RequestHandler
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.RWMutex
	running    int32
	lastUpdate atomic.Int64
}

func NewRegistry(config *types.MetricsConfig, logger types.Logger) *Registry {
	if config == nil {
		config = &types.MetricsConfig{}
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	registry := prometheus.NewRegistry()
	if config.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := &Registry{
		logger:     logger,
		config:     config,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	r.exposition = fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	logger.Debug("Prometheus registry initialized",
		zap.String("namespace", config.Namespace),
		zap.String("subsystem", config.Subsystem),
		zap.Bool("go_metrics", config.EnableGoMetrics))

	return r
}

func (r *Registry) Start() error {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return types.ErrServiceIsRunning
	}
	return nil
}

func (r *Registry) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.running, 1, 0) {
		return types.ErrServiceIsNotRunning
	}
	return nil
}

func (r *Registry) IsRunning() bool {
	return atomic.LoadInt32(&r.running) == 1
}

func (r *Registry) Counter(name string, labels map[string]string) types.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	counter, exists := r.counters[name]
	if !exists {
		counter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   r.config.Namespace,
				Subsystem:   r.config.Subsystem,
				Name:        name,
				Help:        fmt.Sprintf("Counter metric %s", name),
				ConstLabels: r.config.Labels,
			},
			labelNames(labels),
		)
		r.registry.MustRegister(counter)
		r.counters[name] = counter
		r.logger.Debug("Prometheus counter created", zap.String("name", name))
	}

	r.touch()
	return &PrometheusCounter{logger: r.logger, counter: counter, labels: labels}
}

func (r *Registry) Gauge(name string, labels map[string]string) types.Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	gauge, exists := r.gauges[name]
	if !exists {
		gauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   r.config.Namespace,
				Subsystem:   r.config.Subsystem,
				Name:        name,
				Help:        fmt.Sprintf("Gauge metric %s", name),
				ConstLabels: r.config.Labels,
			},
			labelNames(labels),
		)
		r.registry.MustRegister(gauge)
		r.gauges[name] = gauge
		r.logger.Debug("Prometheus gauge created", zap.String("name", name))
	}

	r.touch()
	return &PrometheusGauge{logger: r.logger, gauge: gauge, labels: labels}
}

// Histogram uses the buckets of the first call for a name; later calls only
// pick the label values.
func (r *Registry) Histogram(name string, buckets []float64, labels map[string]string) types.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	histogram, exists := r.histograms[name]
	if !exists {
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		histogram = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   r.config.Namespace,
				Subsystem:   r.config.Subsystem,
				Name:        name,
				Help:        fmt.Sprintf("Histogram metric %s", name),
				Buckets:     buckets,
				ConstLabels: r.config.Labels,
			},
			labelNames(labels),
		)
		r.registry.MustRegister(histogram)
		r.histograms[name] = histogram
		r.logger.Debug("Prometheus histogram created", zap.String("name", name))
	}

	r.touch()
	return &PrometheusHistogram{histogram: histogram, labels: labels}
}

// Handler serves the text exposition on GET at the configured path and
// passes every other request down the chain.
func (r *Registry) Handler() types.Middleware {
	return types.MiddlewareFunc(func(ctx *types.RequestCtx, next types.Next) error {
		if !ctx.IsGet() || ctx.RawPath() != r.config.Path {
			return next()
		}

		r.exposition(ctx.RequestCtx)
		return nil
	})
}

func (r *Registry) GetMetrics() ([]types.MetricValue, error) {
	families, err := r.registry.Gather()
	if err != nil {
		r.logger.Error("Failed to gather prometheus metrics", zap.Error(err))
		return nil, err
	}

	metrics := make([]types.MetricValue, 0, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, label := range m.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}

			metrics = append(metrics, types.MetricValue{
				Name:   mf.GetName(),
				Type:   mf.GetType().String(),
				Value:  metricValue(m),
				Labels: labels,
				Help:   mf.GetHelp(),
			})
		}
	}

	return metrics, nil
}

func (r *Registry) GetStats() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := types.MetricsStats{
		TotalMetrics:     len(r.counters) + len(r.gauges) + len(r.histograms),
		CounterMetrics:   len(r.counters),
		GaugeMetrics:     len(r.gauges),
		HistogramMetrics: len(r.histograms),
		LastUpdate:       time.Unix(0, r.lastUpdate.Load()),
	}

	return utils.Marshal(stats)
}

// Gatherer exposes the underlying registry, e.g. for testutil.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) touch() {
	r.lastUpdate.Store(time.Now().UnixNano())
}

func metricValue(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Histogram != nil:
		return m.Histogram.GetSampleSum()
	case m.Summary != nil:
		return m.Summary.GetSampleSum()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type PrometheusCounter struct {
	logger  types.Logger
	counter *prometheus.CounterVec
	labels  map[string]string
}

func (c *PrometheusCounter) Inc() {
	c.counter.With(c.labels).Inc()
}

func (c *PrometheusCounter) Add(value float64) {
	c.counter.With(c.labels).Add(value)
}

func (c *PrometheusCounter) Get() float64 {
	metric := &dto.Metric{}
	if err := c.counter.With(c.labels).Write(metric); err != nil {
		c.logger.Error("Failed to read counter", zap.Error(err))
	}
	return metric.GetCounter().GetValue()
}

type PrometheusGauge struct {
	logger types.Logger
	gauge  *prometheus.GaugeVec
	labels map[string]string
}

func (g *PrometheusGauge) Set(value float64) {
	g.gauge.With(g.labels).Set(value)
}

func (g *PrometheusGauge) Inc() {
	g.gauge.With(g.labels).Inc()
}

func (g *PrometheusGauge) Dec() {
	g.gauge.With(g.labels).Dec()
}

func (g *PrometheusGauge) Get() float64 {
	metric := &dto.Metric{}
	if err := g.gauge.With(g.labels).Write(metric); err != nil {
		g.logger.Error("Failed to read gauge", zap.Error(err))
	}
	return metric.GetGauge().GetValue()
}

type PrometheusHistogram struct {
	histogram *prometheus.HistogramVec
	labels    map[string]string
}

func (h *PrometheusHistogram) Observe(value float64) {
	h.histogram.With(h.labels).Observe(value)
}

func (h *PrometheusHistogram) ObserveDuration(start time.Time) {
	h.histogram.With(h.labels).Observe(time.Since(start).Seconds())
}

func (h *PrometheusHistogram) GetCount() uint64 {
	if histogram := h.read(); histogram != nil {
		return histogram.GetSampleCount()
	}
	return 0
}

func (h *PrometheusHistogram) GetSum() float64 {
	if histogram := h.read(); histogram != nil {
		return histogram.GetSampleSum()
	}
	return 0
}

func (h *PrometheusHistogram) read() *dto.Histogram {
	metric := &dto.Metric{}
	promMetric, ok := h.histogram.With(h.labels).(prometheus.Metric)
	if !ok {
		return nil
	}
	if err := promMetric.Write(metric); err != nil {
		return nil
	}
	return metric.GetHistogram()
}
