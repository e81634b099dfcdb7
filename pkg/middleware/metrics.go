package middleware

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/microscope/pkg/cell"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "microscope").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "microscope",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors shared by every instrumented
// cell.
type Metrics struct {
	writesTotal      *prometheus.CounterVec
	vetoesTotal      *prometheus.CounterVec
	lastWrite        *prometheus.GaugeVec
	inspectorClients prometheus.Gauge
}

// globalMetrics is created on the first call to Prometheus.
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *Metrics {
	factory := promauto.With(config.Registry)

	return &Metrics{
		writesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of cell writes reaching the metrics middleware",
			ConstLabels: config.ConstLabels,
		}, []string{"cell", "label"}),

		vetoesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "vetoes_total",
			Help:        "Total number of writes vetoed by an earlier middleware",
			ConstLabels: config.ConstLabels,
		}, []string{"cell"}),

		lastWrite: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "last_write_timestamp_seconds",
			Help:        "Unix time of the last write per cell",
			ConstLabels: config.ConstLabels,
		}, []string{"cell"}),

		inspectorClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "inspector_clients",
			Help:        "Number of devtools clients connected to the inspector",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates a middleware that records writes to the named cell.
// The collectors are registered once per process, with the options of the
// first call.
//
// Metrics collected:
//   - microscope_writes_total{cell,label}
//   - microscope_vetoes_total{cell}
//   - microscope_last_write_timestamp_seconds{cell}
//
// Example:
//
//	c.Use(middleware.Prometheus[Cart]("cart", middleware.WithNamespace("shop")))
func Prometheus[T any](cellName string, opts ...MetricsOption) cell.Middleware[T] {
	return Instrument[T](EnableMetrics(opts...), cellName)
}

// EnableMetrics registers the process-wide collectors if that has not
// happened yet and returns them. Options are ignored once registered.
func EnableMetrics(opts ...MetricsOption) *Metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()

	if globalMetrics == nil {
		config := defaultMetricsConfig()
		for _, opt := range opts {
			opt(&config)
		}
		globalMetrics = initMetrics(config)
	}
	return globalMetrics
}

// Instrument creates a middleware recording into m.
func Instrument[T any](m *Metrics, cellName string) cell.Middleware[T] {
	return func(prev, next T, c *cell.Cell[T], label string) T {
		if cell.Identical(prev, next) {
			m.vetoesTotal.WithLabelValues(cellName).Inc()
			return next
		}
		if label == "" {
			label = "none"
		}
		m.writesTotal.WithLabelValues(cellName, label).Inc()
		m.lastWrite.WithLabelValues(cellName).Set(float64(time.Now().UnixNano()) / 1e9)
		return next
	}
}

// NewMetrics registers a private set of collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return initMetrics(config)
}

// GetMetrics returns the process-wide metrics, or nil before the first
// call to Prometheus.
func GetMetrics() *Metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}

// RecordInspectorConnect records a devtools client connecting to the
// inspector.
func RecordInspectorConnect() {
	if m := GetMetrics(); m != nil {
		m.inspectorClients.Inc()
	}
}

// RecordInspectorDisconnect records a devtools client leaving the
// inspector.
func RecordInspectorDisconnect() {
	if m := GetMetrics(); m != nil {
		m.inspectorClients.Dec()
	}
}
