package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/microscope/pkg/cell"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func TestPrometheusRecordsWritesByLabel(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	c := cell.New(0).Use(Prometheus[int]("counter", WithRegistry(reg)))
	c.SetValue(1, "inc")
	c.SetValue(2, "inc")
	c.SetValue(3)
	c.SetValue(3, "inc") // identical: short-circuits before middlewares

	m := GetMetrics()
	if m == nil {
		t.Fatal("expected GetMetrics to return collectors after initialization")
	}
	if got := metricCounterValue(t, m.writesTotal.WithLabelValues("counter", "inc")); got != 2 {
		t.Fatalf("writes_total(inc)=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.writesTotal.WithLabelValues("counter", "none")); got != 1 {
		t.Fatalf("writes_total(none)=%v, want 1", got)
	}
	if got := metricGaugeValue(t, m.lastWrite.WithLabelValues("counter")); got <= 0 {
		t.Fatalf("last_write_timestamp_seconds=%v, want > 0", got)
	}
}

func TestPrometheusCountsVetoes(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	veto := func(prev, next int, _ *cell.Cell[int], _ string) int { return prev }
	c := cell.New(0).Use(veto, Prometheus[int]("guarded", WithRegistry(reg)))
	c.SetValue(5)

	m := GetMetrics()
	if got := metricCounterValue(t, m.vetoesTotal.WithLabelValues("guarded")); got != 1 {
		t.Fatalf("vetoes_total=%v, want 1", got)
	}
	if c.Get() != 0 {
		t.Fatalf("Get()=%d, want 0", c.Get())
	}
}

func TestPrometheusRegistersOnce(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	_ = Prometheus[int]("a", WithRegistry(reg))
	first := GetMetrics()
	_ = Prometheus[string]("b", WithRegistry(reg))
	if GetMetrics() != first {
		t.Fatal("second Prometheus call re-initialized metrics")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	// vectors without children are not gathered; the plain gauge is
	if len(families) != 1 || families[0].GetName() != "microscope_inspector_clients" {
		t.Fatalf("gathered %d families", len(families))
	}
}

func TestInspectorClientGauge(t *testing.T) {
	resetGlobalMetricsForTest()
	RecordInspectorConnect() // no metrics yet: no-op

	_ = Prometheus[int]("x", WithRegistry(prometheus.NewRegistry()), WithNamespace("test"))
	m := GetMetrics()

	RecordInspectorConnect()
	RecordInspectorConnect()
	RecordInspectorDisconnect()

	if got := metricGaugeValue(t, m.inspectorClients); got != 1 {
		t.Fatalf("inspector_clients=%v, want 1", got)
	}
}

func TestNewMetricsIsPrivate(t *testing.T) {
	resetGlobalMetricsForTest()
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()), WithSubsystem("cells"))

	c := cell.New("a").Use(Instrument[string](m, "name"))
	c.SetValue("b", "rename")

	if GetMetrics() != nil {
		t.Fatal("NewMetrics should not set the global metrics")
	}
	if got := metricCounterValue(t, m.writesTotal.WithLabelValues("name", "rename")); got != 1 {
		t.Fatalf("writes_total=%v, want 1", got)
	}
}
