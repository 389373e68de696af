package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

func newConfig(metrics string) config.Config {
	cfg := config.Config{}
	cfg.Observability.ServiceName = "orderdesk-test"
	cfg.Observability.EnableMetrics = metrics != ""
	cfg.Observability.MetricsExporter = metrics
	cfg.Observability.PrometheusPath = "/metrics"
	return cfg
}

func TestPrometheusRegistry(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, newConfig("prometheus"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if !mgr.MetricsEnabled() || mgr.TracingEnabled() {
		t.Fatalf("MetricsEnabled = %v, TracingEnabled = %v", mgr.MetricsEnabled(), mgr.TracingEnabled())
	}

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_test_total", Help: "test"})
	if err := mgr.RegisterCollector(counter); err != nil {
		t.Fatalf("RegisterCollector() error = %v", err)
	}
	counter.Inc()

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "orderdesk_test_total 1") {
		t.Fatal("registered collector missing from scrape")
	}
}

func TestMetricsDisabled(t *testing.T) {
	mgr, err := NewManager(fxtest.NewLifecycle(t), newConfig(""), zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if mgr.MetricsEnabled() || mgr.MetricsHandler() != nil {
		t.Fatal("metrics enabled without exporter")
	}
	if err := mgr.RegisterCollector(prometheus.NewCounter(prometheus.CounterOpts{Name: "x_total", Help: "x"})); err != nil {
		t.Fatalf("RegisterCollector() error = %v", err)
	}

	var nilMgr *Manager
	if err := nilMgr.RegisterCollector(nil); err != nil {
		t.Fatalf("nil RegisterCollector() error = %v", err)
	}
}

func TestMeterExportsThroughRegistry(t *testing.T) {
	mgr, err := NewManager(fxtest.NewLifecycle(t), newConfig("prometheus"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	counter, err := mgr.Meter("orderdesk/test").Int64Counter("orderdesk.test.events")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 2)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "orderdesk_test_events_total") {
		t.Fatalf("otel counter missing from scrape:\n%s", rec.Body.String())
	}
}

func TestMeterWithoutManager(t *testing.T) {
	var mgr *Manager
	if mgr.Meter("orderdesk/test") == nil {
		t.Fatal("Meter() = nil, want global meter")
	}
	if mgr.MetricsEnabled() || mgr.TracingEnabled() {
		t.Fatal("nil manager reports enabled providers")
	}
}
