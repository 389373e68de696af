package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
)

const (
	shutdownTimeout     = 10 * time.Second
	exporterDialTimeout = 10 * time.Second
	stdoutMetricPeriod  = 30 * time.Second
)

// Module exposes the observability manager to Fx.
var Module = fx.Provide(NewManager)

// Manager owns the trace and meter providers of the process. With the prometheus exporter,
// otel instruments and plain collectors (runtime, DB pool) share one private registry.
type Manager struct {
	cfg      config.Observability
	tracer   *sdktrace.TracerProvider
	meter    *sdkmetric.MeterProvider
	registry *prometheus.Registry
	scrape   http.Handler
}

// NewManager builds the providers selected in cfg and installs them as otel globals on start.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	obs := cfg.Observability
	ctx := context.Background()

	res, err := sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(obs.ServiceName),
			semconv.ServiceVersion(obs.ServiceVersion),
			attribute.String("deployment.environment", obs.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability resource: %w", err)
	}

	m := &Manager{cfg: obs}
	if obs.EnableTracing {
		if m.tracer, err = newTracerProvider(ctx, obs, res, logger); err != nil {
			return nil, err
		}
	}
	if obs.EnableMetrics {
		if err := m.initMeter(res, logger); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if m.tracer != nil {
				otel.SetTracerProvider(m.tracer)
				otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
					propagation.TraceContext{},
					propagation.Baggage{},
				))
			}
			if m.meter != nil {
				otel.SetMeterProvider(m.meter)
			}
			logger.Info("observability ready",
				zap.Bool("tracing", m.TracingEnabled()),
				zap.Bool("metrics", m.MetricsEnabled()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			var errs error
			if m.tracer != nil {
				errs = errors.Join(errs, m.tracer.Shutdown(ctx))
			}
			if m.meter != nil {
				errs = errors.Join(errs, m.meter.Shutdown(ctx))
			}
			return errs
		},
	})

	return m, nil
}

// TracingEnabled reports whether spans are exported.
func (m *Manager) TracingEnabled() bool {
	return m != nil && m.tracer != nil
}

// MetricsEnabled reports whether instruments are exported.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.meter != nil
}

// Meter returns a named meter from the managed provider, or the global one when metrics are off.
func (m *Manager) Meter(name string) metric.Meter {
	if !m.MetricsEnabled() {
		return otel.Meter(name)
	}
	return m.meter.Meter(name)
}

// MetricsHandler serves the prometheus registry; nil unless the prometheus exporter is active.
func (m *Manager) MetricsHandler() http.Handler {
	return m.scrape
}

// PrometheusPath is the route the metrics handler is mounted on.
func (m *Manager) PrometheusPath() string {
	return m.cfg.PrometheusPath
}

// RegisterCollector adds c to the scraped registry. Without the prometheus exporter it does nothing.
func (m *Manager) RegisterCollector(c prometheus.Collector) error {
	if m == nil || m.registry == nil {
		return nil
	}
	return m.registry.Register(c)
}

func newTracerProvider(ctx context.Context, obs config.Observability, res *sdkresource.Resource, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch obs.TraceExporter {
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if obs.TraceEndpoint == "" {
			return nil, errors.New("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(obs.TraceEndpoint)}
		if obs.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		dialCtx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
		defer cancel()
		exporter, err = otlptracegrpc.New(dialCtx, opts...)
	default:
		logger.Warn("unsupported trace exporter, tracing disabled", zap.String("exporter", obs.TraceExporter))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trace exporter %s: %w", obs.TraceExporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(obs.TraceSampleRatio))),
	), nil
}

func (m *Manager) initMeter(res *sdkresource.Resource, logger *zap.Logger) error {
	var reader sdkmetric.Reader
	switch m.cfg.MetricsExporter {
	case "prometheus":
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return fmt.Errorf("prometheus exporter: %w", err)
		}
		m.registry = registry
		m.scrape = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		reader = exporter
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return fmt.Errorf("stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(stdoutMetricPeriod))
	default:
		logger.Warn("unsupported metrics exporter, metrics disabled", zap.String("exporter", m.cfg.MetricsExporter))
		return nil
	}

	m.meter = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	return nil
}
