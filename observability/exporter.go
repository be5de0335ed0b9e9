package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"

	"github.com/benz9527/xslot/lib/infra"
)

type MetricsExporterType string

const (
	NoneMetricsExporter       MetricsExporterType = "none"
	StdOutMetricsExporter     MetricsExporterType = "stdout"
	PrometheusMetricsExporter MetricsExporterType = "prometheus"
)

// ShutdownCallback flushes and stops the installed meter provider.
type ShutdownCallback func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// NewConsoleMetricsExporter serves for test/dev environment.
func NewConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (ShutdownCallback, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// NewPrometheusMetricsExporter serves for the product environment. The
// returned handler renders the scrape page. A non-empty addr also starts an
// HTTP server for it at /metrics, stopped by the shutdown callback.
func NewPrometheusMetricsExporter(addr string) (ShutdownCallback, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, infra.WrapErrorStack(err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	otel.SetMeterProvider(mp)

	if len(strings.TrimSpace(addr)) == 0 {
		return mp.Shutdown, handler, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, multierr.Append(
			infra.WrapErrorStackWithMessage(err, "[observability] prometheus listen"),
			mp.Shutdown(context.Background()),
		)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return func(ctx context.Context) error {
		var err error
		if sErr := srv.Shutdown(ctx); sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
			err = multierr.Append(err, sErr)
		}
		return multierr.Append(err, mp.Shutdown(ctx))
	}, handler, nil
}

// NewMetricsExporter installs the exporter named by typ. The none
// exporter keeps the otel no-op provider.
func NewMetricsExporter(typ MetricsExporterType, interval time.Duration, promAddr string) (ShutdownCallback, error) {
	switch typ {
	case NoneMetricsExporter, "":
		return noopShutdown, nil
	case StdOutMetricsExporter:
		return NewConsoleMetricsExporter(interval, interval, stdoutmetric.WithPrettyPrint())
	case PrometheusMetricsExporter:
		shutdown, _, err := NewPrometheusMetricsExporter(promAddr)
		return shutdown, err
	default:
	}
	return nil, infra.NewErrorStackf("[observability] unknown metrics exporter %q", typ)
}
