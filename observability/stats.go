package observability

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/benz9527/xslot/lib/infra"
)

var (
	once            sync.Once
	defaultAppStats *appStats
	appStatsErr     error
)

type appStats struct {
	goroutines metric.Int64ObservableUpDownCounter
	processes  metric.Int64ObservableUpDownCounter
}

// InitAppStats reports the goroutine count and GOMAXPROCS of the process
// together with the otel runtime instrumentation (GC, heap). Only the first
// call registers the instruments, against the meter provider installed at
// that moment.
func InitAppStats(name string) error {
	once.Do(func() {
		builder := &strings.Builder{}
		builder.WriteString("xslot/app")
		builder.WriteString("/")
		if len(strings.TrimSpace(name)) > 0 {
			builder.WriteString(name)
		} else {
			builder.WriteString("default")
		}
		meter := otel.Meter(
			builder.String(),
			metric.WithInstrumentationVersion(otelruntime.Version()),
		)
		defaultAppStats = &appStats{
			goroutines: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
				"xslot.app.goroutines",
				metric.WithDescription(`The application goroutines' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(int64(runtime.NumGoroutine()))
					return nil
				}),
			)),
			processes: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
				"xslot.app.gomaxprocs",
				metric.WithDescription(`The application GOMAXPROCS.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					ob.Observe(int64(runtime.GOMAXPROCS(0)))
					return nil
				}),
			)),
		}
		appStatsErr = infra.WrapErrorStack(otelruntime.Start(
			otelruntime.WithMinimumReadMemStatsInterval(time.Second),
		))
	})
	return appStatsErr
}
