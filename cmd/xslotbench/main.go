package main

import (
	"context"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/benz9527/xslot/bench"
	"github.com/benz9527/xslot/observability"
	"github.com/benz9527/xslot/xlog"
)

type xslotBanner struct{}

func (xslotBanner) JSON() string {
	return `{"app":"xslotbench","desc":"lock-free slot array vs mutex baseline"}`
}

func (xslotBanner) PlainText() string {
	return `
 __  __  ___  _     ___ _____ 
 \ \/ / / __|| |   / _ \_   _|
  >  <  \__ \| |__| (_) || |  
 /_/\_\ |___/|____|\___/ |_|  
`
}

func newLogger(lc fx.Lifecycle, env benchEnv) xlog.XLogger {
	logger := xlog.NewXLogger(
		xlog.WithXLoggerStrLevel(env.logLevel),
		xlog.WithXLoggerEncoder(xlog.JSON),
		xlog.WithXLoggerLevelEncoder(zapcore.CapitalLevelEncoder),
		xlog.WithXLoggerTimeEncoder(zapcore.ISO8601TimeEncoder),
		xlog.WithXLoggerContextFieldExtract(bench.TrialContextField),
	)
	logger.Banner(xslotBanner{})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger
}

// setMaxProcs follows the cgroup CPU quota so that the trials do not run
// more goroutines in parallel than the container may schedule.
func setMaxProcs(lc fx.Lifecycle, logger xlog.XLogger) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Logf(zapcore.InfoLevel, format, args...)
	}))
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			undo()
			return nil
		},
	})
	return nil
}

func newTrialConfig(env benchEnv) (bench.TrialConfig, error) {
	return bench.NewTrialConfig(env.trialOptions()...)
}

func newRunner(lc fx.Lifecycle, cfg bench.TrialConfig, logger xlog.XLogger) (*bench.Runner, error) {
	runner, err := bench.NewRunner(cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			runner.Release()
			return nil
		},
	})
	return runner, nil
}

func registerMetrics(lc fx.Lifecycle, env benchEnv, logger xlog.XLogger) error {
	shutdown, err := observability.NewMetricsExporter(
		observability.MetricsExporterType(env.metricsExporter),
		env.metricsInterval,
		env.prometheusAddress,
	)
	if err != nil {
		return err
	}
	if err = observability.InitAppStats("xslotbench"); err != nil {
		logger.ErrorStack(err, "otel runtime instrumentation")
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})
	return nil
}

// runBench starts the rounds once the app is up and shuts the app down
// when they finish. The exit code is 1 if any trial failed.
func runBench(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *bench.Runner, logger xlog.XLogger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				rep, err := runner.Run(ctx)
				if err != nil {
					logger.ErrorStack(err, "bench failed")
					code = 1
				}
				logger.Info("bench report", zap.Reflect("report", rep))
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return nil
		},
	})
}

func appOptions() fx.Option {
	return fx.Options(
		fx.Provide(
			loadBenchEnv,
			newLogger,
			newTrialConfig,
			newRunner,
		),
		fx.WithLogger(func(logger xlog.XLogger) fxevent.Logger {
			return xlog.NewFxXLogger(logger)
		}),
		fx.Invoke(
			setMaxProcs,
			registerMetrics,
			runBench,
		),
	)
}

func main() {
	fx.New(appOptions()).Run()
}
