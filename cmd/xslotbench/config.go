package main

import (
	"time"

	"github.com/dogmatiq/ferrite"

	"github.com/benz9527/xslot/bench"
	"github.com/benz9527/xslot/observability"
)

// FerriteRegistry is a registry of the environment variables used by
// xslotbench.
var FerriteRegistry = ferrite.NewRegistry(
	"benz9527.xslot",
	"xslot bench",
	ferrite.WithDocumentationURL("https://github.com/benz9527/xslot#readme"),
)

var capacityEnv = ferrite.
	Signed[int]("XSLOT_CAPACITY", "the number of slots of the arrays under test").
	WithDefault(100).
	WithMinimum(1).
	Required(ferrite.WithRegistry(FerriteRegistry))

var producersEnv = ferrite.
	Signed[int]("XSLOT_PRODUCERS", "the number of inserting goroutines").
	WithDefault(6).
	WithMinimum(1).
	Required(ferrite.WithRegistry(FerriteRegistry))

var consumersEnv = ferrite.
	Signed[int]("XSLOT_CONSUMERS", "the number of taking goroutines").
	WithDefault(2).
	WithMinimum(1).
	Required(ferrite.WithRegistry(FerriteRegistry))

var opsPerProducerEnv = ferrite.
	Signed[int]("XSLOT_OPS_PER_PRODUCER", "the number of values each producer inserts").
	WithDefault(100_000).
	WithMinimum(1).
	Required(ferrite.WithRegistry(FerriteRegistry))

var trialsEnv = ferrite.
	Signed[int]("XSLOT_TRIALS", "the number of rounds of each trial").
	WithDefault(10).
	WithMinimum(1).
	Required(ferrite.WithRegistry(FerriteRegistry))

var mutexEnv = ferrite.
	Enum("XSLOT_MUTEX", "the lock of the baseline array").
	WithMembers(string(bench.GoSyncMutex), string(bench.SpinMutex)).
	WithDefault(string(bench.GoSyncMutex)).
	Required(ferrite.WithRegistry(FerriteRegistry))

var statsEnv = ferrite.
	Bool("XSLOT_STATS", "export the lock-free array metrics").
	WithDefault(false).
	Required(ferrite.WithRegistry(FerriteRegistry))

var metricsExporterEnv = ferrite.
	Enum("XSLOT_METRICS_EXPORTER", "the otel metrics exporter").
	WithMembers(
		string(observability.NoneMetricsExporter),
		string(observability.StdOutMetricsExporter),
		string(observability.PrometheusMetricsExporter),
	).
	WithDefault(string(observability.NoneMetricsExporter)).
	Required(ferrite.WithRegistry(FerriteRegistry))

var metricsIntervalEnv = ferrite.
	Duration("XSLOT_METRICS_INTERVAL", "the stdout metrics export interval").
	WithDefault(10 * time.Second).
	Required(ferrite.WithRegistry(FerriteRegistry))

var prometheusAddressEnv = ferrite.
	String("XSLOT_PROMETHEUS_ADDRESS", "the listen address of the prometheus scrape endpoint").
	Optional(ferrite.WithRegistry(FerriteRegistry))

var logLevelEnv = ferrite.
	Enum("XLOG_LVL", "the log level").
	WithMembers("DEBUG", "INFO", "WARN", "ERROR").
	WithDefault("INFO").
	Required(ferrite.WithRegistry(FerriteRegistry))

type benchEnv struct {
	capacity          int
	producers         int
	consumers         int
	opsPerProducer    int
	trials            int
	mutex             string
	stats             bool
	metricsExporter   string
	metricsInterval   time.Duration
	prometheusAddress string
	logLevel          string
}

func loadBenchEnv() benchEnv {
	promAddr, _ := prometheusAddressEnv.Value()
	return benchEnv{
		capacity:          capacityEnv.Value(),
		producers:         producersEnv.Value(),
		consumers:         consumersEnv.Value(),
		opsPerProducer:    opsPerProducerEnv.Value(),
		trials:            trialsEnv.Value(),
		mutex:             mutexEnv.Value(),
		stats:             statsEnv.Value(),
		metricsExporter:   metricsExporterEnv.Value(),
		metricsInterval:   metricsIntervalEnv.Value(),
		prometheusAddress: promAddr,
		logLevel:          logLevelEnv.Value(),
	}
}

func (env benchEnv) trialOptions() []bench.TrialOption {
	opts := []bench.TrialOption{
		bench.WithTrialCapacity(env.capacity),
		bench.WithTrialProducers(env.producers),
		bench.WithTrialConsumers(env.consumers),
		bench.WithTrialOpsPerProducer(env.opsPerProducer),
		bench.WithTrialRounds(env.trials),
		bench.WithTrialMutex(bench.MutexKind(env.mutex)),
	}
	if env.stats {
		opts = append(opts, bench.WithTrialStats())
	}
	return opts
}
