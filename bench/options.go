package bench

import (
	"github.com/benz9527/xslot/lib/hrtime"
	"github.com/benz9527/xslot/lib/infra"
)

type MutexKind string

const (
	GoSyncMutex MutexKind = "sync"
	SpinMutex   MutexKind = "spin"
)

const (
	defaultTrialCapacity       = 100
	defaultTrialProducers      = 6
	defaultTrialConsumers      = 2
	defaultTrialOpsPerProducer = 100_000
	defaultTrialRounds         = 10
)

// TrialConfig is the workload shared by the lock-free and the mutex trials.
type TrialConfig struct {
	Capacity       int       `json:"capacity"`
	Producers      int       `json:"producers"`
	Consumers      int       `json:"consumers"`
	OpsPerProducer int       `json:"opsPerProducer"`
	Trials         int       `json:"trials"`
	Mutex          MutexKind `json:"mutex"`
	StatsEnabled   bool      `json:"statsEnabled"`
	clock          hrtime.Clock
}

func (cfg TrialConfig) totalOps() uint64 {
	return uint64(cfg.Producers) * uint64(cfg.OpsPerProducer)
}

type TrialOption func(cfg *TrialConfig) error

func positive(name string, n int) error {
	if n <= 0 {
		return infra.NewErrorStackf("[xslot-bench] %s must be positive, got %d", name, n)
	}
	return nil
}

func WithTrialCapacity(capacity int) TrialOption {
	return func(cfg *TrialConfig) error {
		if err := positive("capacity", capacity); err != nil {
			return err
		}
		cfg.Capacity = capacity
		return nil
	}
}

func WithTrialProducers(n int) TrialOption {
	return func(cfg *TrialConfig) error {
		if err := positive("producers", n); err != nil {
			return err
		}
		cfg.Producers = n
		return nil
	}
}

func WithTrialConsumers(n int) TrialOption {
	return func(cfg *TrialConfig) error {
		if err := positive("consumers", n); err != nil {
			return err
		}
		cfg.Consumers = n
		return nil
	}
}

func WithTrialOpsPerProducer(n int) TrialOption {
	return func(cfg *TrialConfig) error {
		if err := positive("ops per producer", n); err != nil {
			return err
		}
		cfg.OpsPerProducer = n
		return nil
	}
}

func WithTrialRounds(n int) TrialOption {
	return func(cfg *TrialConfig) error {
		if err := positive("trials", n); err != nil {
			return err
		}
		cfg.Trials = n
		return nil
	}
}

// WithTrialMutex selects the lock of the baseline array.
func WithTrialMutex(kind MutexKind) TrialOption {
	return func(cfg *TrialConfig) error {
		switch kind {
		case GoSyncMutex, SpinMutex:
		default:
			return infra.NewErrorStackf("[xslot-bench] unknown mutex kind %q", kind)
		}
		cfg.Mutex = kind
		return nil
	}
}

// WithTrialStats exports the lock-free array metrics during the trials.
func WithTrialStats() TrialOption {
	return func(cfg *TrialConfig) error {
		cfg.StatsEnabled = true
		return nil
	}
}

func WithTrialClock(clock hrtime.Clock) TrialOption {
	return func(cfg *TrialConfig) error {
		if clock == nil {
			return infra.NewErrorStack("[xslot-bench] nil clock")
		}
		cfg.clock = clock
		return nil
	}
}

func NewTrialConfig(opts ...TrialOption) (TrialConfig, error) {
	cfg := TrialConfig{
		Capacity:       defaultTrialCapacity,
		Producers:      defaultTrialProducers,
		Consumers:      defaultTrialConsumers,
		OpsPerProducer: defaultTrialOpsPerProducer,
		Trials:         defaultTrialRounds,
		Mutex:          GoSyncMutex,
		clock:          hrtime.DefaultClock,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(&cfg); err != nil {
			return TrialConfig{}, err
		}
	}
	return cfg, nil
}
