package bench

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xslot/lib/hrtime"
	"github.com/benz9527/xslot/lib/infra"
	"github.com/benz9527/xslot/lib/slots"
	"github.com/benz9527/xslot/xlog"
)

var (
	ErrTrialValueLost = errors.New("[xslot-bench] taken values do not match inserted values")
	ErrTrialChecksum  = errors.New("[xslot-bench] taken values checksum mismatch")
)

type TrialKind string

const (
	LockFreeTrial TrialKind = "lock-free"
	MutexTrial    TrialKind = "mutex"
)

type TrialResult struct {
	Kind        TrialKind            `json:"kind"`
	Elapsed     time.Duration        `json:"elapsed"`
	Inserted    uint64               `json:"inserted"`
	Taken       uint64               `json:"taken"`
	InsertSpins uint64               `json:"insertSpins"`
	Stats       slots.SlotArrayStats `json:"stats"`
}

// Runner owns the worker pool the producers and consumers of every trial
// run on. The pool is sized so that all of them run at once.
type Runner struct {
	cfg    TrialConfig
	pool   *ants.Pool
	logger xlog.XLogger
}

func NewRunner(cfg TrialConfig, logger xlog.XLogger) (*Runner, error) {
	if cfg.clock == nil {
		cfg.clock = hrtime.DefaultClock
	}
	if logger == nil {
		return nil, infra.NewErrorStack("[xslot-bench] nil logger")
	}
	for name, n := range map[string]int{
		"capacity":         cfg.Capacity,
		"producers":        cfg.Producers,
		"consumers":        cfg.Consumers,
		"ops per producer": cfg.OpsPerProducer,
		"trials":           cfg.Trials,
	} {
		if err := positive(name, n); err != nil {
			return nil, err
		}
	}
	pool, err := ants.NewPool(
		cfg.Producers+cfg.Consumers,
		ants.WithLogger(xlog.NewAntsXLogger(logger)),
		ants.WithPreAlloc(true),
	)
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[xslot-bench] worker pool")
	}
	return &Runner{
		cfg:    cfg,
		pool:   pool,
		logger: logger.Named("bench"),
	}, nil
}

func (r *Runner) Config() TrialConfig {
	return r.cfg
}

func (r *Runner) Release() {
	r.pool.Release()
}

func (r *Runner) RunLockFreeTrial(ctx context.Context) (TrialResult, error) {
	opts := []slots.SlotArrayOption{slots.WithSlotArrayName("bench")}
	if r.cfg.StatsEnabled {
		opts = append(opts, slots.WithSlotArrayStats())
	}
	arr, err := slots.NewXSlotArray[uint64](r.cfg.Capacity, opts...)
	if err != nil {
		return TrialResult{Kind: LockFreeTrial}, err
	}
	res, err := r.runTrial(ctx, LockFreeTrial, arr)
	return res, multierr.Append(err, arr.Close())
}

func (r *Runner) RunMutexTrial(ctx context.Context) (TrialResult, error) {
	arr := newMutexSlotArray[uint64](r.cfg.Capacity, newLocker(r.cfg.Mutex))
	return r.runTrial(ctx, MutexTrial, arr)
}

// TrialContextField is the context key under which Run stores the trial
// number, for loggers extracting it with xlog.WithXLoggerContextFieldExtract.
const TrialContextField = "trial"

func withTrialNumber(ctx context.Context, trial int) context.Context {
	return context.WithValue(ctx, xlog.ContextKey(TrialContextField), trial)
}

// trialValue is distinct for every (producer, op) pair.
func trialValue(producer, op int) uint64 {
	return uint64(producer)<<32 | uint64(op)
}

func (r *Runner) expectedChecksum() uint64 {
	var sum uint64
	for p := 0; p < r.cfg.Producers; p++ {
		for i := 0; i < r.cfg.OpsPerProducer; i++ {
			sum += trialValue(p, i)
		}
	}
	return sum
}

// spin backs off a goroutine that found the array full or empty.
func spin(n uint64) {
	if n&63 == 0 {
		runtime.Gosched()
		return
	}
	infra.ProcYield(20)
}

func (r *Runner) runTrial(ctx context.Context, kind TrialKind, arr slots.SlotArray[uint64]) (TrialResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		total     = r.cfg.totalOps()
		inserted  atomic.Uint64
		taken     atomic.Uint64
		checksum  atomic.Uint64
		spins     atomic.Uint64
		wg        sync.WaitGroup
		submitErr error
	)

	producer := func(p int) func() {
		return func() {
			defer wg.Done()
			var n uint64
			for i := 0; i < r.cfg.OpsPerProducer; i++ {
				v := trialValue(p, i)
				for {
					if _, ok := arr.TryInsert(v); ok {
						break
					}
					n++
					if n&1023 == 0 && ctx.Err() != nil {
						spins.Add(n)
						return
					}
					spin(n)
				}
				inserted.Add(1)
			}
			spins.Add(n)
		}
	}
	consumer := func() {
		defer wg.Done()
		var idle uint64
		for taken.Load() < total {
			if ctx.Err() != nil {
				return
			}
			found := false
			for i := 0; i < arr.Cap(); i++ {
				if v, ok := arr.Take(i); ok {
					taken.Add(1)
					checksum.Add(v)
					found = true
				}
			}
			if !found {
				idle++
				spin(idle)
			}
		}
	}

	sw := hrtime.StartStopwatch(r.cfg.clock)
	for p := 0; p < r.cfg.Producers; p++ {
		wg.Add(1)
		if err := r.pool.Submit(producer(p)); err != nil {
			wg.Done()
			submitErr = multierr.Append(submitErr, err)
			cancel()
		}
	}
	for c := 0; c < r.cfg.Consumers; c++ {
		wg.Add(1)
		if err := r.pool.Submit(consumer); err != nil {
			wg.Done()
			submitErr = multierr.Append(submitErr, err)
			cancel()
		}
	}
	wg.Wait()

	res := TrialResult{
		Kind:        kind,
		Elapsed:     sw.Elapsed(),
		Inserted:    inserted.Load(),
		Taken:       taken.Load(),
		InsertSpins: spins.Load(),
	}
	// Values left behind by a cancelled trial.
	if left := arr.Drain(nil); left > 0 {
		r.logger.WarnContext(ctx, "trial left values in the array",
			zap.String("kind", string(kind)),
			zap.Int("left", left),
		)
	}
	res.Stats = arr.Stats()

	var err error
	switch {
	case submitErr != nil:
		err = infra.WrapErrorStackWithMessage(submitErr, "[xslot-bench] submit worker")
	case res.Taken != total && ctx.Err() != nil:
		err = infra.WrapErrorStack(ctx.Err())
	case res.Taken != total:
		err = infra.WrapErrorStackWithMessage(ErrTrialValueLost,
			fmt.Sprintf("taken %d, inserted %d, expected %d", res.Taken, res.Inserted, total))
	case checksum.Load() != r.expectedChecksum():
		err = infra.WrapErrorStack(ErrTrialChecksum)
	}
	return res, err
}
