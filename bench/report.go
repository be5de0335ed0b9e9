package bench

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/benz9527/xslot/lib/infra"
	xruntime "github.com/benz9527/xslot/lib/runtime"
)

type HostInfo struct {
	CPUModel      string                `json:"cpuModel"`
	LogicalCores  int                   `json:"logicalCores"`
	GOMAXPROCS    int                   `json:"gomaxprocs"`
	OS            string                `json:"os"`
	Platform      string                `json:"platform"`
	KernelVersion string                `json:"kernelVersion"`
	Container     xruntime.ContainerEnv `json:"container"`
}

// ProbeHost collects what the numbers of a run depend on. Fields that
// cannot be read stay empty; the error lists what failed.
func ProbeHost(ctx context.Context) (HostInfo, error) {
	info := HostInfo{
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		OS:         runtime.GOOS,
		Container:  xruntime.ProbeContainerEnv(),
	}
	var err error
	if cpus, cErr := cpu.InfoWithContext(ctx); cErr != nil {
		err = multierr.Append(err, infra.WrapErrorStackWithMessage(cErr, "[xslot-bench] cpu info"))
	} else if len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if n, cErr := cpu.CountsWithContext(ctx, true); cErr != nil {
		err = multierr.Append(err, infra.WrapErrorStackWithMessage(cErr, "[xslot-bench] cpu counts"))
	} else {
		info.LogicalCores = n
	}
	if h, hErr := host.InfoWithContext(ctx); hErr != nil {
		err = multierr.Append(err, infra.WrapErrorStackWithMessage(hErr, "[xslot-bench] host info"))
	} else {
		info.OS = h.OS
		info.Platform = h.Platform
		info.KernelVersion = h.KernelVersion
	}
	return info, err
}

type Report struct {
	Config       TrialConfig   `json:"config"`
	Host         HostInfo      `json:"host"`
	LockFree     []TrialResult `json:"lockFree"`
	Mutex        []TrialResult `json:"mutex"`
	LockFreeMean time.Duration `json:"lockFreeMean"`
	MutexMean    time.Duration `json:"mutexMean"`
}

// Speedup is the mutex mean over the lock-free mean, 0 if either is unknown.
func (rep Report) Speedup() float64 {
	if rep.LockFreeMean <= 0 || rep.MutexMean <= 0 {
		return 0
	}
	return float64(rep.MutexMean) / float64(rep.LockFreeMean)
}

func meanElapsed(results []TrialResult) time.Duration {
	if len(results) == 0 {
		return 0
	}
	return lo.SumBy(results, func(res TrialResult) time.Duration {
		return res.Elapsed
	}) / time.Duration(len(results))
}

// Run alternates the lock-free and the mutex trial cfg.Trials times.
// A failed trial is logged and left out of the means; the errors of all
// trials are combined. A done ctx stops the remaining rounds.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{
		Config:   r.cfg,
		LockFree: make([]TrialResult, 0, r.cfg.Trials),
		Mutex:    make([]TrialResult, 0, r.cfg.Trials),
	}
	hostInfo, hostErr := ProbeHost(ctx)
	if hostErr != nil {
		r.logger.ErrorStack(hostErr, "host probe incomplete")
	}
	rep.Host = hostInfo
	r.logger.Info("bench start",
		zap.Int("capacity", r.cfg.Capacity),
		zap.Int("producers", r.cfg.Producers),
		zap.Int("consumers", r.cfg.Consumers),
		zap.Int("opsPerProducer", r.cfg.OpsPerProducer),
		zap.Int("trials", r.cfg.Trials),
		zap.String("mutex", string(r.cfg.Mutex)),
		zap.String("cpu", hostInfo.CPUModel),
		zap.Int("gomaxprocs", hostInfo.GOMAXPROCS),
		zap.Bool("container", hostInfo.Container.Docker || hostInfo.Container.Kubernetes),
	)

	var err error
	for trial := 1; trial <= r.cfg.Trials; trial++ {
		if ctx.Err() != nil {
			err = multierr.Append(err, infra.WrapErrorStack(ctx.Err()))
			break
		}
		for _, run := range []func(context.Context) (TrialResult, error){
			r.RunLockFreeTrial,
			r.RunMutexTrial,
		} {
			trialCtx := withTrialNumber(ctx, trial)
			res, tErr := run(trialCtx)
			if tErr != nil {
				tErr = infra.WrapErrorStackWithMessage(tErr, fmt.Sprintf("trial %d %s", trial, res.Kind))
				r.logger.ErrorStackContext(trialCtx, tErr, "trial failed")
				err = multierr.Append(err, tErr)
				continue
			}
			r.logger.InfoContext(trialCtx, "trial done",
				zap.String("kind", string(res.Kind)),
				zap.Duration("elapsed", res.Elapsed),
				zap.Uint64("taken", res.Taken),
				zap.Uint64("insertSpins", res.InsertSpins),
				zap.Uint64("casRetries", res.Stats.PopCASRetries+res.Stats.PushCASRetries),
			)
			switch res.Kind {
			case LockFreeTrial:
				rep.LockFree = append(rep.LockFree, res)
			case MutexTrial:
				rep.Mutex = append(rep.Mutex, res)
			}
		}
	}
	rep.LockFreeMean = meanElapsed(rep.LockFree)
	rep.MutexMean = meanElapsed(rep.Mutex)
	r.logger.InfoContext(ctx, "bench done",
		zap.Duration("lockFreeMean", rep.LockFreeMean),
		zap.Duration("mutexMean", rep.MutexMean),
		zap.Float64("speedup", rep.Speedup()),
		zap.Int("failed", len(multierr.Errors(err))),
	)
	return rep, err
}
