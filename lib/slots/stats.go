package slots

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	SlotArrayStatsName = "xslot/slots"
)

type casOp string

const (
	casOpPop  casOp = "pop"
	casOpPush casOp = "push"
)

type takeResult string

const (
	takeOK         takeResult = "ok"
	takeEmpty      takeResult = "empty"
	takeOutOfRange takeResult = "out_of_range"
)

func resultAttr(v string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(attribute.String("result", v)))
}

var (
	insertOKAttr        = resultAttr("ok")
	insertExhaustedAttr = resultAttr("exhausted")
	takeAttrs           = map[takeResult]metric.MeasurementOption{
		takeOK:         resultAttr(string(takeOK)),
		takeEmpty:      resultAttr(string(takeEmpty)),
		takeOutOfRange: resultAttr(string(takeOutOfRange)),
	}
	casOpAttrs = map[casOp]metric.MeasurementOption{
		casOpPop:  metric.WithAttributeSet(attribute.NewSet(attribute.String("op", string(casOpPop)))),
		casOpPush: metric.WithAttributeSet(attribute.NewSet(attribute.String("op", string(casOpPush)))),
	}
)

// slotArrayStats exports the array activity through the global otel
// meter provider. A nil *slotArrayStats records nothing.
// Arrays sharing a name share the instruments, so the gauges are observed
// through a registration owned by each array and dropped on unregister.
type slotArrayStats struct {
	insertCount   metric.Int64Counter
	takeCount     metric.Int64Counter
	casRetryCount metric.Int64Counter
	occupied      metric.Int64ObservableGauge
	capacity      metric.Int64ObservableGauge
	registration  metric.Registration
	unregOnce     sync.Once
}

func (stats *slotArrayStats) RecordInsert(ok bool) {
	if stats == nil {
		return
	}
	if ok {
		stats.insertCount.Add(context.Background(), 1, insertOKAttr)
		return
	}
	stats.insertCount.Add(context.Background(), 1, insertExhaustedAttr)
}

func (stats *slotArrayStats) RecordTake(res takeResult) {
	if stats == nil {
		return
	}
	stats.takeCount.Add(context.Background(), 1, takeAttrs[res])
}

func (stats *slotArrayStats) RecordCASRetries(op casOp, retries uint64) {
	if stats == nil {
		return
	}
	stats.casRetryCount.Add(context.Background(), int64(retries), casOpAttrs[op])
}

func (stats *slotArrayStats) unregister() error {
	if stats == nil || stats.registration == nil {
		return nil
	}
	var err error
	stats.unregOnce.Do(func() {
		err = stats.registration.Unregister()
	})
	return err
}

func newSlotArrayStats(name string, capacity int, occupied func() int64) *slotArrayStats {
	meterName := fmt.Sprintf("%s/%s", SlotArrayStatsName, name)
	meter := otel.Meter(meterName)
	stats := &slotArrayStats{
		insertCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xslot.insert.count",
			metric.WithDescription("The number of insert attempts, by result."),
		)),
		takeCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xslot.take.count",
			metric.WithDescription("The number of take attempts, by result."),
		)),
		casRetryCount: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"xslot.cas.retry.count",
			metric.WithDescription("The number of failed freelist head CAS, by operation."),
		)),
		occupied: lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
			"xslot.occupied",
			metric.WithDescription("The number of occupied slots."),
		)),
		capacity: lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
			"xslot.capacity",
			metric.WithDescription("The fixed number of slots."),
		)),
	}
	stats.registration = lo.Must[metric.Registration](meter.RegisterCallback(
		func(ctx context.Context, ob metric.Observer) error {
			ob.ObserveInt64(stats.occupied, occupied())
			ob.ObserveInt64(stats.capacity, int64(capacity))
			return nil
		},
		stats.occupied,
		stats.capacity,
	))
	return stats
}
