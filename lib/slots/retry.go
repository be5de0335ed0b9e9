package slots

import (
	"context"
	"time"

	"github.com/benz9527/xslot/lib/backoff"
	"github.com/benz9527/xslot/lib/infra"
)

// InsertWithRetry bounds the wait for a free slot from the outside of
// the array. It retries TryInsert, sleeping as the strategy says, until
// the strategy gives up (ErrSlotArrayExhausted) or ctx is done.
// On error value has not been stored.
func InsertWithRetry[T any](
	ctx context.Context,
	arr SlotArray[T],
	value T,
	strategy backoff.RetryStrategy,
) (int, error) {
	if strategy == nil {
		strategy = backoff.NoRetry()
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		if index, ok := arr.TryInsert(value); ok {
			return index, nil
		}
		wait := strategy.Next()
		if wait <= 0 {
			return -1, infra.WrapErrorStack(ErrSlotArrayExhausted)
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			return -1, infra.WrapErrorStack(ctx.Err())
		case <-timer.C:
		}
	}
}
