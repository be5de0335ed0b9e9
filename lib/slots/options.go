package slots

import (
	"strings"

	"github.com/benz9527/xslot/lib/infra"
)

type slotArrayOptions struct {
	name           string
	isStatsEnabled bool
	spinLimit      uint32
}

type SlotArrayOption func(opts *slotArrayOptions) error

func WithSlotArrayName(name string) SlotArrayOption {
	return func(opts *slotArrayOptions) error {
		if len(strings.TrimSpace(name)) == 0 {
			return infra.NewErrorStack("[xslot] empty slot array name")
		}
		opts.name = name
		return nil
	}
}

// WithSlotArrayStats exports the array activity as otel metrics.
func WithSlotArrayStats() SlotArrayOption {
	return func(opts *slotArrayOptions) error {
		opts.isStatsEnabled = true
		return nil
	}
}

// WithSlotArraySpinLimit bounds the idle-hint budget of a contended CAS
// loop before it yields to the scheduler. It must be a power of 2.
func WithSlotArraySpinLimit(limit uint32) SlotArrayOption {
	return func(opts *slotArrayOptions) error {
		if limit == 0 || limit&(limit-1) != 0 {
			return infra.NewErrorStackf("[xslot] spin limit %d is not a power of 2", limit)
		}
		opts.spinLimit = limit
		return nil
	}
}
