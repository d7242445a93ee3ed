// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

// Command word layout, see Engine.Command.
//
// The pending count occupies the bits below FlagDelay, and saturates at
// MaxPending. For an infinite train, the count is instead a run bit (0 or 1).
const (
	// FlagDelay is set while a delay (low phase) change is waiting to be
	// picked up by the worker.
	FlagDelay uint32 = 1 << 25
	// FlagDuration is set while a duration (high phase) change is waiting to
	// be picked up by the worker.
	FlagDuration uint32 = 1 << 26
	// FlagCustom is set while a locking custom modification is waiting to be
	// applied by the worker.
	FlagCustom uint32 = 1 << 27

	// MaxPending is the largest representable pending run count.
	MaxPending = FlagDelay - 1

	flagMask = FlagDelay | FlagDuration | FlagCustom
)

// command is the decoded command word, guarded by the task mutex
type command struct {
	count uint32
	flags uint32
}

func (x command) word() uint32 { return x.count | x.flags }

func (x command) idle() bool { return x.count == 0 && x.flags == 0 }

// add increments the count, saturating at MaxPending
func (x *command) add(n uint32) {
	if n > MaxPending-x.count {
		x.count = MaxPending
	} else {
		x.count += n
	}
}

// adjust applies a signed delta, clamped to [0, MaxPending]
func (x *command) adjust(delta int64) {
	switch {
	case delta >= int64(MaxPending):
		x.count = MaxPending
	case delta <= -int64(MaxPending):
		x.count = 0
	default:
		v := int64(x.count) + delta
		switch {
		case v < 0:
			v = 0
		case v > int64(MaxPending):
			v = int64(MaxPending)
		}
		x.count = uint32(v)
	}
}

// collapse drops queued repeats, leaving any in-flight run
func (x *command) collapse() {
	if x.count > 1 {
		x.count = 1
	}
}

// done decrements the count after a finite run completes
func (x *command) done() {
	if x.count != 0 {
		x.count--
	}
}
