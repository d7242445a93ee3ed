// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package clock provides the monotonic time base used to pace pulse phases,
// and a split seconds/microseconds span type, for phase lengths.
package clock

import (
	"sync/atomic"
	"time"
)

// MicrosPerSecond is the number of microseconds in one second.
const MicrosPerSecond = 1_000_000

type (
	// Span is a non-negative duration, held as whole seconds plus a
	// sub-second remainder, in microseconds. Usec is always less than
	// MicrosPerSecond, for values produced by this package.
	Span struct {
		Sec  uint32
		Usec uint32
	}

	// Time is a monotonic instant, in nanoseconds since an arbitrary
	// (process-local) epoch. Values are only meaningful relative to each
	// other.
	Time int64
)

// reference point for Now, time.Since uses the monotonic clock reading
var epoch = time.Now()

// FromMicros splits us into seconds and microseconds.
func FromMicros(us uint32) Span {
	return Span{Sec: us / MicrosPerSecond, Usec: us % MicrosPerSecond}
}

// FromDuration converts d to a Span, truncating to whole microseconds, or
// returns the zero Span if d is not positive. Values too large for the
// seconds field saturate.
func FromDuration(d time.Duration) Span {
	if d <= 0 {
		return Span{}
	}
	us := uint64(d / time.Microsecond)
	sec := us / MicrosPerSecond
	if sec > uint64(^uint32(0)) {
		return Span{Sec: ^uint32(0), Usec: MicrosPerSecond - 1}
	}
	return Span{Sec: uint32(sec), Usec: uint32(us % MicrosPerSecond)}
}

// IsZero reports whether the span has no length.
func (x Span) IsZero() bool { return x.Sec == 0 && x.Usec == 0 }

// Micros returns the total length in microseconds.
func (x Span) Micros() uint64 {
	return uint64(x.Sec)*MicrosPerSecond + uint64(x.Usec)
}

// Duration returns the span as a time.Duration.
func (x Span) Duration() time.Duration {
	return time.Duration(x.Sec)*time.Second + time.Duration(x.Usec)*time.Microsecond
}

// Sub returns x minus y, borrowing from the seconds as required, or the zero
// Span and false, if y is longer than x.
func (x Span) Sub(y Span) (Span, bool) {
	if x.Sec < y.Sec || (x.Sec == y.Sec && x.Usec < y.Usec) {
		return Span{}, false
	}
	sec, usec := x.Sec-y.Sec, x.Usec
	if usec < y.Usec {
		sec--
		usec += MicrosPerSecond
	}
	return Span{Sec: sec, Usec: usec - y.Usec}, true
}

// Now returns the current monotonic time.
func Now() Time { return Time(time.Since(epoch)) }

// Add returns the instant s after t.
func (t Time) Add(s Span) Time {
	return t + Time(s.Duration())
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) time.Duration { return time.Duration(t - u) }

// Until returns the duration until t, which is negative if t has passed.
func (t Time) Until() time.Duration { return time.Duration(t - Now()) }

// SpinUntil busy-polls the clock until deadline, returning false early if
// abort is set. The loop reads nothing but the clock and abort.
func SpinUntil(deadline Time, abort *atomic.Bool) bool {
	for Now() < deadline {
		if abort.Load() {
			return false
		}
	}
	return !abort.Load()
}
