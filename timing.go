// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"fmt"
	"math"

	"fortio.org/safecast"
	"github.com/joeycumines/go-pulsedthread/internal/clock"
)

// Mode is the kind of task an engine performs per run, and is determined by
// the pulse count.
type Mode uint8

const (
	// ModeInfinite is a train with no preset length, run from StartTrain
	// until StopTrain. The pulse count is 0.
	ModeInfinite Mode = iota
	// ModePulse is a single pulse: low phase (if any), high phase, then the
	// low callback. The pulse count is 1.
	ModePulse
	// ModeTrain is a counted train of pulses. The pulse count is 2 or more.
	ModeTrain
)

// String returns a human-readable representation of the mode.
func (x Mode) String() string {
	switch x {
	case ModeInfinite:
		return "infinite"
	case ModePulse:
		return "pulse"
	case ModeTrain:
		return "train"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(x))
	}
}

// Timing is an immutable pulse configuration.
//
// The canonical representation is in ticks: the delay (low phase) and the
// duration (high phase), both in microseconds, plus the pulse count. The
// frequency-domain view is always derived from the ticks, and is never
// stored:
//
//	frequency     = 1e6 / (delay + duration)
//	duty cycle    = duration / (delay + duration)
//	train seconds = pulses * (delay + duration) / 1e6
//
// Conversions from the frequency domain round to the nearest tick. The zero
// value is not valid, since the duration must be greater than zero.
type Timing struct {
	delay    uint32
	duration uint32
	pulses   uint32
}

// TicksTiming builds a Timing from the tick-domain parameters. A delay of 0
// is legal, and skips the low phase of trains.
func TicksTiming(delayMicros, durationMicros, pulseCount uint32) (Timing, error) {
	if durationMicros == 0 {
		return Timing{}, ErrInvalidDuration
	}
	return Timing{delay: delayMicros, duration: durationMicros, pulses: pulseCount}, nil
}

// FrequencyTiming builds a Timing from the frequency-domain parameters. The
// frequency must be positive, the duty cycle in (0, 1], and the train
// duration non-negative, where 0 means an infinite train. A positive train
// duration shorter than half a period still yields one pulse.
func FrequencyTiming(hz, dutyCycle, trainSec float64) (Timing, error) {
	if !(hz > 0) || math.IsInf(hz, 0) {
		return Timing{}, fmt.Errorf(`%w: %v Hz`, ErrInvalidFrequency, hz)
	}
	if !(dutyCycle > 0 && dutyCycle <= 1) {
		return Timing{}, fmt.Errorf(`%w: %v`, ErrInvalidDutyCycle, dutyCycle)
	}
	if !(trainSec >= 0) || math.IsInf(trainSec, 0) {
		return Timing{}, fmt.Errorf(`%w: %v s`, ErrInvalidTrainDuration, trainSec)
	}

	period := clock.MicrosPerSecond / hz

	delay, err := roundTicks(period * (1 - dutyCycle))
	if err != nil {
		return Timing{}, fmt.Errorf(`%w: %v Hz: %w`, ErrInvalidFrequency, hz, err)
	}
	duration, err := roundTicks(period * dutyCycle)
	if err != nil {
		return Timing{}, fmt.Errorf(`%w: %v Hz: %w`, ErrInvalidFrequency, hz, err)
	}
	if duration == 0 {
		return Timing{}, fmt.Errorf(`%w: %v Hz at duty cycle %v`, ErrInvalidDuration, hz, dutyCycle)
	}

	pulses, err := roundTicks(trainSec * hz)
	if err != nil {
		return Timing{}, fmt.Errorf(`%w: %v s: %w`, ErrInvalidTrainDuration, trainSec, err)
	}
	if pulses == 0 && trainSec > 0 {
		pulses = 1
	}

	return Timing{delay: delay, duration: duration, pulses: pulses}, nil
}

func roundTicks(v float64) (uint32, error) {
	return safecast.Round[uint32](v)
}

// Valid reports whether the duration is greater than zero.
func (x Timing) Valid() bool { return x.duration != 0 }

// Delay returns the low phase length, in microseconds.
func (x Timing) Delay() uint32 { return x.delay }

// Duration returns the high phase length, in microseconds.
func (x Timing) Duration() uint32 { return x.duration }

// PulseCount returns 0 for an infinite train, 1 for a single pulse, or the
// length of a finite train.
func (x Timing) PulseCount() uint32 { return x.pulses }

// Mode returns the kind of task the pulse count selects.
func (x Timing) Mode() Mode {
	switch x.pulses {
	case 0:
		return ModeInfinite
	case 1:
		return ModePulse
	default:
		return ModeTrain
	}
}

// Period returns delay + duration, in microseconds.
func (x Timing) Period() uint64 {
	return uint64(x.delay) + uint64(x.duration)
}

// Frequency returns the pulse frequency, in Hz, or 0 if x is not valid.
func (x Timing) Frequency() float64 {
	if p := x.Period(); p != 0 {
		return clock.MicrosPerSecond / float64(p)
	}
	return 0
}

// DutyCycle returns the fraction of each period spent in the high phase, or
// 0 if x is not valid.
func (x Timing) DutyCycle() float64 {
	if p := x.Period(); p != 0 {
		return float64(x.duration) / float64(p)
	}
	return 0
}

// TrainDuration returns the length of the whole train, in seconds, which is
// 0 for an infinite train.
func (x Timing) TrainDuration() float64 {
	return float64(x.pulses) * float64(x.Period()) / clock.MicrosPerSecond
}

// WithDelay returns a copy of x with the given low phase length.
func (x Timing) WithDelay(us uint32) Timing {
	x.delay = us
	return x
}

// WithDuration returns a copy of x with the given high phase length, which
// must be greater than zero.
func (x Timing) WithDuration(us uint32) (Timing, error) {
	if us == 0 {
		return x, ErrInvalidDuration
	}
	x.duration = us
	return x, nil
}

// WithPulseCount returns a copy of x with the given pulse count.
func (x Timing) WithPulseCount(n uint32) Timing {
	x.pulses = n
	return x
}

// WithFrequency returns a copy of x at the given frequency, keeping the duty
// cycle and the train duration, which means the pulse count may change. A
// frequency of 0 Hz is rejected, see FrequencyTiming.
func (x Timing) WithFrequency(hz float64) (Timing, error) {
	return FrequencyTiming(hz, x.DutyCycle(), x.TrainDuration())
}

// WithDutyCycle returns a copy of x with the given duty cycle, keeping the
// frequency and the train duration.
func (x Timing) WithDutyCycle(dutyCycle float64) (Timing, error) {
	return FrequencyTiming(x.Frequency(), dutyCycle, x.TrainDuration())
}

// WithTrainDuration returns a copy of x with the given train duration,
// keeping the frequency and duty cycle, by changing the pulse count.
func (x Timing) WithTrainDuration(sec float64) (Timing, error) {
	if !(sec >= 0) || math.IsInf(sec, 0) {
		return x, fmt.Errorf(`%w: %v s`, ErrInvalidTrainDuration, sec)
	}
	pulses, err := roundTicks(sec * x.Frequency())
	if err != nil {
		return x, fmt.Errorf(`%w: %v s: %w`, ErrInvalidTrainDuration, sec, err)
	}
	if pulses == 0 && sec > 0 {
		pulses = 1
	}
	x.pulses = pulses
	return x, nil
}

func (x Timing) String() string {
	return fmt.Sprintf(
		`delay=%dus duration=%dus pulses=%d (%.6gHz duty=%.4g train=%.6gs)`,
		x.delay, x.duration, x.pulses,
		x.Frequency(), x.DutyCycle(), x.TrainDuration(),
	)
}

// spans returns the phase lengths split into seconds and microseconds
func (x Timing) spans() (delay, duration clock.Span) {
	return clock.FromMicros(x.delay), clock.FromMicros(x.duration)
}

// modeChange reports whether switching from x to y would convert between an
// infinite and a finite train
func (x Timing) modeChange(y Timing) bool {
	return (x.pulses == 0) != (y.pulses == 0)
}
