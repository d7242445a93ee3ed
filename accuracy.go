// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-pulsedthread/internal/clock"
)

// AccuracyLevel selects how the worker waits out each phase.
type AccuracyLevel uint8

const (
	// AccuracySleep blocks for the whole phase. It has the lowest CPU cost,
	// and is subject to the scheduler's wake-up granularity, which also
	// accumulates as drift over a long train.
	AccuracySleep AccuracyLevel = iota

	// AccuracySleepAndSpin tracks the absolute end time of each phase. Phases
	// longer than the turnaround sleep for (phase - turnaround), computed once
	// per retiming, then busy-poll the clock until the end time. Shorter
	// phases spin for the whole phase.
	AccuracySleepAndSpin

	// AccuracyAdaptive tracks the absolute end time of each phase, like
	// AccuracySleepAndSpin, but sizes the sleep from the time actually
	// remaining at the start of each phase, so that a late start (jitter, a
	// slow callback) is absorbed by a shorter sleep, rather than carried
	// forward as drift.
	AccuracyAdaptive
)

// String returns the name accepted by ParseAccuracyLevel.
func (x AccuracyLevel) String() string {
	switch x {
	case AccuracySleep:
		return "sleep"
	case AccuracySleepAndSpin:
		return "spin"
	case AccuracyAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("AccuracyLevel(%d)", uint8(x))
	}
}

func (x AccuracyLevel) valid() bool { return x <= AccuracyAdaptive }

// ParseAccuracyLevel parses an accuracy level name, case-insensitively. The
// numeric values 0, 1, and 2 are also accepted.
func ParseAccuracyLevel(s string) (AccuracyLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sleep", "0":
		return AccuracySleep, nil
	case "spin", "sleep-and-spin", "sleepandspin", "1":
		return AccuracySleepAndSpin, nil
	case "adaptive", "adaptive-sleep-spin", "2":
		return AccuracyAdaptive, nil
	default:
		return 0, fmt.Errorf(`%w: unknown accuracy level %q`, ErrInvalidOption, s)
	}
}

type phase uint8

const (
	phaseLow phase = iota
	phaseHigh
)

func (x phase) String() string {
	if x == phaseHigh {
		return "high"
	}
	return "low"
}

// phaseTimer implements the accuracy levels, it is owned by the worker
type phaseTimer struct {
	level      AccuracyLevel
	turnaround time.Duration
	abort      *atomic.Bool
	aborted    <-chan struct{}
	timer      *time.Timer
	// late is called (adaptive only) when a phase starts after its end time
	late func(p phase, behind time.Duration)
	// deadline is the absolute end of the last phase waited on
	deadline clock.Time
	// indexed by phase
	spans [2]clock.Span
	// indexed by phase, used by AccuracySleepAndSpin
	sleeps [2]time.Duration
}

func newPhaseTimer(level AccuracyLevel, turnaround time.Duration, abort *atomic.Bool, aborted <-chan struct{}, late func(p phase, behind time.Duration)) *phaseTimer {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	return &phaseTimer{
		level:      level,
		turnaround: turnaround,
		abort:      abort,
		aborted:    aborted,
		timer:      timer,
		late:       late,
	}
}

// configure precomputes the phase lengths, and the fixed sleep segments
func (x *phaseTimer) configure(t Timing) {
	delay, duration := t.spans()
	x.spans = [2]clock.Span{phaseLow: delay, phaseHigh: duration}
	turnaround := clock.FromDuration(x.turnaround)
	for i, span := range x.spans {
		if turnaround.IsZero() {
			x.sleeps[i] = span.Duration()
		} else if rem, ok := span.Sub(turnaround); ok {
			x.sleeps[i] = rem.Duration()
		} else {
			x.sleeps[i] = 0
		}
	}
}

// start anchors the absolute phase end times, at the start of a run
func (x *phaseTimer) start() {
	x.deadline = clock.Now()
}

// wait blocks for one phase, returning false if aborted
func (x *phaseTimer) wait(p phase) bool {
	span := x.spans[p]
	switch x.level {
	case AccuracySleep:
		return x.sleep(span.Duration())

	case AccuracySleepAndSpin:
		x.deadline = x.deadline.Add(span)
		if !x.sleep(x.sleeps[p]) {
			return false
		}
		return clock.SpinUntil(x.deadline, x.abort)

	default:
		x.deadline = x.deadline.Add(span)
		remaining := x.deadline.Until()
		if remaining > x.turnaround {
			if !x.sleep(remaining - x.turnaround) {
				return false
			}
		} else if remaining < 0 && x.late != nil {
			x.late(p, -remaining)
		}
		return clock.SpinUntil(x.deadline, x.abort)
	}
}

// sleep blocks for d, or until aborted
func (x *phaseTimer) sleep(d time.Duration) bool {
	if d <= 0 {
		return !x.abort.Load()
	}
	x.timer.Reset(d)
	select {
	case <-x.timer.C:
		return !x.abort.Load()
	case <-x.aborted:
		x.timer.Stop()
		return false
	}
}

func (x *phaseTimer) stop() {
	x.timer.Stop()
}
