// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"runtime"

	"github.com/joeycumines/logiface"
)

// job is the worker's snapshot of the task, taken at each safe point
type job struct {
	timing Timing
	high   PhaseFunc
	low    PhaseFunc
	end    EndFunc
}

// run is the worker goroutine.
//
// States: waiting for a command (next), applying modifications
// (applyLocked), then executing a pulse, finite train, or infinite train,
// and back to waiting. It exits only once the abort flag is set.
func (x *Engine) run(started chan<- error) {
	defer close(x.done)

	runtime.LockOSThread()
	elevated, err := elevatePriority(x.opts.priority)
	if !elevated {
		defer runtime.UnlockOSThread()
	}
	// an elevated thread stays locked, and is discarded on exit

	x.workerID.Store(getGoroutineID())
	defer x.workerID.Store(0)

	started <- err

	timer := newPhaseTimer(x.task.accuracy, x.opts.turnaround, &x.abort, x.aborted, x.logLatePhase)
	defer timer.stop()
	timer.configure(x.task.Timing())

	var j job
	for x.next(timer, &j) {
		mode := j.timing.Mode()

		x.logger.Trace().
			Str(`mode`, mode.String()).
			Uint64(`pending`, uint64(x.task.Busy())).
			Log(`pulsedthread: run started`)

		var ok bool
		switch mode {
		case ModePulse:
			ok = x.pulse(timer, &j)
		case ModeTrain:
			ok = x.train(timer, &j)
		default:
			ok = x.infinite(timer, &j)
		}
		if !ok {
			return
		}

		if mode != ModeInfinite {
			x.task.mu.Lock()
			x.task.cmd.done()
			x.task.signalLocked()
			x.task.mu.Unlock()
		}
		x.active.Store(false)

		x.logger.Trace().
			Str(`mode`, mode.String()).
			Uint64(`pending`, uint64(x.task.Busy())).
			Log(`pulsedthread: run finished`)
	}
}

// next blocks until there is a run to perform, applying any modifications
// first, and returns false once aborted
func (x *Engine) next(timer *phaseTimer, j *job) bool {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		for t.cmd.idle() && !x.abort.Load() {
			t.cond.Wait()
		}
		if x.abort.Load() {
			return false
		}
		x.applyLocked(timer)
		if x.abort.Load() {
			return false
		}
		if t.cmd.count != 0 {
			x.snapshotLocked(j)
			x.active.Store(true)
			return true
		}
	}
}

// applyLocked consumes the modification flags. The lock is released while
// any custom modification runs.
func (x *Engine) applyLocked(timer *phaseTimer) {
	t := &x.task

	if t.cmd.flags&FlagCustom != 0 {
		fn, data := t.modFn, t.modData
		// released, the worker holds the only reference
		t.modFn, t.modData = nil, nil
		if fn != nil {
			t.mu.Unlock()
			x.applyCustom(fn, data)
			t.mu.Lock()
		}
		t.cmd.flags &^= FlagCustom
	}

	retimed := t.cmd.flags&(FlagDelay|FlagDuration) != 0
	t.cmd.flags &^= FlagDelay | FlagDuration
	t.word.Store(t.cmd.word())

	if applied := t.applied.Load(); *applied != t.timing {
		timing := t.timing
		t.applied.Store(&timing)
		timer.configure(timing)
		x.logger.Debug().
			Str(`timing`, timing.String()).
			Bool(`retimed`, retimed).
			Log(`pulsedthread: timing applied`)
	}
}

func (x *Engine) snapshotLocked(j *job) {
	t := &x.task
	t.dirty.Store(false)
	*j = job{
		timing: t.timing,
		high:   t.high,
		low:    t.low,
		end:    t.end,
	}
}

// pulse: wait delay (if any), high, wait duration, low, end
func (x *Engine) pulse(timer *phaseTimer, j *job) bool {
	timer.start()
	if j.timing.delay != 0 && !timer.wait(phaseLow) {
		return false
	}
	x.callPhase(j.high, phaseHigh)
	if !timer.wait(phaseHigh) {
		return false
	}
	x.callPhase(j.low, phaseLow)
	x.callEnd(j.end)
	return !x.abort.Load()
}

// train: per pulse, high, wait duration, then, if delay != 0, low and wait
// delay; end once, after all pulses
func (x *Engine) train(timer *phaseTimer, j *job) bool {
	timer.start()
	for i := uint32(0); i < j.timing.pulses; i++ {
		if x.abort.Load() {
			return false
		}
		x.callPhase(j.high, phaseHigh)
		if !timer.wait(phaseHigh) {
			return false
		}
		if j.timing.delay != 0 {
			x.callPhase(j.low, phaseLow)
			if !timer.wait(phaseLow) {
				return false
			}
		}
	}
	x.callEnd(j.end)
	return !x.abort.Load()
}

// infinite repeats periods while the run bit is set, picking up
// modifications (without blocking on the controllers) at period boundaries
func (x *Engine) infinite(timer *phaseTimer, j *job) bool {
	t := &x.task
	timer.start()
	for {
		word := t.word.Load()
		if word&MaxPending == 0 {
			return true
		}
		if x.abort.Load() {
			return false
		}
		if word&flagMask != 0 || t.dirty.Load() {
			t.mu.Lock()
			x.applyLocked(timer)
			x.snapshotLocked(j)
			t.mu.Unlock()
			if j.timing.Mode() != ModeInfinite {
				// stopped, reconfigured, and restarted, before this
				// goroutine observed the stop
				return true
			}
			continue
		}

		x.callPhase(j.high, phaseHigh)
		if !timer.wait(phaseHigh) {
			return false
		}
		if j.timing.delay != 0 {
			x.callPhase(j.low, phaseLow)
			if !timer.wait(phaseLow) {
				return false
			}
		}
		x.callEnd(j.end)
	}
}

func (x *Engine) callPhase(fn PhaseFunc, p phase) {
	defer x.recoverCallback(p.String())
	fn(x.task.UserData())
}

func (x *Engine) callEnd(fn EndFunc) {
	if fn == nil || x.abort.Load() {
		return
	}
	defer x.recoverCallback(`end`)
	fn(x.task.EndData(), &x.task)
}

func (x *Engine) applyCustom(fn CustomModFunc, data any) {
	defer x.recoverCallback(`modify`)
	if err := fn(data, &x.task); err != nil {
		x.logger.Err().
			Err(err).
			Log(`pulsedthread: custom modification failed`)
	}
}

// recoverCallback must be deferred directly
func (x *Engine) recoverCallback(callback string) {
	if r := recover(); r != nil {
		x.diagnose(logiface.LevelError, diagCallbackPanic).
			Str(`callback`, callback).
			Any(`panic`, r).
			Log(`pulsedthread: callback panicked`)
	}
}
