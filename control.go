// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"context"
	"time"

	"github.com/joeycumines/logiface"
)

// Run requests one run of the configured task, or, for an infinite train,
// starts the train. It never blocks on the worker. Calling Run while busy
// queues another run (finite tasks only).
func (x *Engine) Run() error { return x.RunN(1) }

// RunN requests n runs of the configured task, saturating at MaxPending
// pending runs. For an infinite train, any n > 0 starts the train.
func (x *Engine) RunN(n uint32) error {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	if x.state.Load() != StateRunning {
		return ErrClosed
	}
	if n == 0 {
		return nil
	}
	if t.timing.Mode() == ModeInfinite {
		t.cmd.count = 1
	} else {
		t.cmd.add(n)
	}
	t.signalLocked()
	return nil
}

// CancelPending discards queued runs, letting any run in flight finish. It
// has no effect on an idle engine.
func (x *Engine) CancelPending() {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	if x.state.Load() != StateRunning {
		return
	}
	t.cmd.collapse()
	t.signalLocked()
}

// AdjustPending adds delta (which may be negative) to the pending run count,
// clamped to [0, MaxPending]. It has no effect for an infinite train.
func (x *Engine) AdjustPending(delta int64) {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	if x.state.Load() != StateRunning || t.timing.Mode() == ModeInfinite {
		return
	}
	t.cmd.adjust(delta)
	t.signalLocked()
}

// Busy returns the pending run count, including any run in flight, without
// blocking. For an infinite train, it is 1 while the train runs. Zero means
// idle.
func (x *Engine) Busy() uint32 { return x.task.Busy() }

// WaitUntilIdle polls Busy, at the poll interval, until it reads zero, or
// the timeout elapses. It returns true if it timed out. Called from a
// callback, it returns true immediately, since the engine cannot become
// idle while the worker is blocked on it.
func (x *Engine) WaitUntilIdle(timeout time.Duration) (timedOut bool) {
	if x.Busy() == 0 {
		return false
	}
	if x.onWorker() {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return x.waitIdle(ctx) != nil
}

// WaitIdle is like WaitUntilIdle, bounded by ctx, which returns ctx.Err()
// if ctx is done first, or ErrReentrant if called from a callback.
func (x *Engine) WaitIdle(ctx context.Context) error {
	if x.Busy() == 0 {
		return nil
	}
	if x.onWorker() {
		return ErrReentrant
	}
	return x.waitIdle(ctx)
}

func (x *Engine) waitIdle(ctx context.Context) error { return x.poll(ctx, x.idle) }

func (x *Engine) idle() bool { return x.Busy() == 0 }

// drained is stricter than idle, in that a stopped infinite train must also
// have finished its current period
func (x *Engine) drained() bool { return x.Busy() == 0 && !x.active.Load() }

// poll checks cond at the poll interval until it holds, or ctx is done
func (x *Engine) poll(ctx context.Context, cond func() bool) error {
	if cond() {
		return nil
	}
	ticker := time.NewTicker(x.opts.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if cond() {
				return nil
			}
			return ctx.Err()
		case <-x.done:
			// the worker exited, nothing more will complete
			if cond() {
				return nil
			}
			return ErrClosed
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}

// StartTrain sets the run bit of an infinite train. For other modes it has
// no effect, and returns ErrNotInfinite.
func (x *Engine) StartTrain() error { return x.setRunBit(`start`, 1) }

// StopTrain clears the run bit of an infinite train. The worker stops at the
// end of the current period. For other modes it has no effect, and returns
// ErrNotInfinite.
func (x *Engine) StopTrain() error { return x.setRunBit(`stop`, 0) }

func (x *Engine) setRunBit(op string, v uint32) error {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	if x.state.Load() != StateRunning {
		return ErrClosed
	}
	if t.timing.Mode() != ModeInfinite {
		x.diagnose(logiface.LevelWarning, diagNotInfinite).
			Str(`op`, op).
			Str(`mode`, t.timing.Mode().String()).
			Log(`pulsedthread: train start/stop ignored`)
		return ErrNotInfinite
	}
	t.cmd.count = v
	t.signalLocked()
	return nil
}

// SetDelay sets the low phase length, in microseconds. Zero skips the low
// phase of trains. The change is applied by the worker before the next run,
// or at the next period of a running infinite train.
func (x *Engine) SetDelay(us uint32) error {
	return x.retime(`delay`, FlagDelay, func(t Timing) (Timing, error) {
		return t.WithDelay(us), nil
	})
}

// SetDuration sets the high phase length, in microseconds, which must be
// greater than zero. See also SetDelay.
func (x *Engine) SetDuration(us uint32) error {
	return x.retime(`duration`, FlagDuration, func(t Timing) (Timing, error) {
		return t.WithDuration(us)
	})
}

// SetPulseCount sets the pulse count directly, which may change the mode,
// except between infinite and finite while busy. It takes effect from the
// next run.
func (x *Engine) SetPulseCount(n uint32) error {
	return x.retime(`pulse_count`, 0, func(t Timing) (Timing, error) {
		return t.WithPulseCount(n), nil
	})
}

// SetFrequency sets the frequency, keeping the duty cycle and the train
// duration (the pulse count may change). The frequency must be positive:
// 0 Hz is rejected with ErrInvalidFrequency, as are NaN and infinities.
func (x *Engine) SetFrequency(hz float64) error {
	return x.retime(`frequency`, FlagDelay|FlagDuration, func(t Timing) (Timing, error) {
		return t.WithFrequency(hz)
	})
}

// SetDutyCycle sets the duty cycle, in (0, 1], keeping the frequency and the
// train duration.
func (x *Engine) SetDutyCycle(dutyCycle float64) error {
	return x.retime(`duty_cycle`, FlagDelay|FlagDuration, func(t Timing) (Timing, error) {
		return t.WithDutyCycle(dutyCycle)
	})
}

// SetTrainDuration sets the train duration, in seconds, by changing the
// pulse count. It takes effect from the next run.
func (x *Engine) SetTrainDuration(sec float64) error {
	return x.retime(`train_duration`, 0, func(t Timing) (Timing, error) {
		return t.WithTrainDuration(sec)
	})
}

// SetTiming replaces the whole timing configuration.
func (x *Engine) SetTiming(timing Timing) error {
	return x.retime(`timing`, FlagDelay|FlagDuration, func(Timing) (Timing, error) {
		if !timing.Valid() {
			return timing, ErrInvalidDuration
		}
		return timing, nil
	})
}

// retime applies fn to the requested timing, under the lock, rejecting
// invalid results and finite/infinite conversions while busy
func (x *Engine) retime(op string, flags uint32, fn func(t Timing) (Timing, error)) error {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()

	if x.state.Load() != StateRunning {
		return ErrClosed
	}

	timing, err := fn(t.timing)
	if err == nil && t.cmd.count != 0 && t.timing.modeChange(timing) {
		err = ErrModeTransition
	}
	if err != nil {
		x.logRejected(op, err)
		return err
	}

	if timing == t.timing {
		return nil
	}
	t.timing = timing
	if flags != 0 {
		t.cmd.flags |= flags
		t.signalLocked()
	} else {
		t.dirty.Store(true)
	}
	return nil
}

// Modify requests a custom modification of the task state.
//
// If locking, fn and data are installed, and FlagCustom is set, and the
// worker calls fn at its next safe point (before the next run, or at the
// next period of an infinite train), after which it drops its references
// to fn and data. Only one locking modification may be pending at a time,
// otherwise ErrModifyPending is returned. Errors returned by fn are logged.
//
// If not locking, fn is called synchronously, and its error is returned.
// The caller must ensure that doing so does not race with the worker.
func (x *Engine) Modify(fn CustomModFunc, data any, locking bool) error {
	if fn == nil {
		return ErrNilCallback
	}
	if !locking {
		return fn(data, &x.task)
	}

	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	if x.state.Load() != StateRunning {
		return ErrClosed
	}
	if t.cmd.flags&FlagCustom != 0 {
		return ErrModifyPending
	}
	t.modFn, t.modData = fn, data
	t.cmd.flags |= FlagCustom
	t.signalLocked()
	return nil
}

// ModifyPending reports whether a locking custom modification has yet to be
// applied by the worker.
func (x *Engine) ModifyPending() bool { return x.task.Command()&FlagCustom != 0 }

// SetHighFunc replaces the high phase callback.
func (x *Engine) SetHighFunc(fn PhaseFunc) error {
	if fn == nil {
		return ErrNilCallback
	}
	x.setCallbacks(func(t *TaskState) { t.high = fn })
	return nil
}

// SetLowFunc replaces the low phase callback.
func (x *Engine) SetLowFunc(fn PhaseFunc) error {
	if fn == nil {
		return ErrNilCallback
	}
	x.setCallbacks(func(t *TaskState) { t.low = fn })
	return nil
}

// SetEndFunc installs the end callback, and its payload.
func (x *Engine) SetEndFunc(fn EndFunc, endData any) {
	x.setCallbacks(func(t *TaskState) {
		t.end = fn
		t.SetEndData(endData)
	})
}

// UnsetEndFunc removes the end callback. Its payload is retained.
func (x *Engine) UnsetEndFunc() {
	x.setCallbacks(func(t *TaskState) { t.end = nil })
}

// HasEndFunc reports whether an end callback is installed.
func (x *Engine) HasEndFunc() bool {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.end != nil
}

// SetUserDataDeleter registers (or, if nil, removes) the deleter for the
// user data.
func (x *Engine) SetUserDataDeleter(fn DeleterFunc) {
	x.setCallbacks(func(t *TaskState) { t.userDeleter = fn })
}

// SetEndDataDeleter registers (or, if nil, removes) the deleter for the end
// callback's payload.
func (x *Engine) SetEndDataDeleter(fn DeleterFunc) {
	x.setCallbacks(func(t *TaskState) { t.endDeleter = fn })
}

func (x *Engine) setCallbacks(fn func(t *TaskState)) {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t)
	t.dirty.Store(true)
}

// Timing returns the requested timing, which the worker applies at its next
// safe point. See also TaskState.Timing.
func (x *Engine) Timing() Timing {
	t := &x.task
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timing
}

// Delay returns the low phase length, in microseconds.
func (x *Engine) Delay() uint32 { return x.Timing().Delay() }

// Duration returns the high phase length, in microseconds.
func (x *Engine) Duration() uint32 { return x.Timing().Duration() }

// PulseCount returns the pulse count, 0 being an infinite train.
func (x *Engine) PulseCount() uint32 { return x.Timing().PulseCount() }

// Mode returns the mode selected by the pulse count.
func (x *Engine) Mode() Mode { return x.Timing().Mode() }

// Frequency returns the frequency, in Hz.
func (x *Engine) Frequency() float64 { return x.Timing().Frequency() }

// DutyCycle returns the duty cycle.
func (x *Engine) DutyCycle() float64 { return x.Timing().DutyCycle() }

// TrainDuration returns the train duration, in seconds.
func (x *Engine) TrainDuration() float64 { return x.Timing().TrainDuration() }

// Accuracy returns the accuracy level.
func (x *Engine) Accuracy() AccuracyLevel { return x.task.Accuracy() }

// UserData returns the payload passed to the phase callbacks.
func (x *Engine) UserData() any { return x.task.UserData() }

// EndData returns the payload passed to the end callback.
func (x *Engine) EndData() any { return x.task.EndData() }

// Command returns the encoded command word, see TaskState.Command.
func (x *Engine) Command() uint32 { return x.task.Command() }
