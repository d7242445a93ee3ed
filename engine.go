// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Engine drives one worker goroutine, locked to a dedicated OS thread, which
// emits pulses as requested by its controllers. All methods are safe to call
// concurrently. See the package documentation for an overview.
//
// An Engine must be released with Shutdown or Close.
type Engine struct { // betteralign:ignore
	task    TaskState
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	opts    *engineOptions
	// closed to interrupt the worker's sleeps, after abort is set
	aborted chan struct{}
	// closed when the worker has exited
	done     chan struct{}
	release  sync.Once
	id       uint64
	workerID atomic.Uint64
	abort    atomic.Bool
	// set while the worker is between taking and finishing a run
	active atomic.Bool
	state  fastState
}

var engineIDCounter atomic.Uint64

// New constructs an engine from tick-domain parameters, in microseconds,
// and starts its worker.
//
// The pulse count selects the mode: 0 is an infinite train, 1 a single
// pulse, and 2 or more a finite train. The duration (high phase) must be
// greater than zero. The delay (low phase) may be 0, which, for trains,
// skips the low phase (and callback) entirely.
//
// If init is nil, initData is used directly as the user data, otherwise
// init is called (synchronously) to build it. Both low and high are
// required.
func New(delayMicros, durationMicros, pulseCount uint32, initData any, init InitFunc, low, high PhaseFunc, accuracy AccuracyLevel, opts ...EngineOption) (*Engine, error) {
	timing, err := TicksTiming(delayMicros, durationMicros, pulseCount)
	if err != nil {
		return nil, err
	}
	return newEngine(timing, initData, init, low, high, accuracy, opts)
}

// NewFromFrequency constructs an engine from frequency-domain parameters,
// and starts its worker. A train duration of 0 selects an infinite train.
// See also FrequencyTiming, and New.
func NewFromFrequency(hz, dutyCycle, trainSec float64, initData any, init InitFunc, low, high PhaseFunc, accuracy AccuracyLevel, opts ...EngineOption) (*Engine, error) {
	timing, err := FrequencyTiming(hz, dutyCycle, trainSec)
	if err != nil {
		return nil, err
	}
	return newEngine(timing, initData, init, low, high, accuracy, opts)
}

// NewFromTiming constructs an engine from an existing Timing.
func NewFromTiming(timing Timing, initData any, init InitFunc, low, high PhaseFunc, accuracy AccuracyLevel, opts ...EngineOption) (*Engine, error) {
	if !timing.Valid() {
		return nil, ErrInvalidDuration
	}
	return newEngine(timing, initData, init, low, high, accuracy, opts)
}

func newEngine(timing Timing, initData any, init InitFunc, low, high PhaseFunc, accuracy AccuracyLevel, options []EngineOption) (*Engine, error) {
	if low == nil || high == nil {
		return nil, fmt.Errorf(`%w: low and high phase callbacks are required`, ErrNilCallback)
	}
	if !accuracy.valid() {
		return nil, fmt.Errorf(`%w: %s`, ErrInvalidOption, accuracy)
	}

	opts, err := resolveEngineOptions(options)
	if err != nil {
		return nil, err
	}

	limiter, err := newDiagnosticLimiter(opts.diagnosticRates)
	if err != nil {
		return nil, err
	}

	x := &Engine{
		id:      engineIDCounter.Add(1),
		limiter: limiter,
		opts:    opts,
		aborted: make(chan struct{}),
		done:    make(chan struct{}),
	}
	x.logger = opts.logger.Clone().
		Uint64(`engine`, x.id).
		Logger()

	userData := initData
	if init != nil {
		userData, err = init(initData)
		if err != nil {
			x.logger.Err().
				Err(err).
				Log(`pulsedthread: init failed`)
			return nil, fmt.Errorf(`%w: %w`, ErrInitFailed, err)
		}
	}

	x.task.init(timing, accuracy, low, high)
	x.task.SetUserData(userData)
	x.task.end = opts.endFunc
	x.task.SetEndData(opts.endData)
	x.task.userDeleter = opts.userDeleter
	x.task.endDeleter = opts.endDeleter

	started := make(chan error, 1)
	go x.run(started)
	if err := <-started; err != nil {
		x.logger.Warning().
			Int(`priority`, opts.priority).
			Err(err).
			Log(`pulsedthread: worker priority not elevated`)
	}

	x.logger.Debug().
		Str(`timing`, timing.String()).
		Str(`mode`, timing.Mode().String()).
		Str(`accuracy`, accuracy.String()).
		Dur(`turnaround`, opts.turnaround).
		Log(`pulsedthread: engine started`)

	return x, nil
}

// State returns the lifecycle state.
func (x *Engine) State() EngineState { return x.state.Load() }

// Done returns a channel that is closed once the worker has exited.
func (x *Engine) Done() <-chan struct{} { return x.done }

// Close shuts down the engine, bounding the drain of any in-flight run by
// the drain timeout, see WithDrainTimeout, and Shutdown.
func (x *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), x.opts.drainTimeout)
	defer cancel()
	return x.Shutdown(ctx)
}

// Shutdown stops the engine, and releases its payloads.
//
// Queued runs are discarded (or, for an infinite train, the train is
// stopped), and any run in flight is allowed to finish, until ctx is done.
// The worker is then interrupted, including if it is sleeping or spinning
// mid-phase, without invoking any further callbacks. Finally, once the
// worker has exited, any registered deleters are called.
//
// If the drain did not complete, the returned error wraps ErrDrainTimeout,
// and the context's error. If the worker did not exit within the abort
// timeout (e.g. because it is blocked in a callback), the returned error
// wraps ErrAbortTimeout, and the deleters will instead be called once it
// does exit. Calls after the first return ErrClosed. Calls from the worker
// goroutine (i.e. from callbacks) return ErrReentrant.
func (x *Engine) Shutdown(ctx context.Context) error {
	if x.onWorker() {
		return ErrReentrant
	}

	t := &x.task
	t.mu.Lock()
	if !x.state.TryTransition(StateRunning, StateDraining) {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.timing.Mode() == ModeInfinite {
		t.cmd.count = 0
	} else {
		t.cmd.collapse()
	}
	t.signalLocked()
	t.mu.Unlock()

	x.logger.Debug().
		Uint64(`pending`, uint64(x.Busy())).
		Log(`pulsedthread: shutting down`)

	var err error

	if drainErr := x.poll(ctx, x.drained); drainErr != nil {
		err = fmt.Errorf(`%w: %w`, ErrDrainTimeout, drainErr)
		x.logger.Warning().
			Err(drainErr).
			Log(`pulsedthread: drain timed out, interrupting worker`)
	}

	x.state.Store(StateAborting)
	x.interrupt()

	timer := time.NewTimer(x.opts.abortTimeout)
	defer timer.Stop()
	select {
	case <-x.done:
		x.releasePayloads()
	case <-timer.C:
		err = errors.Join(err, ErrAbortTimeout)
		x.logger.Warning().
			Dur(`timeout`, x.opts.abortTimeout).
			Log(`pulsedthread: worker did not exit, deferring deleters`)
		go func() {
			<-x.done
			x.releasePayloads()
		}()
	}

	x.state.Store(StateClosed)

	return err
}

// interrupt sets the abort flag, then wakes the worker, wherever it is
func (x *Engine) interrupt() {
	x.abort.Store(true)
	close(x.aborted)
	x.task.mu.Lock()
	x.task.cond.Broadcast()
	x.task.mu.Unlock()
}

func (x *Engine) releasePayloads() {
	x.release.Do(func() {
		t := &x.task
		t.mu.Lock()
		userDeleter, endDeleter := t.userDeleter, t.endDeleter
		t.modFn, t.modData = nil, nil
		t.mu.Unlock()
		if userDeleter != nil {
			userDeleter(t.UserData())
		}
		if endDeleter != nil {
			endDeleter(t.EndData())
		}
		t.SetUserData(nil)
		t.SetEndData(nil)
		x.logger.Debug().
			Bool(`user_deleter`, userDeleter != nil).
			Bool(`end_deleter`, endDeleter != nil).
			Log(`pulsedthread: engine closed`)
	})
}

// onWorker reports whether the caller is the worker goroutine
func (x *Engine) onWorker() bool {
	id := x.workerID.Load()
	return id != 0 && id == getGoroutineID()
}

// getGoroutineID returns the current goroutine's ID.
// This is used for re-entrancy checks only.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
