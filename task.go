// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"sync"
	"sync/atomic"
)

type (
	// InitFunc builds the user data passed to the phase callbacks, from the
	// init data given to the constructor. It runs synchronously, before the
	// worker is started. A non-nil error aborts construction, and is wrapped
	// with ErrInitFailed.
	InitFunc func(initData any) (userData any, err error)

	// PhaseFunc is called by the worker at the start of a high or low phase,
	// with the current user data. It should return quickly, since its run
	// time delays the following phase (AccuracySleep), or shortens it (the
	// spinning accuracy levels).
	PhaseFunc func(userData any)

	// EndFunc is called by the worker after each single pulse, after each
	// complete finite train, and after every period of an infinite train.
	// It may call the control methods of the engine, e.g. to retime it.
	EndFunc func(endData any, task *TaskState)

	// CustomModFunc performs an arbitrary mutation of task state, see
	// Engine.Modify. A non-nil error is logged, for locking modifications.
	CustomModFunc func(data any, task *TaskState) error

	// DeleterFunc releases an externally owned payload, once, after the
	// worker has exited.
	DeleterFunc func(payload any)
)

type payload struct{ v any }

// TaskState is the state shared by an engine's controllers and its worker.
// A pointer to it is passed to EndFunc and CustomModFunc callbacks.
//
// The exported methods never block, and are safe to call from callbacks.
type TaskState struct {
	// guards the fields below it, unless otherwise noted
	mu          sync.Mutex
	cond        sync.Cond
	cmd         command
	timing      Timing
	high        PhaseFunc
	low         PhaseFunc
	end         EndFunc
	modFn       CustomModFunc
	modData     any
	userDeleter DeleterFunc
	endDeleter  DeleterFunc

	// mirrors cmd.word(), stored on every change
	word atomic.Uint32
	// the timing in effect on the worker
	applied atomic.Pointer[Timing]
	// set on changes that carry no flag (callbacks, pulse count), the worker
	// resnapshots mid-train
	dirty atomic.Bool

	userData atomic.Pointer[payload]
	endData  atomic.Pointer[payload]

	accuracy AccuracyLevel
}

func (x *TaskState) init(timing Timing, accuracy AccuracyLevel, low, high PhaseFunc) {
	x.cond.L = &x.mu
	x.timing = timing
	x.accuracy = accuracy
	x.low = low
	x.high = high
	applied := timing
	x.applied.Store(&applied)
	x.userData.Store(&payload{})
	x.endData.Store(&payload{})
}

// signalLocked publishes the command word, and wakes the worker
func (x *TaskState) signalLocked() {
	x.word.Store(x.cmd.word())
	x.cond.Signal()
}

// Command returns the encoded command word: the pending run count (or, for
// an infinite train, the run bit) in the bits below FlagDelay, plus any of
// FlagDelay, FlagDuration, and FlagCustom that have yet to be picked up by
// the worker. Zero means idle, with nothing pending.
func (x *TaskState) Command() uint32 { return x.word.Load() }

// Busy returns the pending run count, including any run in flight. For an
// infinite train, it is 1 while the train is running. Zero means idle.
func (x *TaskState) Busy() uint32 { return x.word.Load() & MaxPending }

// Running reports whether Busy is non-zero.
func (x *TaskState) Running() bool { return x.Busy() != 0 }

// Timing returns the timing in effect on the worker, which may lag behind
// Engine.Timing until the worker reaches its next safe point.
func (x *TaskState) Timing() Timing { return *x.applied.Load() }

// Accuracy returns the accuracy level, which is fixed at construction.
func (x *TaskState) Accuracy() AccuracyLevel { return x.accuracy }

// UserData returns the payload passed to the phase callbacks.
func (x *TaskState) UserData() any { return x.userData.Load().v }

// SetUserData replaces the payload passed to the phase callbacks, taking
// effect from the next phase. Any deleter applies to the new value.
func (x *TaskState) SetUserData(v any) { x.userData.Store(&payload{v}) }

// EndData returns the payload passed to the end callback.
func (x *TaskState) EndData() any { return x.endData.Load().v }

// SetEndData replaces the payload passed to the end callback.
func (x *TaskState) SetEndData(v any) { x.endData.Store(&payload{v}) }
