// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"errors"
)

// Standard errors.
var (
	// ErrInvalidDuration is returned when the high phase would be zero
	// microseconds long.
	ErrInvalidDuration = errors.New("pulsedthread: duration must be greater than zero")

	// ErrInvalidDutyCycle is returned for a duty cycle outside (0, 1].
	ErrInvalidDutyCycle = errors.New("pulsedthread: duty cycle must be in (0, 1]")

	// ErrInvalidFrequency is returned for a frequency that is not positive and
	// finite, or that implies a period that cannot be represented.
	ErrInvalidFrequency = errors.New("pulsedthread: invalid frequency")

	// ErrInvalidTrainDuration is returned for a negative or non-finite train
	// duration, or one implying an unrepresentable pulse count.
	ErrInvalidTrainDuration = errors.New("pulsedthread: invalid train duration")

	// ErrModeTransition is returned when a change would convert between an
	// infinite and a finite train, while the engine is busy.
	ErrModeTransition = errors.New("pulsedthread: cannot switch between infinite and finite trains while busy")

	// ErrNotInfinite is returned by StartTrain and StopTrain, which have no
	// effect unless the engine is configured as an infinite train.
	ErrNotInfinite = errors.New("pulsedthread: not an infinite train")

	// ErrInitFailed wraps any error returned by an InitFunc.
	ErrInitFailed = errors.New("pulsedthread: init failed")

	// ErrNilCallback is returned when a required callback is nil.
	ErrNilCallback = errors.New("pulsedthread: nil callback")

	// ErrModifyPending is returned when a locking custom modification is
	// requested, while a previous one has not yet been applied.
	ErrModifyPending = errors.New("pulsedthread: custom modification already pending")

	// ErrInvalidOption is returned by New for an out of range option value.
	ErrInvalidOption = errors.New("pulsedthread: invalid option")

	// ErrClosed is returned by operations on an engine that has been shut down.
	ErrClosed = errors.New("pulsedthread: engine closed")

	// ErrDrainTimeout is returned by Shutdown if the in-flight run did not
	// finish in time, and the worker was interrupted.
	ErrDrainTimeout = errors.New("pulsedthread: drain timed out")

	// ErrAbortTimeout is returned by Shutdown if the worker could not be
	// confirmed as exited, typically because it is blocked in a callback.
	ErrAbortTimeout = errors.New("pulsedthread: worker did not exit")

	// ErrReentrant is returned by blocking operations called from the worker
	// goroutine, e.g. from within a callback.
	ErrReentrant = errors.New("pulsedthread: cannot block on the engine from within its own worker")
)

// codes are stable, they are surfaced by bindings
var errorCodes = [...]error{
	ErrInvalidDuration,
	ErrInvalidDutyCycle,
	ErrInvalidFrequency,
	ErrInvalidTrainDuration,
	ErrModeTransition,
	ErrNotInfinite,
	ErrInitFailed,
	ErrNilCallback,
	ErrModifyPending,
	ErrInvalidOption,
	ErrClosed,
	ErrDrainTimeout,
	ErrAbortTimeout,
	ErrReentrant,
}

// ErrorCode maps err to a status code, for callers (e.g. language bindings)
// that deal in plain integers. A nil error is 0, errors matching one of the
// standard errors of this package map to a fixed positive code, and any
// other error is -1.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	for i, target := range errorCodes {
		if errors.Is(err, target) {
			return i + 1
		}
	}
	return -1
}
