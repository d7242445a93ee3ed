// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// DefaultTurnaround is the default margin reserved for busy-spinning, at
	// the end of each phase, to absorb sleep wake-up jitter.
	DefaultTurnaround = 200 * time.Microsecond

	// DefaultPriority is the default SCHED_RR priority of the worker thread.
	DefaultPriority = 99

	// DefaultDrainTimeout is the default bound Close places on waiting for
	// an in-flight run to finish.
	DefaultDrainTimeout = 5 * time.Second

	// DefaultAbortTimeout is the default bound on waiting for the worker to
	// exit, after it has been interrupted.
	DefaultAbortTimeout = time.Second
)

// engineOptions holds configuration options for Engine creation.
type engineOptions struct {
	logger          *logiface.Logger[logiface.Event]
	endFunc         EndFunc
	endData         any
	userDeleter     DeleterFunc
	endDeleter      DeleterFunc
	diagnosticRates map[time.Duration]int
	turnaround      time.Duration
	drainTimeout    time.Duration
	abortTimeout    time.Duration
	pollInterval    time.Duration
	priority        int
}

// --- Engine Options ---

// EngineOption configures an Engine instance.
type EngineOption interface {
	applyEngine(*engineOptions) error
}

// engineOptionImpl implements EngineOption.
type engineOptionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (x *engineOptionImpl) applyEngine(opts *engineOptions) error {
	return x.applyEngineFunc(opts)
}

// WithLogger configures structured logging. A nil logger (the default)
// disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithTurnaround sets the margin reserved for busy-spinning at the end of
// each phase, by the spinning accuracy levels. Defaults to DefaultTurnaround.
// A turnaround of 0 never spins, except to absorb sleeps that end early.
func WithTurnaround(turnaround time.Duration) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		if turnaround < 0 {
			return fmt.Errorf(`%w: negative turnaround %s`, ErrInvalidOption, turnaround)
		}
		opts.turnaround = turnaround
		return nil
	}}
}

// WithPriority sets the SCHED_RR priority, 1 to 99, requested for the
// worker thread. A priority of 0 leaves the thread in the default scheduling
// class. Defaults to DefaultPriority. Failure to elevate the priority (e.g.
// due to missing privileges) is logged, and is otherwise ignored.
func WithPriority(priority int) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		if priority < 0 || priority > 99 {
			return fmt.Errorf(`%w: priority %d not in [0, 99]`, ErrInvalidOption, priority)
		}
		opts.priority = priority
		return nil
	}}
}

// WithDrainTimeout sets how long Close waits for an in-flight run to finish,
// before interrupting the worker. Defaults to DefaultDrainTimeout.
func WithDrainTimeout(timeout time.Duration) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		if timeout < 0 {
			return fmt.Errorf(`%w: negative drain timeout %s`, ErrInvalidOption, timeout)
		}
		opts.drainTimeout = timeout
		return nil
	}}
}

// WithAbortTimeout sets how long Shutdown waits for an interrupted worker to
// exit. Defaults to DefaultAbortTimeout.
func WithAbortTimeout(timeout time.Duration) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		if timeout < 0 {
			return fmt.Errorf(`%w: negative abort timeout %s`, ErrInvalidOption, timeout)
		}
		opts.abortTimeout = timeout
		return nil
	}}
}

// WithPollInterval sets the interval at which WaitUntilIdle, WaitIdle, and
// Shutdown poll for the engine to become idle. Defaults to 1.01 times the
// turnaround, or 1ms, if the turnaround is 0.
func WithPollInterval(interval time.Duration) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		if interval <= 0 {
			return fmt.Errorf(`%w: poll interval must be positive, got %s`, ErrInvalidOption, interval)
		}
		opts.pollInterval = interval
		return nil
	}}
}

// WithEndFunc installs an end-of-cycle callback, and its payload, at
// construction. See also Engine.SetEndFunc.
func WithEndFunc(fn EndFunc, endData any) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.endFunc = fn
		opts.endData = endData
		return nil
	}}
}

// WithUserDataDeleter registers a deleter for the user data, run once, after
// the worker has exited.
func WithUserDataDeleter(fn DeleterFunc) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.userDeleter = fn
		return nil
	}}
}

// WithEndDataDeleter registers a deleter for the end callback's payload, run
// once, after the worker has exited.
func WithEndDataDeleter(fn DeleterFunc) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		opts.endDeleter = fn
		return nil
	}}
}

// WithDiagnosticRates sets the per-category rate limits applied to repeated
// diagnostics, such as late phases, or misuse of StartTrain. The rates map a
// window to the maximum number of log events per window, per category.
// Defaults to 5 per second, and 60 per minute. A nil or empty map disables
// rate limiting.
func WithDiagnosticRates(rates map[time.Duration]int) EngineOption {
	return &engineOptionImpl{func(opts *engineOptions) error {
		for window, limit := range rates {
			if window <= 0 || limit <= 0 {
				return fmt.Errorf(`%w: diagnostic rate %d per %s`, ErrInvalidOption, limit, window)
			}
		}
		if rates == nil {
			rates = map[time.Duration]int{}
		}
		opts.diagnosticRates = rates
		return nil
	}}
}

// resolveEngineOptions applies EngineOption instances to engineOptions.
func resolveEngineOptions(opts []EngineOption) (*engineOptions, error) {
	cfg := &engineOptions{
		turnaround:   DefaultTurnaround,
		priority:     DefaultPriority,
		drainTimeout: DefaultDrainTimeout,
		abortTimeout: DefaultAbortTimeout,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.pollInterval == 0 {
		cfg.pollInterval = cfg.turnaround + cfg.turnaround/100
		if cfg.pollInterval == 0 {
			cfg.pollInterval = time.Millisecond
		}
	}
	if cfg.diagnosticRates == nil {
		cfg.diagnosticRates = map[time.Duration]int{
			time.Second: 5,
			time.Minute: 60,
		}
	}
	return cfg, nil
}
