// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// diagnostic categories, rate limited independently
type diagnostic uint8

const (
	diagLatePhase diagnostic = iota
	diagNotInfinite
	diagRejected
	diagCallbackPanic
)

func newDiagnosticLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			limiter = nil
			err = fmt.Errorf(`%w: %v`, ErrInvalidOption, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// diagnose returns a builder for a rate limited diagnostic, or nil, if the
// level is disabled, or the category is currently limited
func (x *Engine) diagnose(level logiface.Level, category diagnostic) *logiface.Builder[logiface.Event] {
	b := x.logger.Build(level)
	if b == nil {
		return nil
	}
	if _, ok := x.limiter.Allow(category); !ok {
		b.Release()
		return nil
	}
	return b
}

func (x *Engine) logRejected(op string, err error) {
	x.diagnose(logiface.LevelWarning, diagRejected).
		Str(`op`, op).
		Err(err).
		Log(`pulsedthread: request rejected`)
}

func (x *Engine) logLatePhase(p phase, behind time.Duration) {
	x.diagnose(logiface.LevelDebug, diagLatePhase).
		Str(`phase`, p.String()).
		Dur(`behind`, behind).
		Log(`pulsedthread: phase started late`)
}
