// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package waveform modulates a running pulse train from a table of values,
// stepping through it once per completed period (or train), from the
// engine's end callback.
//
// A typical use drives a buzzer or LED with a slowly varying duty cycle:
//
//	m := waveform.DutyModulator(engine, waveform.Cosine(100, 0.5, 0.3))
//	engine.SetEndFunc(m.End, nil)
//	_ = engine.StartTrain()
package waveform

import (
	"math"
	"sync/atomic"

	"github.com/joeycumines/go-pulsedthread"
)

type (
	// Table is a cyclic sequence of values, applied one per step.
	Table []float64

	// DutyCycleSetter is implemented by pulsedthread.Engine.
	DutyCycleSetter interface {
		SetDutyCycle(dutyCycle float64) error
	}

	// FrequencySetter is implemented by pulsedthread.Engine.
	FrequencySetter interface {
		SetFrequency(hz float64) error
	}

	// Modulator applies the next value of a Table each time its End method
	// is called by the worker, while the engine is running. Values the
	// engine rejects are skipped, and counted.
	Modulator struct {
		apply    func(v float64) error
		table    Table
		index    atomic.Int64
		applied  atomic.Uint64
		rejected atomic.Uint64
	}
)

var _ pulsedthread.EndFunc = (*Modulator)(nil).End

// Cosine returns one period of mean - amplitude*cos(2*pi*i/period), sampled
// at period points, starting at the trough. It returns nil if period is not
// positive.
func Cosine(period int, mean, amplitude float64) Table {
	if period <= 0 {
		return nil
	}
	t := make(Table, period)
	for i := range t {
		t[i] = mean - amplitude*math.Cos(2*math.Pi*float64(i)/float64(period))
	}
	return t
}

// Ramp returns n points, evenly spaced from from to to, inclusive.
func Ramp(n int, from, to float64) Table {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return Table{from}
	}
	t := make(Table, n)
	step := (to - from) / float64(n-1)
	for i := range t {
		t[i] = from + step*float64(i)
	}
	t[n-1] = to
	return t
}

// DutyModulator steps the duty cycle of e through t.
func DutyModulator(e DutyCycleSetter, t Table) *Modulator {
	return &Modulator{apply: e.SetDutyCycle, table: t}
}

// FrequencyModulator steps the frequency of e, in Hz, through t.
func FrequencyModulator(e FrequencySetter, t Table) *Modulator {
	return &Modulator{apply: e.SetFrequency, table: t}
}

// End is a pulsedthread.EndFunc. It does nothing unless the task is
// running, i.e. an infinite train has not been stopped, or a finite run is
// still counted.
func (x *Modulator) End(_ any, task *pulsedthread.TaskState) {
	if len(x.table) == 0 || !task.Running() {
		return
	}
	i := x.index.Load()
	if err := x.apply(x.table[i]); err != nil {
		x.rejected.Add(1)
	} else {
		x.applied.Add(1)
	}
	i++
	if i == int64(len(x.table)) {
		i = 0
	}
	x.index.Store(i)
}

// Index returns the position of the next value to apply.
func (x *Modulator) Index() int { return int(x.index.Load()) }

// Applied returns the number of values accepted by the engine.
func (x *Modulator) Applied() uint64 { return x.applied.Load() }

// Rejected returns the number of values the engine rejected.
func (x *Modulator) Rejected() uint64 { return x.rejected.Load() }

// Reset rewinds to the start of the table. It must not be called
// concurrently with End.
func (x *Modulator) Reset() { x.index.Store(0) }
