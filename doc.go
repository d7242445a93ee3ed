// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package pulsedthread dedicates one OS thread to emitting precisely timed,
// two-phase pulses, either once, as a counted train, or as an infinite train
// that is started and stopped explicitly.
//
// An [Engine] owns a single worker goroutine, locked to its OS thread, and
// (on Linux, where permitted) elevated to the SCHED_RR real-time class. The
// worker calls a "high" [PhaseFunc], waits out the high phase, calls a "low"
// [PhaseFunc], and waits out the low phase, at microsecond resolution. How
// each phase is waited out is selected by the [AccuracyLevel]: a plain sleep,
// a sleep followed by a fixed-margin busy-spin, or an adaptive variant that
// corrects for accumulated drift.
//
// Controllers request work ([Engine.Run], [Engine.RunN],
// [Engine.StartTrain]), retime the engine ([Engine.SetDelay],
// [Engine.SetFrequency], etc), and observe completion ([Engine.Busy],
// [Engine.WaitUntilIdle]), without any real-time obligations of their own.
// Requests are multiplexed into a single command word, holding a saturating
// pending-run counter and three sticky modification flags, see
// [Engine.Command].
//
// Timing is held canonically in microsecond ticks (delay, duration, pulse
// count), with the frequency-domain view (frequency, duty cycle, train
// duration) derived on demand, see [Timing].
//
// Teardown ([Engine.Shutdown], [Engine.Close]) first lets any in-flight run
// finish, within a bounded drain window, then interrupts the worker, which
// may be sleeping or spinning at the time, before running any registered
// deleters.
package pulsedthread
