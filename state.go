// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package pulsedthread

import (
	"sync/atomic"
)

// EngineState represents the lifecycle state of an Engine.
//
// State Machine:
//
//	StateRunning (0) → StateDraining (1)   [Shutdown(), under the task lock]
//	StateDraining (1) → StateAborting (2)  [drain finished, or timed out]
//	StateAborting (2) → StateClosed (3)    [worker exited, or abort timed out]
//	StateClosed (3) → (terminal)
//
// Only the Running → Draining transition is contended, and uses CAS. The
// remaining transitions are made by the single goroutine that won it.
type EngineState uint32

const (
	// StateRunning indicates the engine accepts requests.
	StateRunning EngineState = iota
	// StateDraining indicates shutdown has started, and the engine is waiting
	// for any in-flight run to finish. New requests are rejected.
	StateDraining
	// StateAborting indicates the worker has been interrupted, and the engine
	// is waiting for it to exit.
	StateAborting
	// StateClosed indicates shutdown has completed.
	StateClosed
)

// String returns a human-readable representation of the state.
func (s EngineState) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateAborting:
		return "Aborting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state holder.
type fastState struct {
	v atomic.Uint32
}

// Load returns the current state atomically.
func (s *fastState) Load() EngineState {
	return EngineState(s.v.Load())
}

// Store atomically stores a new state, with no transition validation.
func (s *fastState) Store(state EngineState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *fastState) TryTransition(from, to EngineState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
