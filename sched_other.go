// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build !linux

package pulsedthread

import (
	"errors"
)

var errPriorityUnsupported = errors.New(`real-time scheduling is not supported on this platform`)

// elevatePriority is best-effort only, off Linux: the worker keeps its
// locked thread, at the default priority.
func elevatePriority(priority int) (bool, error) {
	if priority <= 0 {
		return false, nil
	}
	return false, errPriorityUnsupported
}
