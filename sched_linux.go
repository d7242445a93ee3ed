// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package pulsedthread

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/sys/unix"
)

// elevatePriority moves the calling thread into SCHED_RR, at the given
// priority, returning true if the thread's scheduling was changed. The
// calling goroutine must be locked to its thread.
func elevatePriority(priority int) (bool, error) {
	if priority <= 0 {
		return false, nil
	}
	p, err := safecast.Conv[uint32](priority)
	if err != nil {
		return false, err
	}
	tid := unix.Gettid()
	if err := unix.SchedSetAttr(tid, &unix.SchedAttr{
		Policy:   unix.SCHED_RR,
		Priority: p,
	}, 0); err != nil {
		return false, fmt.Errorf(`sched_setattr SCHED_RR priority %d for thread %d: %w`, priority, tid, err)
	}
	return true, nil
}
