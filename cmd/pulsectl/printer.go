// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

const edgeBufferSize = 4096

type edge struct {
	at   time.Duration
	high bool
}

// edgeFeed carries edges from the worker's phase callbacks to the printer,
// without ever blocking the worker: edges that don't fit are dropped
type edgeFeed struct {
	start   time.Time
	ch      chan edge
	dropped atomic.Uint64
}

func newEdgeFeed() *edgeFeed {
	return &edgeFeed{
		start: time.Now(),
		ch:    make(chan edge, edgeBufferSize),
	}
}

func (x *edgeFeed) send(high bool) {
	select {
	case x.ch <- edge{at: time.Since(x.start), high: high}:
	default:
		x.dropped.Add(1)
	}
}

type edgePrinter struct {
	w    io.Writer
	high *color.Color
	low  *color.Color
	n    uint64
}

func newEdgePrinter(w io.Writer, noColor bool) *edgePrinter {
	x := &edgePrinter{
		w:    w,
		high: color.New(color.FgGreen, color.Bold),
		low:  color.New(color.FgYellow),
	}
	if noColor {
		x.high.DisableColor()
		x.low.DisableColor()
	}
	return x
}

func (x *edgePrinter) print(e edge) error {
	x.n++
	c, label := x.low, "LOW "
	if e.high {
		c, label = x.high, "HIGH"
	}
	_, err := fmt.Fprintf(x.w, "%6d %s %12s\n", x.n, c.Sprint(label), e.at.Round(time.Microsecond))
	return err
}

// run prints edges until done is closed, then prints whatever is buffered
func (x *edgePrinter) run(feed *edgeFeed, done <-chan struct{}) error {
	for {
		select {
		case e := <-feed.ch:
			if err := x.print(e); err != nil {
				return err
			}
		case <-done:
			for {
				select {
				case e := <-feed.ch:
					if err := x.print(e); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}
