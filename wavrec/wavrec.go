// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package wavrec records the edges emitted by a pulsedthread.Engine, and
// renders them as a PCM WAV file, for offline inspection of what a buzzer
// (or scope) attached to the output would have seen.
package wavrec

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/joeycumines/go-pulsedthread"
)

const (
	bitDepth = 16
	// amplitude is half of full scale, leaving headroom
	amplitude = math.MaxInt16 / 2
	// pcmFormat is the WAVE_FORMAT_PCM format tag
	pcmFormat = 1
	// defaultHold is the length rendered after the final edge, if there is
	// no earlier interval to repeat
	defaultHold = time.Millisecond
)

type (
	// Edge is a transition, at an offset from the first recorded edge.
	Edge struct {
		At   time.Duration
		High bool
	}

	// Recorder provides a pair of phase callbacks that record each edge.
	// The zero value is ready to use, and records without limit.
	Recorder struct {
		start   time.Time
		edges   []Edge
		mu      sync.Mutex
		limit   int
		dropped int
	}
)

var (
	_ pulsedthread.PhaseFunc = (*Recorder)(nil).High
	_ pulsedthread.PhaseFunc = (*Recorder)(nil).Low
)

// NewRecorder returns a Recorder that keeps at most limit edges, dropping
// any after that, or all edges, if limit is 0.
func NewRecorder(limit int) *Recorder {
	if limit < 0 {
		panic(`wavrec: negative limit`)
	}
	return &Recorder{limit: limit}
}

// High is a pulsedthread.PhaseFunc, recording a rising edge.
func (x *Recorder) High(any) { x.record(true) }

// Low is a pulsedthread.PhaseFunc, recording a falling edge.
func (x *Recorder) Low(any) { x.record(false) }

func (x *Recorder) record(high bool) {
	now := time.Now()
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.limit != 0 && len(x.edges) >= x.limit {
		x.dropped++
		return
	}
	if len(x.edges) == 0 {
		x.start = now
	}
	x.edges = append(x.edges, Edge{At: now.Sub(x.start), High: high})
}

// Edges returns a copy of the recorded edges.
func (x *Recorder) Edges() []Edge {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]Edge(nil), x.edges...)
}

// Dropped returns the number of edges discarded due to the limit.
func (x *Recorder) Dropped() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.dropped
}

// Reset discards everything recorded so far.
func (x *Recorder) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.edges = nil
	x.dropped = 0
}

// Samples renders the recorded edges as a square wave, at the given sample
// rate, high being positive. The final level is held for as long as the
// interval before it, or 1ms, if there was only one edge.
func (x *Recorder) Samples(sampleRate int) []int {
	if sampleRate <= 0 {
		panic(`wavrec: invalid sample rate`)
	}

	edges := x.Edges()
	if len(edges) == 0 {
		return nil
	}

	hold := defaultHold
	if n := len(edges); n > 1 {
		hold = edges[n-1].At - edges[n-2].At
	}
	samples := make([]int, sampleIndex(sampleRate, edges[len(edges)-1].At+hold))
	var i int
	for j, edge := range edges {
		end := len(samples)
		if j+1 < len(edges) {
			end = min(sampleIndex(sampleRate, edges[j+1].At), len(samples))
		}
		level := -amplitude
		if edge.High {
			level = amplitude
		}
		for ; i < end; i++ {
			samples[i] = level
		}
	}
	return samples
}

// WriteWAV renders the edges (see Samples) as a 16-bit mono WAV file.
func (x *Recorder) WriteWAV(w io.WriteSeeker, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf(`wavrec: invalid sample rate: %d`, sampleRate)
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, pcmFormat)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           x.Samples(sampleRate),
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf(`wavrec: write: %w`, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf(`wavrec: close: %w`, err)
	}
	return nil
}

// sampleIndex converts an offset to a sample index, without overflowing for
// long recordings
func sampleIndex(sampleRate int, d time.Duration) int {
	return int(d/time.Second)*sampleRate + int(d%time.Second*time.Duration(sampleRate)/time.Second)
}
