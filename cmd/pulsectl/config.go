// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joeycumines/go-pulsedthread"
	"github.com/spf13/cobra"
)

// config is the run configuration, loaded from an optional TOML file, then
// overridden by any flags that were set explicitly.
//
// The frequency form (frequency, duty_cycle, train) is used if frequency is
// non-zero, otherwise the tick form (delay, duration, pulses).
type config struct {
	Accuracy   string        `toml:"accuracy"`
	WAV        string        `toml:"wav"`
	Timeout    time.Duration `toml:"timeout"`
	Turnaround time.Duration `toml:"turnaround"`
	Frequency  float64       `toml:"frequency"`
	DutyCycle  float64       `toml:"duty_cycle"`
	Train      float64       `toml:"train"`
	Priority   int           `toml:"priority"`
	SampleRate int           `toml:"sample_rate"`
	Delay      uint32        `toml:"delay"`
	Duration   uint32        `toml:"duration"`
	Pulses     uint32        `toml:"pulses"`
	Runs       uint32        `toml:"runs"`
	Quiet      bool          `toml:"quiet"`
}

func defaultConfig() config {
	return config{
		Accuracy:   pulsedthread.AccuracyAdaptive.String(),
		Turnaround: pulsedthread.DefaultTurnaround,
		DutyCycle:  0.5,
		SampleRate: 44100,
		Pulses:     1,
		Runs:       1,
	}
}

// loadConfig decodes path over the defaults, rejecting unknown keys
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func addConfigFlags(cmd *cobra.Command) {
	d := defaultConfig()
	f := cmd.Flags()
	f.Uint32("delay", d.Delay, "low phase length (us)")
	f.Uint32("duration", d.Duration, "high phase length (us)")
	f.Uint32("pulses", d.Pulses, "pulse count (0 for an infinite train)")
	f.Float64("freq", d.Frequency, "frequency (Hz), selects the frequency form")
	f.Float64("duty", d.DutyCycle, "duty cycle, in (0, 1]")
	f.Float64("train", d.Train, "train duration (s), 0 for an infinite train")
	f.String("accuracy", d.Accuracy, "accuracy level (sleep|spin|adaptive)")
	f.Duration("turnaround", d.Turnaround, "spin margin for the spinning accuracy levels")
	f.Int("priority", d.Priority, "SCHED_RR priority for the worker (0 disables)")
	f.Uint32("runs", d.Runs, "number of runs of a finite task")
	f.Duration("timeout", d.Timeout, "bound on the whole run (0 waits indefinitely), ends infinite trains")
	f.String("wav", d.WAV, "write the recorded edges to this WAV file")
	f.Int("sample-rate", d.SampleRate, "WAV sample rate (Hz)")
	f.Bool("quiet", d.Quiet, "don't print edges")
}

// applyFlags overrides x with the flags that were set explicitly
func (x *config) applyFlags(cmd *cobra.Command) (err error) {
	f := cmd.Flags()
	set := func(name string, fn func() error) {
		if err == nil && f.Changed(name) {
			if err = fn(); err != nil {
				err = fmt.Errorf("failed to get %s flag: %w", name, err)
			}
		}
	}
	set("delay", func() (err error) { x.Delay, err = f.GetUint32("delay"); return })
	set("duration", func() (err error) { x.Duration, err = f.GetUint32("duration"); return })
	set("pulses", func() (err error) { x.Pulses, err = f.GetUint32("pulses"); return })
	set("freq", func() (err error) { x.Frequency, err = f.GetFloat64("freq"); return })
	set("duty", func() (err error) { x.DutyCycle, err = f.GetFloat64("duty"); return })
	set("train", func() (err error) { x.Train, err = f.GetFloat64("train"); return })
	set("accuracy", func() (err error) { x.Accuracy, err = f.GetString("accuracy"); return })
	set("turnaround", func() (err error) { x.Turnaround, err = f.GetDuration("turnaround"); return })
	set("priority", func() (err error) { x.Priority, err = f.GetInt("priority"); return })
	set("runs", func() (err error) { x.Runs, err = f.GetUint32("runs"); return })
	set("timeout", func() (err error) { x.Timeout, err = f.GetDuration("timeout"); return })
	set("wav", func() (err error) { x.WAV, err = f.GetString("wav"); return })
	set("sample-rate", func() (err error) { x.SampleRate, err = f.GetInt("sample-rate"); return })
	set("quiet", func() (err error) { x.Quiet, err = f.GetBool("quiet"); return })
	return err
}

// resolveConfig loads the --config file, if any, then applies the flags
func resolveConfig(cmd *cobra.Command) (config, error) {
	cfg := defaultConfig()
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		if cfg, err = loadConfig(path); err != nil {
			return config{}, err
		}
	}
	if err := cfg.applyFlags(cmd); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (x *config) timing() (pulsedthread.Timing, error) {
	if x.Frequency != 0 {
		return pulsedthread.FrequencyTiming(x.Frequency, x.DutyCycle, x.Train)
	}
	return pulsedthread.TicksTiming(x.Delay, x.Duration, x.Pulses)
}

func (x *config) accuracy() (pulsedthread.AccuracyLevel, error) {
	return pulsedthread.ParseAccuracyLevel(x.Accuracy)
}
