// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [flags]",
		Short: "Print both views of a timing configuration",
		Long: `Convert resolves a timing configuration, given in either the tick form
(--delay, --duration, --pulses) or the frequency form (--freq, --duty, --train),
and prints it in both forms, after rounding to whole microseconds.`,
		Args: cobra.NoArgs,
		RunE: runConvert,
	}
	cmd.Flags().String("config", "", "TOML configuration file (explicit flags take precedence)")
	addConfigFlags(cmd)
	return cmd
}

func runConvert(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	timing, err := cfg.timing()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "mode:      %s\n", timing.Mode())
	fmt.Fprintf(w, "delay:     %dus\n", timing.Delay())
	fmt.Fprintf(w, "duration:  %dus\n", timing.Duration())
	fmt.Fprintf(w, "pulses:    %d\n", timing.PulseCount())
	fmt.Fprintf(w, "period:    %dus\n", timing.Period())
	fmt.Fprintf(w, "frequency: %gHz\n", timing.Frequency())
	fmt.Fprintf(w, "duty:      %g\n", timing.DutyCycle())
	fmt.Fprintf(w, "train:     %gs\n", timing.TrainDuration())
	return nil
}
