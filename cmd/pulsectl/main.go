// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Command pulsectl drives a single pulsedthread engine, from flags or a TOML
// file, printing (and optionally recording) the edges it emits.
//
//	pulsectl run --freq 2 --duty 0.25 --train 3
//	pulsectl run --delay 1000 --duration 500 --pulses 0 --timeout 2s --wav out.wav
//	pulsectl convert --freq 50 --duty 0.2 --train 0.1
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pulsectl",
		Short:         "Emit precisely timed pulses from a dedicated thread",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().String("log-level", "warning", "log level (err|warning|notice|info|debug|trace|disabled)")
	cmd.PersistentFlags().Bool("no-color", false, "disable coloured output")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newConvertCmd())
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
