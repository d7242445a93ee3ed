// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joeycumines/go-pulsedthread"
	"github.com/joeycumines/go-pulsedthread/wavrec"
	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// maxRecordedEdges bounds the memory used by --wav, for long infinite trains
const maxRecordedEdges = 1 << 22

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Run a pulse, a finite train, or an infinite train",
		Long: `Run constructs an engine, then either requests --runs runs of a single pulse
or finite train, waiting for them to complete, or starts an infinite train
(--pulses 0, or --train 0 with --freq), which runs until interrupted, or until
--timeout elapses.`,
		Args: cobra.NoArgs,
		RunE: runPulses,
	}
	cmd.Flags().String("config", "", "TOML configuration file (explicit flags take precedence)")
	addConfigFlags(cmd)
	return cmd
}

func runPulses(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return fmt.Errorf("failed to get no-color flag: %w", err)
	}
	timing, err := cfg.timing()
	if err != nil {
		return err
	}
	accuracy, err := cfg.accuracy()
	if err != nil {
		return err
	}
	if cfg.WAV != "" && cfg.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}

	var rec *wavrec.Recorder
	if cfg.WAV != "" {
		rec = wavrec.NewRecorder(maxRecordedEdges)
	}
	feed := newEdgeFeed()
	phase := func(high bool) pulsedthread.PhaseFunc {
		return func(any) {
			if rec != nil {
				if high {
					rec.High(nil)
				} else {
					rec.Low(nil)
				}
			}
			if !cfg.Quiet {
				feed.send(high)
			}
		}
	}

	engine, err := pulsedthread.NewFromTiming(
		timing,
		nil, nil,
		phase(false), phase(true),
		accuracy,
		pulsedthread.WithLogger(logger),
		pulsedthread.WithPriority(cfg.Priority),
		pulsedthread.WithTurnaround(cfg.Turnaround),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str("timing", timing.String()).
		Str("mode", timing.Mode().String()).
		Str("accuracy", accuracy.String()).
		Log("pulsectl: engine ready")

	ctx := cmd.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if cfg.Quiet {
			return nil
		}
		return newEdgePrinter(cmd.OutOrStdout(), noColor).run(feed, done)
	})
	g.Go(func() error {
		defer close(done)
		// closed before done, so every edge reaches the feed first
		return errors.Join(drive(gctx, engine, cfg.Runs, logger), engine.Close())
	})
	err = g.Wait()

	if dropped := feed.dropped.Load(); dropped != 0 {
		logger.Warning().
			Uint64("dropped", dropped).
			Log("pulsectl: printer fell behind, edges not printed")
	}

	if rec != nil {
		err = errors.Join(err, writeWAV(cfg.WAV, rec, cfg.SampleRate, logger))
	}

	return err
}

// drive performs the runs, or runs the infinite train until ctx is done
func drive(ctx context.Context, engine *pulsedthread.Engine, runs uint32, logger *logiface.Logger[logiface.Event]) error {
	if engine.Mode() == pulsedthread.ModeInfinite {
		if err := engine.StartTrain(); err != nil {
			return err
		}
		<-ctx.Done()
		logger.Info().
			Err(context.Cause(ctx)).
			Log("pulsectl: stopping train")
		// the current period completes within Close
		return engine.StopTrain()
	}

	if err := engine.RunN(runs); err != nil {
		return err
	}
	if err := engine.WaitIdle(ctx); err != nil {
		return fmt.Errorf("interrupted with %d runs pending: %w", engine.Busy(), err)
	}
	logger.Info().
		Uint64("runs", uint64(runs)).
		Log("pulsectl: runs complete")
	return nil
}

func writeWAV(path string, rec *wavrec.Recorder, sampleRate int, logger *logiface.Logger[logiface.Event]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rec.WriteWAV(f, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info().
		Str("path", path).
		Int("edges", len(rec.Edges())).
		Int("dropped", rec.Dropped()).
		Log("pulsectl: wrote wav")
	return nil
}
