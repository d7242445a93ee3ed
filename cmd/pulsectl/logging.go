// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

var logLevels = [...]logiface.Level{
	logiface.LevelDisabled,
	logiface.LevelEmergency,
	logiface.LevelAlert,
	logiface.LevelCritical,
	logiface.LevelError,
	logiface.LevelWarning,
	logiface.LevelNotice,
	logiface.LevelInformational,
	logiface.LevelDebug,
	logiface.LevelTrace,
}

// parseLogLevel accepts the names logiface.Level.String returns
func parseLogLevel(s string) (logiface.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, level := range logLevels {
		if level.String() == s {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("unknown log level: %q", s)
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

// loggerFromFlags builds the stderr logger, per --log-level
func loggerFromFlags(cmd *cobra.Command) (*logiface.Logger[logiface.Event], error) {
	name, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	level, err := parseLogLevel(name)
	if err != nil {
		return nil, err
	}
	return newLogger(cmd.ErrOrStderr(), level), nil
}
