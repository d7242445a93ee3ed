package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/go-pulsedthread"
	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseLogLevel(t *testing.T) {
	for s, want := range map[string]logiface.Level{
		"warning":  logiface.LevelWarning,
		" INFO ":   logiface.LevelInformational,
		"trace":    logiface.LevelTrace,
		"disabled": logiface.LevelDisabled,
		"err":      logiface.LevelError,
	} {
		level, err := parseLogLevel(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, level, s)
	}
	_, err := parseLogLevel("loud")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "pulse.toml", `
accuracy = "spin"
delay = 2000
duration = 500
pulses = 4
runs = 3
timeout = "2s"
turnaround = "100us"
wav = "out.wav"
`)
	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "spin", cfg.Accuracy)
	assert.Equal(t, uint32(2000), cfg.Delay)
	assert.Equal(t, uint32(500), cfg.Duration)
	assert.Equal(t, uint32(4), cfg.Pulses)
	assert.Equal(t, uint32(3), cfg.Runs)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 100*time.Microsecond, cfg.Turnaround)
	assert.Equal(t, "out.wav", cfg.WAV)
	assert.Equal(t, 44100, cfg.SampleRate, `default retained`)
	assert.Equal(t, 0.5, cfg.DutyCycle, `default retained`)

	accuracy, err := cfg.accuracy()
	require.NoError(t, err)
	assert.Equal(t, pulsedthread.AccuracySleepAndSpin, accuracy)

	timing, err := cfg.timing()
	require.NoError(t, err)
	assert.Equal(t, pulsedthread.ModeTrain, timing.Mode())
	assert.Equal(t, uint64(2500), timing.Period())
}

func TestLoadConfig_invalid(t *testing.T) {
	_, err := loadConfig(writeFile(t, "unknown.toml", "delay = 1\nspeed = 11\n"))
	assert.ErrorContains(t, err, "unknown keys: speed")

	_, err = loadConfig(writeFile(t, "syntax.toml", "delay = \n"))
	assert.ErrorContains(t, err, "failed to parse TOML")

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestConvert_frequencyForm(t *testing.T) {
	stdout, _, err := execute(t, "convert", "--freq", "50", "--duty", "0.2", "--train", "0.1")
	require.NoError(t, err)
	for _, line := range []string{
		"mode:      train",
		"delay:     16000us",
		"duration:  4000us",
		"pulses:    5",
		"period:    20000us",
		"frequency: 50Hz",
		"duty:      0.2",
		"train:     0.1s",
	} {
		assert.Contains(t, stdout, line+"\n")
	}
}

func TestConvert_flagsOverrideFile(t *testing.T) {
	path := writeFile(t, "pulse.toml", "delay = 1000\nduration = 1000\npulses = 0\n")

	stdout, _, err := execute(t, "convert", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "mode:      infinite\n")
	assert.Contains(t, stdout, "frequency: 500Hz\n")

	stdout, _, err = execute(t, "convert", "--config", path, "--duration", "3000", "--pulses", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mode:      pulse\n")
	assert.Contains(t, stdout, "delay:     1000us\n")
	assert.Contains(t, stdout, "duration:  3000us\n")
	assert.Contains(t, stdout, "duty:      0.75\n")
}

func TestConvert_invalid(t *testing.T) {
	_, stderr, err := execute(t, "convert")
	assert.ErrorIs(t, err, pulsedthread.ErrInvalidDuration)
	assert.Contains(t, stderr, "Error:")

	_, _, err = execute(t, "convert", "--freq", "10", "--duty", "2")
	assert.ErrorIs(t, err, pulsedthread.ErrInvalidDutyCycle)
}

func TestRun_finite(t *testing.T) {
	wav := filepath.Join(t.TempDir(), "out.wav")
	stdout, stderr, err := execute(t,
		"run",
		"--delay", "1000", "--duration", "1000", "--pulses", "3",
		"--runs", "2",
		"--accuracy", "adaptive",
		"--no-color",
		"--wav", wav,
		"--sample-rate", "8000",
		"--log-level", "info",
	)
	require.NoError(t, err, stderr)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 12)
	for i, line := range lines {
		if i%2 == 0 {
			assert.Contains(t, line, "HIGH", i)
		} else {
			assert.Contains(t, line, "LOW", i)
		}
	}
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[11]), "12 "))

	assert.Contains(t, stderr, "pulsectl: engine ready")
	assert.Contains(t, stderr, "pulsectl: runs complete")
	assert.Contains(t, stderr, "pulsectl: wrote wav")

	info, err := os.Stat(wav)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44), `more than the header`)
}

func TestRun_infiniteUntilTimeout(t *testing.T) {
	start := time.Now()
	stdout, stderr, err := execute(t,
		"run",
		"--freq", "500", "--duty", "0.5", "--train", "0",
		"--timeout", "50ms",
		"--quiet",
	)
	require.NoError(t, err, stderr)
	assert.Empty(t, stdout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_invalid(t *testing.T) {
	_, _, err := execute(t, "run", "--duration", "100", "--accuracy", "fast")
	assert.ErrorIs(t, err, pulsedthread.ErrInvalidOption)

	_, _, err = execute(t, "run", "--duration", "100", "--log-level", "loud")
	assert.ErrorContains(t, err, "unknown log level")

	_, _, err = execute(t, "run", "--duration", "100", "--priority", "200")
	assert.ErrorIs(t, err, pulsedthread.ErrInvalidOption)

	_, _, err = execute(t, "run", "extra")
	assert.Error(t, err)
}
