package pulsedthread

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicksTiming(t *testing.T) {
	timing, err := TicksTiming(600, 400, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(600), timing.Delay())
	assert.Equal(t, uint32(400), timing.Duration())
	assert.Equal(t, uint32(10), timing.PulseCount())
	assert.Equal(t, uint64(1000), timing.Period())
	assert.Equal(t, ModeTrain, timing.Mode())
	assert.InDelta(t, 1000.0, timing.Frequency(), 1e-9)
	assert.InDelta(t, 0.4, timing.DutyCycle(), 1e-9)
	assert.InDelta(t, 0.01, timing.TrainDuration(), 1e-12)

	_, err = TicksTiming(100, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	timing, err = TicksTiming(0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, ModeInfinite, timing.Mode())
	assert.Equal(t, 1.0, timing.DutyCycle())
	assert.Equal(t, 0.0, timing.TrainDuration())
}

func TestTiming_zeroValue(t *testing.T) {
	var timing Timing
	assert.False(t, timing.Valid())
	assert.Equal(t, 0.0, timing.Frequency())
	assert.Equal(t, 0.0, timing.DutyCycle())
}

func TestFrequencyTiming_roundTrip(t *testing.T) {
	for _, tc := range [...]struct {
		hz, duty, train float64
	}{
		{1, 0.5, 10},
		{10, 0.1, 1},
		{100, 0.25, 2.5},
		{333, 0.333, 0.9},
		{1000, 1, 0.005},
		{2500, 0.75, 0},
		{7, 0.01, 100},
		{0.5, 0.5, 60},
		{12345, 0.5, 3},
		{0.001, 0.9, 0},
	} {
		timing, err := FrequencyTiming(tc.hz, tc.duty, tc.train)
		require.NoError(t, err, `%+v`, tc)

		// back to ticks, via the derived view
		again, err := FrequencyTiming(timing.Frequency(), timing.DutyCycle(), timing.TrainDuration())
		require.NoError(t, err, `%+v`, tc)
		assert.Equal(t, timing, again, `%+v`, tc)

		// within a tick of the requested values
		period := 1e6 / tc.hz
		assert.InDelta(t, period*tc.duty, float64(timing.Duration()), 0.5+1e-6, `%+v`, tc)
		assert.InDelta(t, period*(1-tc.duty), float64(timing.Delay()), 0.5+1e-6, `%+v`, tc)
		assert.InDelta(t, tc.hz, timing.Frequency(), tc.hz/(period-1), `%+v`, tc)
		assert.InDelta(t, tc.duty, timing.DutyCycle(), 1.0/period+1e-9, `%+v`, tc)
		assert.InDelta(t, tc.train, timing.TrainDuration(), tc.train/period+1/tc.hz, `%+v`, tc)
	}
}

func TestTicksTiming_roundTrip(t *testing.T) {
	for _, tc := range [...][3]uint32{
		{0, 1, 1},
		{1, 1, 2},
		{999_999, 1, 3},
		{250, 750, 0},
		{1_000_000, 1_000_000, 5},
		{3, 7, 1000},
		{123_456, 654_321, 17},
	} {
		timing, err := TicksTiming(tc[0], tc[1], tc[2])
		require.NoError(t, err)
		again, err := FrequencyTiming(timing.Frequency(), timing.DutyCycle(), timing.TrainDuration())
		require.NoError(t, err)
		assert.Equal(t, timing, again, `%v`, tc)
	}
}

func TestFrequencyTiming_invalid(t *testing.T) {
	for _, tc := range [...]struct {
		hz, duty, train float64
		err             error
	}{
		{0, 0.5, 1, ErrInvalidFrequency},
		{-1, 0.5, 1, ErrInvalidFrequency},
		{math.NaN(), 0.5, 1, ErrInvalidFrequency},
		{math.Inf(1), 0.5, 1, ErrInvalidFrequency},
		{1e-6, 0.5, 1, ErrInvalidFrequency},
		{10, 0, 1, ErrInvalidDutyCycle},
		{10, -0.1, 1, ErrInvalidDutyCycle},
		{10, 1.01, 1, ErrInvalidDutyCycle},
		{10, math.NaN(), 1, ErrInvalidDutyCycle},
		{10, 0.5, -1, ErrInvalidTrainDuration},
		{10, 0.5, math.Inf(1), ErrInvalidTrainDuration},
		{10, 0.5, 1e12, ErrInvalidTrainDuration},
		{1e7, 0.1, 1, ErrInvalidDuration},
	} {
		_, err := FrequencyTiming(tc.hz, tc.duty, tc.train)
		if !errors.Is(err, tc.err) {
			t.Errorf(`FrequencyTiming(%v, %v, %v) = %v, want %v`, tc.hz, tc.duty, tc.train, err, tc.err)
		}
	}
}

func TestRoundTicks(t *testing.T) {
	for _, tc := range [...]struct {
		v    float64
		want uint32
		ok   bool
	}{
		{0, 0, true},
		{0.4, 0, true},
		{0.5, 1, true},
		{1234.6, 1235, true},
		{4294967295, 4294967295, true},
		{4294967295.5, 0, false},
		{-1, 0, false},
		{math.NaN(), 0, false},
		{math.Inf(1), 0, false},
	} {
		got, err := roundTicks(tc.v)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Errorf(`roundTicks(%v) = %d, %v, want %d`, tc.v, got, err, tc.want)
			}
		} else if err == nil {
			t.Errorf(`roundTicks(%v) = %d, want an error`, tc.v, got)
		}
	}
}

func TestFrequencyTiming_shortTrainIsOnePulse(t *testing.T) {
	timing, err := FrequencyTiming(1, 0.5, 0.1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), timing.PulseCount())
	assert.Equal(t, ModePulse, timing.Mode())
}

func TestTiming_WithFrequency(t *testing.T) {
	timing, err := FrequencyTiming(100, 0.25, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(200), timing.PulseCount())

	timing, err = timing.WithFrequency(50)
	require.NoError(t, err)
	assert.Equal(t, uint32(5000), timing.Duration())
	assert.Equal(t, uint32(15000), timing.Delay())
	assert.Equal(t, uint32(100), timing.PulseCount())
	assert.InDelta(t, 2.0, timing.TrainDuration(), 1e-9)
	assert.InDelta(t, 0.25, timing.DutyCycle(), 1e-9)

	before := timing
	_, err = timing.WithFrequency(-5)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
	assert.Equal(t, before, timing)
}

func TestTiming_WithDutyCycle(t *testing.T) {
	timing, err := TicksTiming(500, 500, 0)
	require.NoError(t, err)

	timing, err = timing.WithDutyCycle(0.1)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), timing.Duration())
	assert.Equal(t, uint32(900), timing.Delay())
	assert.Equal(t, ModeInfinite, timing.Mode())

	_, err = timing.WithDutyCycle(0)
	assert.ErrorIs(t, err, ErrInvalidDutyCycle)
}

func TestTiming_WithTrainDuration(t *testing.T) {
	timing, err := TicksTiming(7, 3, 1)
	require.NoError(t, err)

	timing, err = timing.WithTrainDuration(0.001)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), timing.PulseCount())
	assert.Equal(t, uint32(7), timing.Delay())
	assert.Equal(t, uint32(3), timing.Duration())

	timing, err = timing.WithTrainDuration(0)
	require.NoError(t, err)
	assert.Equal(t, ModeInfinite, timing.Mode())

	_, err = timing.WithTrainDuration(-1)
	assert.ErrorIs(t, err, ErrInvalidTrainDuration)
}

func TestTiming_WithDuration(t *testing.T) {
	timing, err := TicksTiming(1, 2, 3)
	require.NoError(t, err)
	same, err := timing.WithDuration(0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Equal(t, timing, same)
}

func TestTiming_modeChange(t *testing.T) {
	infinite, _ := TicksTiming(1, 1, 0)
	pulse, _ := TicksTiming(1, 1, 1)
	train, _ := TicksTiming(1, 1, 9)
	assert.True(t, infinite.modeChange(pulse))
	assert.True(t, train.modeChange(infinite))
	assert.False(t, pulse.modeChange(train))
	assert.False(t, infinite.modeChange(infinite.WithDelay(5)))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "infinite", ModeInfinite.String())
	assert.Equal(t, "pulse", ModePulse.String())
	assert.Equal(t, "train", ModeTrain.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}
