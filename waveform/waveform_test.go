package waveform

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-pulsedthread"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	table := Cosine(4, 0.5, 0.3)
	require.Len(t, table, 4)
	for i, want := range []float64{0.2, 0.5, 0.8, 0.5} {
		assert.InDelta(t, want, table[i], 1e-12, i)
	}
	assert.Nil(t, Cosine(0, 0.5, 0.3))
	assert.Nil(t, Cosine(-1, 0.5, 0.3))
}

func TestRamp(t *testing.T) {
	table := Ramp(5, 0, 1)
	require.Len(t, table, 5)
	for i, want := range []float64{0, 0.25, 0.5, 0.75, 1} {
		assert.InDelta(t, want, table[i], 1e-12, i)
	}
	assert.Equal(t, Table{0.3}, Ramp(1, 0.3, 0.9))
	assert.Nil(t, Ramp(0, 0, 1))

	down := Ramp(3, 0.9, 0.1)
	assert.Equal(t, 0.1, down[2])
	assert.InDelta(t, 0.5, down[1], 1e-12)
}

type fakeSetter struct {
	mu     sync.Mutex
	values []float64
}

func (x *fakeSetter) SetDutyCycle(v float64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if v <= 0 || v > 1 {
		return errors.New(`out of range`)
	}
	x.values = append(x.values, v)
	return nil
}

func newEngine(t *testing.T, pulses uint32) *pulsedthread.Engine {
	t.Helper()
	e, err := pulsedthread.New(500, 500, pulses, nil, nil, func(any) {}, func(any) {}, pulsedthread.AccuracyAdaptive,
		pulsedthread.WithPriority(0),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestModulator_idleTaskIgnored(t *testing.T) {
	var (
		setter fakeSetter
		task   pulsedthread.TaskState
	)
	m := DutyModulator(&setter, Table{0.5})
	m.End(nil, &task)
	assert.Zero(t, m.Applied())
	assert.Zero(t, m.Index())
	assert.Empty(t, setter.values)
}

func TestDutyModulator_infiniteTrain(t *testing.T) {
	e := newEngine(t, 0)
	table := Table{0.2, 1.5, 0.4, 0, 0.6}
	m := DutyModulator(e, table)
	e.SetEndFunc(m.End, nil)

	require.NoError(t, e.StartTrain())
	require.Eventually(t, func() bool { return m.Applied() >= 9 }, 5*time.Second, time.Millisecond)
	require.NoError(t, e.StopTrain())
	require.Eventually(t, func() bool { return e.Busy() == 0 }, 5*time.Second, time.Millisecond)
	require.NoError(t, e.Close())

	assert.GreaterOrEqual(t, m.Rejected(), uint64(4))
	duty := e.DutyCycle()
	assert.True(t, nearAny(duty, 1e-9, 0.2, 0.4, 0.6), duty)
	assert.InDelta(t, 1000.0, e.Frequency(), 1e-9, `frequency is kept`)
}

func nearAny(v, delta float64, values ...float64) bool {
	for _, want := range values {
		if math.Abs(v-want) <= delta {
			return true
		}
	}
	return false
}

func TestFrequencyModulator_finiteRuns(t *testing.T) {
	e := newEngine(t, 2)
	m := FrequencyModulator(e, Table{250, 500})
	e.SetEndFunc(m.End, nil)

	require.NoError(t, e.Run())
	require.False(t, e.WaitUntilIdle(5*time.Second))
	assert.Equal(t, uint64(1), m.Applied())
	assert.Equal(t, 1, m.Index())
	assert.InDelta(t, 250.0, e.Frequency(), 1e-9)
	assert.InDelta(t, 0.5, e.DutyCycle(), 1e-9)

	require.NoError(t, e.Run())
	require.False(t, e.WaitUntilIdle(5*time.Second))
	assert.Equal(t, uint64(2), m.Applied())
	assert.Equal(t, 0, m.Index(), `wraps`)
	assert.InDelta(t, 500.0, e.Frequency(), 1e-9)

	m.Reset()
	assert.Zero(t, m.Index())
	assert.Zero(t, m.Rejected())
}
