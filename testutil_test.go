package pulsedthread

import (
	"bytes"
	"io"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// recorder provides phase and end callbacks, recording what was called
type recorder struct {
	// called after recording each high, with the number of highs so far
	onHigh func(n int)
	highs  []time.Time
	events []string
	mu     sync.Mutex
	lows   int
	ends   int
}

func (x *recorder) high(any) {
	x.mu.Lock()
	x.highs = append(x.highs, time.Now())
	x.events = append(x.events, `high`)
	n, fn := len(x.highs), x.onHigh
	x.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

func (x *recorder) low(any) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.lows++
	x.events = append(x.events, `low`)
}

func (x *recorder) end(any, *TaskState) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.ends++
	x.events = append(x.events, `end`)
}

func (x *recorder) counts() (highs, lows, ends int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.highs), x.lows, x.ends
}

func (x *recorder) highTimes() []time.Time {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]time.Time(nil), x.highs...)
}

func (x *recorder) eventLog() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.events...)
}

func newTestEngine(t *testing.T, delay, duration, pulses uint32, rec *recorder, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := New(
		delay, duration, pulses,
		nil, nil,
		rec.low, rec.high,
		AccuracyAdaptive,
		append([]EngineOption{WithPriority(0), WithDrainTimeout(2 * time.Second)}, opts...)...,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// syncBuffer is a bytes.Buffer that is safe for concurrent use
type syncBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.b.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.b.String()
}

func newTestLogger(w io.Writer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
			stumpy.WithTimeField(``),
		),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}

func eventually(t *testing.T, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, condition, 5*time.Second, time.Millisecond, msgAndArgs...)
}

// checkNumGoroutines is deferred (and called) at the start of a test, and
// fails the test if the goroutine count does not return to the baseline
func checkNumGoroutines(timeout time.Duration) func(t *testing.T) {
	before := runtime.NumGoroutine()
	return func(t *testing.T) {
		t.Helper()
		deadline := time.Now().Add(timeout)
		for {
			after := runtime.NumGoroutine()
			if after <= before {
				return
			}
			if time.Now().After(deadline) {
				t.Errorf(`goroutine leak: %d before, %d after`, before, after)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}
