package pulsedthread

import (
	"math"
	"testing"
)

func TestCommand_flagLayout(t *testing.T) {
	if MaxPending&flagMask != 0 {
		t.Fatal(`count region overlaps flags`)
	}
	if MaxPending+1 != FlagDelay {
		t.Fatal(`count region does not end at the lowest flag`)
	}
	if FlagDelay&FlagDuration != 0 || FlagDuration&FlagCustom != 0 {
		t.Fatal(`flags overlap`)
	}
}

func TestCommand_add_saturates(t *testing.T) {
	var c command
	c.flags = FlagDelay | FlagCustom
	for i := 0; i < 10; i++ {
		c.add(math.MaxUint32 / 4)
		if c.count > MaxPending {
			t.Fatalf(`count %d exceeds max`, c.count)
		}
		if c.word()&flagMask != FlagDelay|FlagCustom {
			t.Fatalf(`flags corrupted: %#x`, c.word())
		}
	}
	if c.count != MaxPending {
		t.Fatalf(`expected saturation, got %d`, c.count)
	}
	c.add(1)
	if c.count != MaxPending {
		t.Fatal(c.count)
	}

	c = command{count: MaxPending - 2}
	c.add(1)
	if c.count != MaxPending-1 {
		t.Fatal(c.count)
	}
	c.add(math.MaxUint32)
	if c.count != MaxPending {
		t.Fatal(c.count)
	}
}

func TestCommand_adjust(t *testing.T) {
	for _, tc := range [...]struct {
		start uint32
		delta int64
		want  uint32
	}{
		{0, 5, 5},
		{5, -3, 2},
		{5, -6, 0},
		{0, -1, 0},
		{0, math.MinInt64, 0},
		{1, math.MaxInt64, MaxPending},
		{MaxPending, 1, MaxPending},
		{MaxPending, -int64(MaxPending), 0},
	} {
		c := command{count: tc.start, flags: FlagDuration}
		c.adjust(tc.delta)
		if c.count != tc.want {
			t.Errorf(`adjust(%d) from %d = %d, want %d`, tc.delta, tc.start, c.count, tc.want)
		}
		if c.flags != FlagDuration {
			t.Errorf(`flags changed: %#x`, c.flags)
		}
	}
}

func TestCommand_collapse(t *testing.T) {
	for start, want := range map[uint32]uint32{0: 0, 1: 1, 2: 1, MaxPending: 1} {
		c := command{count: start}
		c.collapse()
		if c.count != want {
			t.Errorf(`collapse from %d = %d`, start, c.count)
		}
	}
}

func TestCommand_done(t *testing.T) {
	c := command{count: 1}
	c.done()
	c.done()
	if c.count != 0 {
		t.Fatal(c.count)
	}
	if !c.idle() {
		t.Fatal(`expected idle`)
	}
	c.flags = FlagCustom
	if c.idle() {
		t.Fatal(`expected not idle with a pending flag`)
	}
	if c.word() != FlagCustom {
		t.Fatal(c.word())
	}
}
