package timectrl

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2021, time.October, 2, 14, 11, 0, 0, time.UTC)

func TestFrameClockStartUpdatesNow(t *testing.T) {
	tc := NewFrameClock(epoch, 10*time.Second, 200, Accelerated)

	var frames atomic.Uint64
	tc.AddListener(func(tk Tick) { frames.Store(tk.Frame) })

	// 200 fps is a 5ms interval, so 15ms is a budget of three frames.
	<-tc.Start(context.Background(), 15*time.Millisecond)

	if got := frames.Load(); got != 3 {
		t.Fatalf("last frame = %d, want 3", got)
	}
	expected := epoch.Add(30 * time.Second)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
}

func TestFrameClockRealTimeStopsOnCancel(t *testing.T) {
	tc := NewFrameClock(epoch, time.Second, 1000, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan Tick, 1)
	tc.AddListener(func(tk Tick) {
		select {
		case seen <- tk:
		default:
		}
	})
	done := tc.Start(ctx, 0)

	select {
	case tk := <-seen:
		if tk.Frame == 0 {
			t.Fatalf("first tick has frame 0")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no tick delivered")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("clock did not stop after cancel")
	}
}

func TestFrameClockRunReturnsContextError(t *testing.T) {
	tc := NewFrameClock(epoch, time.Second, 0, Accelerated)
	if tc.Interval != time.Second/DefaultFPS {
		t.Fatalf("Interval = %v, want %v", tc.Interval, time.Second/DefaultFPS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var n int
	err := tc.Run(ctx, func(tk Tick) {
		n++
		if tk.Frame == 50 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if n != 50 {
		t.Fatalf("fn called %d times, want 50", n)
	}
	if tc.Frames() != 50 {
		t.Fatalf("Frames() = %d, want 50", tc.Frames())
	}
}

func TestManualTickerStep(t *testing.T) {
	m := NewManualTicker(epoch, 10*time.Second)

	var got []uint64
	remove := m.AddListener(func(tk Tick) { got = append(got, tk.Frame) })

	last := m.Step(3)
	if last.Frame != 3 || !last.SimTime.Equal(epoch.Add(30*time.Second)) {
		t.Fatalf("last tick = %+v", last)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("listener frames = %v, want [1 2 3]", got)
	}

	remove()
	m.Step(2)
	if len(got) != 3 {
		t.Fatalf("removed listener still called: %v", got)
	}
	if !m.Now().Equal(epoch.Add(50 * time.Second)) {
		t.Fatalf("Now() = %v", m.Now())
	}
}

func TestManualTickerAsTickSource(t *testing.T) {
	m := NewManualTicker(epoch, time.Second)
	var src TickSource = m

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	registered := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- src.Run(ctx, func(Tick) { calls.Add(1) })
	}()

	// Wait for Run to register before stepping.
	go func() {
		for {
			m.lmu.Lock()
			n := len(m.listeners)
			m.lmu.Unlock()
			if n > 0 {
				close(registered)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	<-registered

	m.Step(4)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 4", calls.Load())
	}
}
