package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerDelaysCallback(t *testing.T) {
	fired := make(chan time.Time, 1)
	interval := 50 * time.Millisecond
	d := New(interval, func() { fired <- time.Now() })

	start := time.Now()
	d.Trigger()

	select {
	case at := <-fired:
		if elapsed := at.Sub(start); elapsed < interval {
			t.Fatalf("callback fired after %s, expected at least %s", elapsed, interval)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestTriggerCoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	d := New(40*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one call, got %d", got)
	}
}

func TestFlushRunsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := New(time.Hour, func() { calls.Add(1) })

	d.Flush()
	if calls.Load() != 0 {
		t.Fatal("flush without pending trigger should not call")
	}

	d.Trigger()
	d.Flush()
	if calls.Load() != 1 {
		t.Fatalf("expected flush to run pending call, got %d", calls.Load())
	}
}

func TestStopCancelsPendingCall(t *testing.T) {
	var calls atomic.Int32
	d := New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()
	time.Sleep(60 * time.Millisecond)

	if calls.Load() != 0 {
		t.Fatalf("expected no calls after stop, got %d", calls.Load())
	}
}
