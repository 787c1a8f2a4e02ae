package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordedTimer struct {
	requested time.Duration
	stopped   bool
}

func swapTimer(t *testing.T, fire bool) *recordedTimer {
	t.Helper()

	original := newTimer
	rec := &recordedTimer{}
	newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
		rec.requested = d
		ch := make(chan time.Time, 1)
		if fire {
			ch <- time.Now()
		}
		return ch, func() bool {
			rec.stopped = true
			return !fire
		}
	}
	t.Cleanup(func() { newTimer = original })
	return rec
}

func TestWaitForReturnsAfterTimer(t *testing.T) {
	rec := swapTimer(t, true)

	if err := WaitFor(context.Background(), 750*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.requested != 750*time.Millisecond {
		t.Fatalf("expected timer of 750ms, got %v", rec.requested)
	}
	if !rec.stopped {
		t.Fatal("expected timer to be released")
	}
}

func TestWaitForSkipsNonPositive(t *testing.T) {
	original := newTimer
	newTimer = func(time.Duration) (<-chan time.Time, func() bool) {
		t.Fatal("timer must not be created")
		return nil, nil
	}
	defer func() { newTimer = original }()

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForStopsTimerOnCancellation(t *testing.T) {
	rec := swapTimer(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !rec.stopped {
		t.Fatal("expected timer to be stopped after cancellation")
	}
}

func TestWaitForHonorsCancellationWithRealTimer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected early return, waited %v", elapsed)
	}
}
