package riot

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	f.t = f.t.Add(d)
	return nil
}

func newFakeLimiter(windows ...Window) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(windows...)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

// assertWindow fails if more than w.Limit of times fall inside any rolling
// w.Period.
func assertWindow(t *testing.T, times []time.Time, w Window) {
	t.Helper()
	for i := 0; i+w.Limit < len(times); i++ {
		if gap := times[i+w.Limit].Sub(times[i]); gap < w.Period {
			t.Fatalf("requests %d and %d only %v apart, window %d/%v violated",
				i, i+w.Limit, gap, w.Limit, w.Period)
		}
	}
}

func TestLimiter_SustainedWindowNeverExceeded(t *testing.T) {
	w := Window{Limit: 95, Period: 2 * time.Minute}
	l, clock := newFakeLimiter(w)

	var times []time.Time
	for i := 0; i < 400; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		times = append(times, clock.now())
	}

	assertWindow(t, times, w)

	// The first full budget goes out without blocking.
	if !times[94].Equal(times[0]) {
		t.Errorf("expected first 95 requests at the same instant, got %v..%v", times[0], times[94])
	}
	if !times[95].After(times[94]) {
		t.Error("request 96 should have waited for the window to roll")
	}
}

func TestLimiter_BurstAndSustained(t *testing.T) {
	burst := Window{Limit: 3, Period: time.Second}
	sustained := Window{Limit: 5, Period: 10 * time.Second}
	l, clock := newFakeLimiter(burst, sustained)

	var times []time.Time
	for i := 0; i < 40; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
		times = append(times, clock.now())
		// Irregular caller pacing.
		clock.t = clock.t.Add(time.Duration(i%4) * 150 * time.Millisecond)
	}

	assertWindow(t, times, burst)
	assertWindow(t, times, sustained)
}

func TestLimiter_WaitsExactlyUntilOldestAgesOut(t *testing.T) {
	l, clock := newFakeLimiter(Window{Limit: 2, Period: time.Minute})
	ctx := context.Background()

	l.Wait(ctx)
	clock.t = clock.t.Add(10 * time.Second)
	l.Wait(ctx)
	l.Wait(ctx)

	if len(clock.slept) != 1 {
		t.Fatalf("expected one sleep, got %v", clock.slept)
	}
	if clock.slept[0] != 50*time.Second {
		t.Errorf("expected 50s wait, got %v", clock.slept[0])
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(Window{Limit: 1, Period: time.Hour})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly on context expiry")
	}
}

func TestPruneBefore(t *testing.T) {
	base := time.Unix(1000, 0)
	ts := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}

	got := pruneBefore(ts, base.Add(time.Second))
	if len(got) != 1 || !got[0].Equal(base.Add(2*time.Second)) {
		t.Errorf("unexpected prune result: %v", got)
	}
}
