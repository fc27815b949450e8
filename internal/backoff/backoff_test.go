package backoff

import (
	"testing"
	"time"
)

func TestPolicy_Double(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		prev time.Duration
		want time.Duration
	}{
		{1 * time.Second, 2 * time.Second},
		{2 * time.Second, 4 * time.Second},
		{4 * time.Second, 8 * time.Second},
		{8 * time.Second, 15 * time.Second},  // capped
		{15 * time.Second, 15 * time.Second}, // stays at cap
	}

	for _, tt := range tests {
		if got := p.Double(tt.prev); got != tt.want {
			t.Errorf("Double(%v) = %v, want %v", tt.prev, got, tt.want)
		}
	}
}

func TestPolicy_DoubleSequence(t *testing.T) {
	// After n consecutive failures the base delay is min(Upper, Lower*2^n).
	p := DefaultPolicy()

	delay := p.Reset()
	for n := 1; n <= 10; n++ {
		delay = p.Double(delay)

		want := p.Lower * (1 << n)
		if want > p.Upper {
			want = p.Upper
		}
		if delay != want {
			t.Errorf("after %d failures: delay = %v, want %v", n, delay, want)
		}
	}
}

func TestPolicy_Randomize(t *testing.T) {
	p := DefaultPolicy()
	base := 1 * time.Second
	lo := 800 * time.Millisecond
	hi := 1200 * time.Millisecond

	for i := 0; i < 1000; i++ {
		d := p.Randomize(base)
		if d < lo || d > hi {
			t.Fatalf("Randomize(%v) = %v, want within [%v, %v]", base, d, lo, hi)
		}
	}
}

func TestPolicy_RandomizeFloor(t *testing.T) {
	p := Policy{Lower: 100 * time.Millisecond, Upper: time.Second, Jitter: 0.2}

	for i := 0; i < 100; i++ {
		if d := p.Randomize(100 * time.Millisecond); d < MinWait {
			t.Fatalf("Randomize below floor: %v < %v", d, MinWait)
		}
	}
}

func TestPolicy_RandomizeNoJitter(t *testing.T) {
	p := Policy{Lower: time.Second, Upper: 15 * time.Second}

	if d := p.Randomize(2 * time.Second); d != 2*time.Second {
		t.Errorf("Randomize without jitter = %v, want 2s", d)
	}
}

func TestPolicy_Reset(t *testing.T) {
	p := DefaultPolicy()

	delay := p.Reset()
	for i := 0; i < 5; i++ {
		delay = p.Double(delay)
	}
	if delay == p.Lower {
		t.Fatal("delay did not grow")
	}

	if got := p.Reset(); got != p.Lower {
		t.Errorf("Reset() = %v, want %v", got, p.Lower)
	}
}
