package credentials

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFuncSource_Nil(t *testing.T) {
	var s FuncSource

	if got := s.Current(); got != "" {
		t.Errorf("Current = %q, want empty", got)
	}
	tok, err := s.Refresh(context.Background())
	if err != nil || tok != "" {
		t.Errorf("Refresh = (%q, %v), want empty, nil", tok, err)
	}
}

func TestStaticSource(t *testing.T) {
	s := NewStaticSource("tok-1")

	if got := s.Current(); got != "tok-1" {
		t.Errorf("Current = %q, want tok-1", got)
	}

	s.Set("tok-2")
	tok, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if tok != "tok-2" {
		t.Errorf("Refresh = %q, want tok-2", tok)
	}
}

func TestRotator_SignalsOnChange(t *testing.T) {
	source := NewStaticSource("fresh")

	var stale atomic.Int32
	r := NewRotator(source, 10*time.Millisecond,
		func() string { return "bound" },
		func() { stale.Add(1) },
		nil,
	)

	r.Start(context.Background())
	defer r.Stop()

	deadline := time.After(time.Second)
	for stale.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for stale signal")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRotator_QuietWhenUnchanged(t *testing.T) {
	source := NewStaticSource("same")

	var stale atomic.Int32
	r := NewRotator(source, 5*time.Millisecond,
		func() string { return "same" },
		func() { stale.Add(1) },
		nil,
	)

	r.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	if n := stale.Load(); n != 0 {
		t.Errorf("stale signalled %d times, want 0", n)
	}
}

func TestRotator_RefreshError(t *testing.T) {
	source := FuncSource{
		CurrentFunc: func() string { return "bound" },
		RefreshFunc: func(context.Context) (string, error) {
			return "", errors.New("network down")
		},
	}

	var stale atomic.Int32
	r := NewRotator(source, 5*time.Millisecond,
		func() string { return "bound" },
		func() { stale.Add(1) },
		nil,
	)

	r.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	if n := stale.Load(); n != 0 {
		t.Errorf("stale signalled %d times after errors, want 0", n)
	}
}

func TestRotator_StopIdempotent(t *testing.T) {
	r := NewRotator(NewStaticSource("t"), time.Millisecond,
		func() string { return "t" },
		func() {},
		nil,
	)

	r.Start(context.Background())
	r.Stop()
	r.Stop() // no panic, no hang
}
