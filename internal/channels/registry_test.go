package channels

import (
	"sort"
	"testing"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry(nil)

	id1, first := r.Add("ticks:AAPL", func(Message) {})
	if !first {
		t.Error("first Add should report channel newly wanted")
	}

	id2, first := r.Add("ticks:AAPL", func(Message) {})
	if first {
		t.Error("second Add should not report channel newly wanted")
	}

	if last := r.Remove("ticks:AAPL", id1); last {
		t.Error("removing one of two listeners should not drop the channel")
	}
	if last := r.Remove("ticks:AAPL", id2); !last {
		t.Error("removing the final listener should drop the channel")
	}
	if n := r.Count(); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	r := NewRegistry(nil)

	if last := r.Remove("missing", 42); last {
		t.Error("Remove on unknown channel should report false")
	}

	id, _ := r.Add("a", func(Message) {})
	if last := r.Remove("a", id+1); last {
		t.Error("Remove with wrong id should report false")
	}
}

func TestRegistry_Drop(t *testing.T) {
	r := NewRegistry(nil)

	r.Add("a", func(Message) {})
	r.Add("a", func(Message) {})

	if !r.Drop("a") {
		t.Error("Drop should report the channel existed")
	}
	if r.Drop("a") {
		t.Error("second Drop should report false")
	}
	if n := r.Count(); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestRegistry_Wanted(t *testing.T) {
	r := NewRegistry(nil)

	r.Add("ticks:AAPL", func(Message) {})
	r.Add("ticks:AAPL", func(Message) {})
	r.Add("ticks:MSFT", func(Message) {})

	wanted := r.Wanted()
	sort.Strings(wanted)

	if len(wanted) != 2 {
		t.Fatalf("Wanted returned %d channels, want 2", len(wanted))
	}
	if wanted[0] != "ticks:AAPL" || wanted[1] != "ticks:MSFT" {
		t.Errorf("Wanted = %v", wanted)
	}
}

func TestRegistry_DispatchChannel(t *testing.T) {
	r := NewRegistry(nil)

	var gotA, gotB, gotGlobal int
	r.Add("a", func(Message) { gotA++ })
	r.Add("b", func(Message) { gotB++ })
	r.AddGlobal(func(Message) { gotGlobal++ })

	r.Dispatch(Message{Channel: "a", Data: []byte(`{}`)})

	if gotA != 1 {
		t.Errorf("channel a listener called %d times, want 1", gotA)
	}
	if gotB != 0 {
		t.Errorf("channel b listener called %d times, want 0", gotB)
	}
	if gotGlobal != 0 {
		t.Errorf("global listener called %d times, want 0", gotGlobal)
	}
}

func TestRegistry_DispatchGlobalFallback(t *testing.T) {
	r := NewRegistry(nil)

	var gotGlobal int
	r.Add("a", func(Message) { t.Error("channel listener should not fire") })
	r.AddGlobal(func(Message) { gotGlobal++ })

	// Unknown routing key falls through to the global set.
	r.Dispatch(Message{Channel: "other", Data: []byte(`{}`)})
	// No routing key at all does too.
	r.Dispatch(Message{Data: []byte(`not json`)})

	if gotGlobal != 2 {
		t.Errorf("global listener called %d times, want 2", gotGlobal)
	}
}

func TestRegistry_ListenerIsolation(t *testing.T) {
	r := NewRegistry(nil)

	var survived, other int
	r.Add("x", func(Message) { panic("listener bug") })
	r.Add("x", func(Message) { survived++ })
	r.Add("y", func(Message) { other++ })

	r.Dispatch(Message{Channel: "x"})
	r.Dispatch(Message{Channel: "y"})

	if survived != 1 {
		t.Errorf("second listener on x called %d times, want 1", survived)
	}
	if other != 1 {
		t.Errorf("listener on y called %d times, want 1", other)
	}
}

func TestRegistry_RemoveGlobal(t *testing.T) {
	r := NewRegistry(nil)

	var got int
	id := r.AddGlobal(func(Message) { got++ })
	r.RemoveGlobal(id)

	r.Dispatch(Message{Data: []byte(`{}`)})

	if got != 0 {
		t.Errorf("removed global listener called %d times, want 0", got)
	}
}
