package channels

import (
	"log/slog"
	"sync"
	"time"
)

// Message is a routed inbound frame delivered to listeners.
type Message struct {
	// Channel is the routing key, empty for frames without one.
	Channel string
	// Data is the raw frame payload as received from the socket.
	Data []byte
	// ReceivedAt is the local timestamp when the frame was read.
	ReceivedAt time.Time
}

// Listener receives routed messages. Listeners run on the dispatch
// goroutine; a panicking listener is isolated and logged, it never stops
// delivery to the remaining listeners.
type Listener func(msg Message)

// Registry tracks wanted channel subscriptions and their listener sets,
// independent of connection state. A channel with no listeners left is
// removed from the wanted set.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	nextID  uint64
	byChan  map[string]map[uint64]Listener
	globals map[uint64]Listener
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		byChan:  make(map[string]map[uint64]Listener),
		globals: make(map[uint64]Listener),
	}
}

// Add registers a listener under a channel. Returns the listener id and
// whether this made the channel newly wanted.
func (r *Registry) Add(channel string, fn Listener) (id uint64, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byChan[channel]
	if !ok {
		set = make(map[uint64]Listener)
		r.byChan[channel] = set
	}
	r.nextID++
	set[r.nextID] = fn
	return r.nextID, !ok
}

// Remove deletes a listener from a channel. Returns true if the channel
// was dropped from the wanted set as a result.
func (r *Registry) Remove(channel string, id uint64) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.byChan[channel]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.byChan, channel)
		return true
	}
	return false
}

// Drop removes a channel and all of its listeners outright. Returns true
// if the channel was wanted.
func (r *Registry) Drop(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byChan[channel]
	delete(r.byChan, channel)
	return ok
}

// AddGlobal registers a listener for frames without a wanted channel.
func (r *Registry) AddGlobal(fn Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.globals[r.nextID] = fn
	return r.nextID
}

// RemoveGlobal deletes a global listener.
func (r *Registry) RemoveGlobal(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.globals, id)
}

// Wanted returns the channels with at least one listener. The result is a
// fresh slice; order is not defined.
func (r *Registry) Wanted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.byChan))
	for ch := range r.byChan {
		out = append(out, ch)
	}
	return out
}

// Count returns the number of wanted channels.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byChan)
}

// Dispatch routes a message to the channel's listener set, or to the
// global set when no channel listener is registered for the routing key.
func (r *Registry) Dispatch(msg Message) {
	r.mu.Lock()
	var targets []Listener
	if set, ok := r.byChan[msg.Channel]; ok && msg.Channel != "" {
		targets = make([]Listener, 0, len(set))
		for _, fn := range set {
			targets = append(targets, fn)
		}
	} else {
		targets = make([]Listener, 0, len(r.globals))
		for _, fn := range r.globals {
			targets = append(targets, fn)
		}
	}
	r.mu.Unlock()

	for _, fn := range targets {
		r.invoke(fn, msg)
	}
}

// invoke runs a single listener, recovering panics so one misbehaving
// subscriber cannot break delivery to others.
func (r *Registry) invoke(fn Listener, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				"channel", msg.Channel,
				"panic", rec,
			)
		}
	}()
	fn(msg)
}
