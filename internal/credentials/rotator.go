package credentials

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultRotateInterval is how often the rotator checks for a fresh token.
const DefaultRotateInterval = 4 * time.Minute

// Rotator periodically refreshes the token while a connection is up and
// signals the owner when the active connection's token has gone stale.
// Rotation is the only way a renewed token reaches an established
// connection: the token is bound at connect time via the URL, so the owner
// reacts to OnStale by force-closing and letting the reconnect path rebind.
type Rotator struct {
	source   TokenSource
	interval time.Duration
	logger   *slog.Logger

	// Bound returns the token the active connection was established with.
	bound func() string
	// OnStale is invoked when Refresh yields a different token.
	onStale func()

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotator creates a rotator. interval <= 0 uses DefaultRotateInterval.
func NewRotator(source TokenSource, interval time.Duration, bound func() string, onStale func(), logger *slog.Logger) *Rotator {
	if interval <= 0 {
		interval = DefaultRotateInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rotator{
		source:   source,
		interval: interval,
		logger:   logger,
		bound:    bound,
		onStale:  onStale,
	}
}

// Start begins the periodic check. Idempotent while running.
func (r *Rotator) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(runCtx, r.done)
}

// Stop halts the periodic check and waits for the loop to exit.
// Idempotent.
func (r *Rotator) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Rotator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.check(ctx)
		}
	}
}

// check refreshes the token and signals the owner when it changed.
func (r *Rotator) check(ctx context.Context) {
	token, err := r.source.Refresh(ctx)
	if err != nil {
		r.logger.Warn("token refresh failed", "error", err)
		return
	}
	if token == "" || token == r.bound() {
		return
	}

	r.logger.Info("token rotated, forcing reconnect")
	r.onStale()
}
