package transport

import (
	"sync"
	"time"
)

// monitor sends keepalive pings on a fixed interval while the connection
// is open. Pings are fire-and-forget; liveness detection is left to the
// socket's own close signal.
type monitor struct {
	interval time.Duration
	send     func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func newMonitor(interval time.Duration, send func()) *monitor {
	return &monitor{interval: interval, send: send}
}

// Start begins the ping loop. Idempotent while running.
func (m *monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil || m.interval <= 0 {
		return
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.loop(m.stop, m.done)
}

// Stop halts the loop and waits for it to exit, so no ping is sent on a
// dead or not-yet-open socket. Idempotent.
func (m *monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	done := m.done
	m.stop = nil
	m.done = nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (m *monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.send()
		}
	}
}
