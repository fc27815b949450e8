package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errFakeClosed = errors.New("fake connection closed")

// fakeConn is a scripted socket driven by the test.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}

	mu         sync.Mutex
	sent       [][]byte
	closeCount int
	closeOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, errFakeClosed
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return errFakeClosed
	default:
	}
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCount++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// deliver injects an inbound frame.
func (c *fakeConn) deliver(s string) {
	c.inbound <- []byte(s)
}

// frames returns all frames written so far.
func (c *fakeConn) frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, b := range c.sent {
		out[i] = string(b)
	}
	return out
}

func (c *fakeConn) closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

// fakeDialer hands out fakeConns, optionally failing the first dials.
type fakeDialer struct {
	mu    sync.Mutex
	fail  int
	conns []*fakeConn
	urls  []string
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail > 0 {
		d.fail--
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// manualScheduler records deferred tasks; the test fires them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
	fired     bool
}

func (s *manualScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	task := &manualTask{delay: d, fn: fn}
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		task.cancelled = true
		s.mu.Unlock()
	}
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) delay(i int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[i].delay
}

// fire runs task i unless it was cancelled.
func (s *manualScheduler) fire(i int) {
	s.mu.Lock()
	task := s.tasks[i]
	run := !task.cancelled && !task.fired
	task.fired = true
	s.mu.Unlock()

	if run {
		task.fn()
	}
}

func (s *manualScheduler) pending(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.tasks[i]
	return !task.cancelled && !task.fired
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", msg)
}
