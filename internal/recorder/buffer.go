package recorder

import (
	"sync"

	"github.com/nuniesmith/fks-realtime/internal/channels"
)

// FrameBuffer is a thread-safe ring buffer of received frames that doubles
// its capacity when it reaches 70% full. Senders never block; the flush
// loop drains it in batches.
type FrameBuffer struct {
	mu       sync.Mutex
	buf      []channels.Message
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool

	// Stats
	totalReceived int64
	totalDrained  int64
	resizeCount   int
}

// NewFrameBuffer creates a buffer with the given initial capacity.
func NewFrameBuffer(initialCapacity int) *FrameBuffer {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &FrameBuffer{
		buf:      make([]channels.Message, initialCapacity),
		capacity: initialCapacity,
	}
}

// Send adds a frame to the buffer, growing it when near capacity.
// Returns false if the buffer is closed.
func (b *FrameBuffer) Send(msg channels.Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = msg
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++
	return true
}

// DrainTo removes and returns up to max frames in arrival order.
// max <= 0 drains everything.
func (b *FrameBuffer) DrainTo(max int) []channels.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]channels.Message, n)
	for i := 0; i < n; i++ {
		result[i] = b.buf[b.head]
		b.buf[b.head] = channels.Message{} // clear for GC
		b.head = (b.head + 1) % b.capacity
		b.count--
		b.totalDrained++
	}

	return result
}

// Close closes the buffer. After closing, Send returns false; remaining
// frames stay drainable.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len returns the current number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *FrameBuffer) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Stats returns buffer statistics.
func (b *FrameBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      b.capacity,
		TotalReceived: b.totalReceived,
		TotalDrained:  b.totalDrained,
		ResizeCount:   b.resizeCount,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalDrained  int64
	ResizeCount   int
}

// grow doubles the capacity. Must be called with lock held.
func (b *FrameBuffer) grow() {
	newCapacity := b.capacity * 2
	newBuf := make([]channels.Message, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizeCount++
}
