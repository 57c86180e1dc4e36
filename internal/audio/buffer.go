package audio

import (
	"sync"
)

// RingBuffer is a bounded, thread-safe FIFO for captured PCM.
// One slot is kept free to tell full from empty, so capacity is size-1 bytes.
type RingBuffer struct {
	mu      sync.Mutex
	buffer  []byte
	size    int
	read    int
	write   int
	dropped int64
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer(size int) *RingBuffer {
	if size < 2 {
		size = 2
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write copies as much of data as fits and returns the number of bytes written.
// Bytes that do not fit are counted as dropped.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if space := rb.space(); n > space {
		rb.dropped += int64(n - space)
		n = space
	}

	// At most two copies: up to the end of the backing array, then from the start
	first := n
	if tail := rb.size - rb.write; first > tail {
		first = tail
	}
	copy(rb.buffer[rb.write:], data[:first])
	copy(rb.buffer, data[first:n])
	rb.write = (rb.write + n) % rb.size

	return n
}

// Read reads up to len(data) bytes and returns the number read
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	return rb.readLocked(data)
}

func (rb *RingBuffer) readLocked(data []byte) int {
	n := len(data)
	if avail := rb.available(); n > avail {
		n = avail
	}

	first := n
	if tail := rb.size - rb.read; first > tail {
		first = tail
	}
	copy(data, rb.buffer[rb.read:rb.read+first])
	copy(data[first:n], rb.buffer)
	rb.read = (rb.read + n) % rb.size

	return n
}

// Drain removes and returns everything currently buffered
func (rb *RingBuffer) Drain() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]byte, rb.available())
	rb.readLocked(out)
	return out
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.available()
}

func (rb *RingBuffer) available() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}

// Space returns the number of bytes available to write
func (rb *RingBuffer) Space() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.space()
}

func (rb *RingBuffer) space() int {
	return rb.size - rb.available() - 1
}

// Dropped returns how many bytes were rejected because the buffer was full
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Clear empties the buffer and resets the drop counter
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.write = 0
	rb.dropped = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.read == rb.write
}

// IsFull returns true if the buffer is full
func (rb *RingBuffer) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.space() == 0
}
