package terminal

import "sync"

// Buffer is a thread-safe, append-only byte buffer with a hard capacity.
// Appends past capacity drop the oldest bytes so the tail is always kept.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	cap  int
}

// NewBuffer creates an empty buffer holding at most capacity bytes
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{cap: capacity}
}

// Append adds p to the end of the buffer, evicting from the front when the
// result would exceed capacity. It never fails.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// A single chunk larger than the buffer only contributes its tail.
	if len(p) >= b.cap {
		b.data = append(b.data[:0], p[len(p)-b.cap:]...)
		return
	}

	if over := len(b.data) + len(p) - b.cap; over > 0 {
		n := copy(b.data, b.data[over:])
		b.data = b.data[:n]
	}
	b.data = append(b.data, p...)
}

// Write implements io.Writer on top of Append.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// Drain atomically takes the current contents and leaves the buffer empty.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.data
	b.data = nil
	if out == nil {
		return []byte{}
	}
	return out
}

// Snapshot returns a copy of the current contents without clearing them.
func (b *Buffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return b.cap
}
