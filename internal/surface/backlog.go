package surface

import "sync"

// Backlog is a fixed-size ring of encoded frames waiting for a thread client
// to connect. When full, the oldest frame is overwritten.
type Backlog struct {
	mu    sync.Mutex
	items [][]byte
	head  int
	count int
}

// NewBacklog creates a backlog holding at most size frames.
func NewBacklog(size int) *Backlog {
	if size <= 0 {
		size = 50
	}
	return &Backlog{items: make([][]byte, size)}
}

// Push appends a frame, dropping the oldest one when full.
func (b *Backlog) Push(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.head + b.count) % len(b.items)
	b.items[idx] = frame
	if b.count == len(b.items) {
		b.head = (b.head + 1) % len(b.items)
		return
	}
	b.count++
}

// Drain returns the buffered frames oldest first and empties the backlog.
func (b *Backlog) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, 0, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.items)
		out = append(out, b.items[idx])
		b.items[idx] = nil
	}
	b.head = 0
	b.count = 0
	return out
}

// Len returns the number of buffered frames.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the maximum number of frames.
func (b *Backlog) Capacity() int {
	return len(b.items)
}
