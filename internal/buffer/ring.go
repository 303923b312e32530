// Package buffer implements the bounded sliding-window frame store.
package buffer

import (
	"sync"

	"github.com/Murasan201/entry-security-cam-pi/internal/domain"
)

// Ring is a fixed-capacity FIFO of frames. Push evicts the oldest frame
// once capacity is reached. The capture loop is the sole writer; Snapshot
// may be called from a persisting goroutine and returns a copy that
// linearizes entirely before or entirely after any concurrent Push.
type Ring struct {
	mu     sync.Mutex
	frames []domain.Frame
	head   int // index of the oldest frame
	size   int
}

// NewRing creates a ring with the given capacity (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{frames: make([]domain.Frame, capacity)}
}

// Push appends a frame, evicting the oldest when full. O(1), never blocks
// beyond the snapshot boundary.
func (r *Ring) Push(f domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := (r.head + r.size) % len(r.frames)
	r.frames[tail] = f
	if r.size == len(r.frames) {
		r.head = (r.head + 1) % len(r.frames)
	} else {
		r.size++
	}
}

// Snapshot returns the current contents in insertion order. The returned
// slice shares no structure with the ring; frames themselves are immutable.
func (r *Ring) Snapshot() []domain.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Frame, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.frames[(r.head+i)%len(r.frames)]
	}
	return out
}

// Resize changes the capacity, keeping only the newest frames when
// shrinking. Called once at startup after device negotiation.
func (r *Ring) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if capacity == len(r.frames) {
		return
	}
	keep := r.size
	if keep > capacity {
		keep = capacity
	}
	frames := make([]domain.Frame, capacity)
	drop := r.size - keep
	for i := 0; i < keep; i++ {
		frames[i] = r.frames[(r.head+drop+i)%len(r.frames)]
	}
	r.frames = frames
	r.head = 0
	r.size = keep
}

// Clear drops all frames; capacity is unchanged. Used by the continuous
// fallback after flushing a segment.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
}

// Len returns the number of buffered frames.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the capacity.
func (r *Ring) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
