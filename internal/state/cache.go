// Package state owns per-sequence recurrent state. Slots live in one arena
// sized for max_batch sequences; admission fails when the arena is full, and
// in-flight sequences are never evicted.
package state

import (
	"errors"
	"sync"
)

// ErrCacheFull is returned by Acquire when max_batch slots are resident.
var ErrCacheFull = errors.New("state cache full")

// Cache is a fixed-capacity arena of recurrent state slots.
type Cache struct {
	mu        sync.Mutex
	free      []int
	resident  int
	capacity  int
	slab      []float32
	stateSize int
	chunks    int
	chunkLen  int
}

// NewCache builds an arena for capacity sequences. Each slot holds stateSize
// elements covering layers model layers, grouped into layer chunks of
// stateChunkSize layers for incremental transfer.
func NewCache(capacity, stateSize, layers, stateChunkSize int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if layers <= 0 {
		layers = 1
	}
	if stateChunkSize <= 0 || stateChunkSize > layers {
		stateChunkSize = layers
	}
	chunks := (layers + stateChunkSize - 1) / stateChunkSize
	c := &Cache{
		capacity:  capacity,
		slab:      make([]float32, capacity*stateSize),
		stateSize: stateSize,
		chunks:    chunks,
		chunkLen:  (stateSize + chunks - 1) / chunks,
	}
	c.free = make([]int, capacity)
	for i := range c.free {
		c.free[i] = capacity - 1 - i
	}
	return c
}

// Capacity returns the maximum number of resident slots.
func (c *Cache) Capacity() int { return c.capacity }

// Resident returns the number of currently acquired slots.
func (c *Cache) Resident() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resident
}

// Acquire reserves one slot, or fails with ErrCacheFull.
func (c *Cache) Acquire() (*Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.free) == 0 {
		return nil, ErrCacheFull
	}
	idx := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.resident++
	s := &Slot{cache: c, index: idx}
	s.zero()
	return s, nil
}

// Release returns a slot to the arena. Releasing twice is a no-op.
func (c *Cache) Release(s *Slot) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	c.free = append(c.free, s.index)
	c.resident--
}

// Slot is one sequence's recurrent state. Only the scheduler's tick goroutine
// may touch its tensor data (single-writer discipline).
type Slot struct {
	cache    *Cache
	index    int
	released bool
}

// State returns the live state view.
func (s *Slot) State() []float32 {
	off := s.index * s.cache.stateSize
	return s.cache.slab[off : off+s.cache.stateSize]
}

// Commit replaces the slot's state with next. The whole chunk's delta applies
// in one copy; a failed step never calls Commit, so no partial state lands.
func (s *Slot) Commit(next []float32) {
	copy(s.State(), next)
}

// NumChunks returns the layer-chunk count per slot.
func (s *Slot) NumChunks() int { return s.cache.chunks }

// Chunk returns the i-th layer-chunk view for incremental transfer.
func (s *Slot) Chunk(i int) []float32 {
	st := s.State()
	lo := i * s.cache.chunkLen
	if lo >= len(st) {
		return nil
	}
	hi := lo + s.cache.chunkLen
	if hi > len(st) {
		hi = len(st)
	}
	return st[lo:hi]
}

func (s *Slot) zero() {
	st := s.State()
	for i := range st {
		st[i] = 0
	}
}
