package state

import (
	"errors"
	"testing"
)

func TestAcquireUpToCapacity(t *testing.T) {
	c := NewCache(3, 8, 4, 2)
	if c.Capacity() != 3 {
		t.Fatalf("capacity = %d", c.Capacity())
	}
	var slots []*Slot
	for i := 0; i < 3; i++ {
		s, err := c.Acquire()
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		slots = append(slots, s)
	}
	if c.Resident() != 3 {
		t.Fatalf("resident = %d", c.Resident())
	}
	if _, err := c.Acquire(); !errors.Is(err, ErrCacheFull) {
		t.Fatalf("expected ErrCacheFull, got %v", err)
	}
	c.Release(slots[0])
	if c.Resident() != 2 {
		t.Fatalf("resident after release = %d", c.Resident())
	}
	if _, err := c.Acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestReleaseTwiceIsNoop(t *testing.T) {
	c := NewCache(2, 4, 2, 1)
	s, err := c.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	c.Release(s)
	c.Release(s)
	if c.Resident() != 0 {
		t.Fatalf("resident = %d", c.Resident())
	}
	// the freed index must not be handed out twice
	a, _ := c.Acquire()
	b, _ := c.Acquire()
	if a.index == b.index {
		t.Fatalf("same slot index handed out twice")
	}
}

func TestSlotsAreZeroedOnAcquire(t *testing.T) {
	c := NewCache(1, 4, 2, 1)
	s, _ := c.Acquire()
	s.State()[0] = 7
	c.Release(s)
	s2, _ := c.Acquire()
	if s2.State()[0] != 0 {
		t.Fatalf("slot not zeroed on reuse")
	}
}

func TestCommitReplacesWholeState(t *testing.T) {
	c := NewCache(1, 4, 2, 1)
	s, _ := c.Acquire()
	s.Commit([]float32{1, 2, 3, 4})
	st := s.State()
	for i, want := range []float32{1, 2, 3, 4} {
		if st[i] != want {
			t.Fatalf("state[%d] = %v", i, st[i])
		}
	}
}

func TestChunkViewsCoverState(t *testing.T) {
	// 24 layers in chunks of 4 layers -> 6 chunks
	c := NewCache(1, 24, 24, 4)
	s, _ := c.Acquire()
	if s.NumChunks() != 6 {
		t.Fatalf("chunks = %d", s.NumChunks())
	}
	total := 0
	for i := 0; i < s.NumChunks(); i++ {
		total += len(s.Chunk(i))
	}
	if total != 24 {
		t.Fatalf("chunk views cover %d of 24 elements", total)
	}
	if s.Chunk(99) != nil {
		t.Fatalf("out-of-range chunk should be nil")
	}
}

func TestStateChunkSizeLargerThanLayers(t *testing.T) {
	c := NewCache(1, 8, 2, 16)
	s, _ := c.Acquire()
	if s.NumChunks() != 1 {
		t.Fatalf("chunks = %d", s.NumChunks())
	}
	if len(s.Chunk(0)) != 8 {
		t.Fatalf("chunk 0 len = %d", len(s.Chunk(0)))
	}
}
