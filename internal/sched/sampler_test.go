package sched

import (
	"math/rand"
	"testing"
)

func testRNG() *rand.Rand { return rand.New(rand.NewSource(1)) }

func TestSampleTightNucleusIsArgmax(t *testing.T) {
	// TopP small enough keeps only the most likely token.
	s := Sampler{TopP: 0.01}
	logits := []float32{0, 1, 5, 2}
	for i := 0; i < 10; i++ {
		if got := s.Sample(logits, nil, testRNG()); got != 2 {
			t.Fatalf("sample = %d, want 2", got)
		}
	}
}

func TestSampleRespectsPenalties(t *testing.T) {
	s := Sampler{TopP: 0.01, PresencePenalty: 10}
	logits := []float32{0, 5, 4.9}
	// token 1 was generated before, the penalty pushes it below token 2
	occ := map[int]int{1: 1}
	if got := s.Sample(logits, occ, testRNG()); got != 2 {
		t.Fatalf("sample = %d, want 2", got)
	}
}

func TestSampleFrequencyPenaltyScalesWithCount(t *testing.T) {
	s := Sampler{TopP: 0.01, FrequencyPenalty: 2}
	logits := []float32{0, 5, 2}
	occ := map[int]int{1: 3} // 5 - 3*2 = -1 < 2
	if got := s.Sample(logits, occ, testRNG()); got != 2 {
		t.Fatalf("sample = %d, want 2", got)
	}
}

func TestSampleDefaultsNeutral(t *testing.T) {
	// Unset sampler fields must not panic and must return a valid id.
	var s Sampler
	logits := []float32{1, 1, 1, 1}
	got := s.Sample(logits, nil, testRNG())
	if got < 0 || got >= len(logits) {
		t.Fatalf("sample out of range: %d", got)
	}
}

func TestSampleCoversFullNucleus(t *testing.T) {
	// With TopP = 1 every token stays reachable.
	s := Sampler{TopP: 1, Temperature: 1}
	logits := []float32{0, 0.1}
	seen := map[int]bool{}
	rng := testRNG()
	for i := 0; i < 200; i++ {
		seen[s.Sample(logits, nil, rng)] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("expected both tokens sampled, got %v", seen)
	}
}
