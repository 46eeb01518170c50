package sched

import (
	"math"
	"math/rand"
	"sort"
)

// Sampler turns head logits into the next token. Penalties follow the usual
// OpenAI shape: presence applies once per token already generated, frequency
// scales with its occurrence count.
type Sampler struct {
	Temperature      float32
	TopP             float32
	PresencePenalty  float32
	FrequencyPenalty float32
}

// normalized returns the sampler with unset fields replaced by neutral values.
func (s Sampler) normalized() Sampler {
	if s.Temperature <= 0 {
		s.Temperature = 1
	}
	if s.TopP <= 0 || s.TopP > 1 {
		s.TopP = 1
	}
	return s
}

// Sample picks a token id from logits. occurrences counts tokens generated so
// far for this sequence; rng is owned by the scheduler tick goroutine.
func (s Sampler) Sample(logits []float32, occurrences map[int]int, rng *rand.Rand) int {
	s = s.normalized()

	penalized := make([]float64, len(logits))
	for i, l := range logits {
		penalized[i] = float64(l)
	}
	for id, n := range occurrences {
		if id >= 0 && id < len(penalized) {
			penalized[id] -= float64(s.PresencePenalty) + float64(n)*float64(s.FrequencyPenalty)
		}
	}

	// Softmax with temperature.
	maxL := math.Inf(-1)
	for _, l := range penalized {
		if l > maxL {
			maxL = l
		}
	}
	probs := make([]float64, len(penalized))
	sum := 0.0
	for i, l := range penalized {
		p := math.Exp((l - maxL) / float64(s.Temperature))
		probs[i] = p
		sum += p
	}
	if sum == 0 {
		return 0
	}
	for i := range probs {
		probs[i] /= sum
	}

	// Nucleus cut: keep the smallest set of tokens whose mass reaches TopP.
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	cut := len(idx)
	acc := 0.0
	for i, id := range idx {
		acc += probs[id]
		if acc >= float64(s.TopP) {
			cut = i + 1
			break
		}
	}
	idx = idx[:cut]

	mass := 0.0
	for _, id := range idx {
		mass += probs[id]
	}
	r := rng.Float64() * mass
	for _, id := range idx {
		r -= probs[id]
		if r <= 0 {
			return id
		}
	}
	return idx[len(idx)-1]
}
