package sched

import (
	"rwkvd/internal/runtime"
	"rwkvd/internal/state"
)

// plannedStep describes one sequence's share of the next executor call and the
// bookkeeping to apply if (and only if) that call succeeds for the sequence.
type plannedStep struct {
	seq      *sequence
	input    runtime.StepInput
	consumed int  // prompt tokens consumed by this chunk
	sample   bool // whether to sample from the returned logits
}

// planStep builds the executor input for a selected sequence. Prefill feeds
// the next tokenChunkSize prompt tokens; logits are requested only on the
// final prompt chunk, where the first generated token is sampled. Decode feeds
// exactly the previously sampled token. Mixed prefill/decode batches are fine;
// padding across uneven token counts is the executor's concern.
func planStep(seq *sequence, tokenChunkSize int) plannedStep {
	if seq.prefilling() {
		rest := seq.prompt[seq.promptDone:]
		n := tokenChunkSize
		if n > len(rest) {
			n = len(rest)
		}
		final := seq.promptDone+n == len(seq.prompt)
		return plannedStep{
			seq: seq,
			input: runtime.StepInput{
				State:       seq.slot.State(),
				StateChunks: stateChunks(seq.slot),
				Tokens:      rest[:n],
				Mode:        runtime.ModePrefill,
				WantLogits:  final,
			},
			consumed: n,
			sample:   final,
		}
	}
	return plannedStep{
		seq: seq,
		input: runtime.StepInput{
			State:       seq.slot.State(),
			StateChunks: stateChunks(seq.slot),
			Tokens:      []int{seq.lastToken},
			Mode:        runtime.ModeDecode,
			WantLogits:  true,
		},
		sample: true,
	}
}

// stateChunks exposes the slot's layer-chunk views for incremental upload.
func stateChunks(slot *state.Slot) [][]float32 {
	chunks := make([][]float32, slot.NumChunks())
	for i := range chunks {
		chunks[i] = slot.Chunk(i)
	}
	return chunks
}
