package sched

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rwkvd/internal/runtime"
	"rwkvd/internal/state"
	"rwkvd/internal/tokenizer"
	"rwkvd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxTokens = 256
	maxTokensCap     = 4096
	deltaBufferSize  = 64
	reloadBackoff    = time.Second
)

// Config carries the scheduling limits from the deployment configuration.
type Config struct {
	MaxRuntimeBatch int
	TokenChunkSize  int
	// Stop is the server-wide baseline stop list; request stops add to it.
	Stop []string
}

// Scheduler multiplexes admitted sequences onto the model executor. A single
// tick goroutine owns every sequence's tensors; callers interact through
// handles only.
type Scheduler struct {
	cfg   Config
	rt    *runtime.Manager
	cache *state.Cache
	tok   tokenizer.Tokenizer
	log   zerolog.Logger
	rng   *rand.Rand

	mu   sync.Mutex
	seqs map[uuid.UUID]*sequence
	wake chan struct{}

	startTime time.Time
}

// New constructs a Scheduler over a loaded runtime and a state cache.
func New(cfg Config, rt *runtime.Manager, cache *state.Cache, tok tokenizer.Tokenizer, log zerolog.Logger) *Scheduler {
	if cfg.MaxRuntimeBatch <= 0 {
		cfg.MaxRuntimeBatch = 1
	}
	if cfg.TokenChunkSize <= 0 {
		cfg.TokenChunkSize = 32
	}
	return &Scheduler{
		cfg:       cfg,
		rt:        rt,
		cache:     cache,
		tok:       tok,
		log:       log.With().Str("component", "sched").Logger(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		seqs:      make(map[uuid.UUID]*sequence),
		wake:      make(chan struct{}, 1),
		startTime: time.Now(),
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the tick loop until ctx is done. It is the only goroutine that
// mutates sequence state tensors.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := len(s.seqs) == 0
		s.mu.Unlock()
		if idle {
			select {
			case <-ctx.Done():
				s.drain()
				return nil
			case <-s.wake:
				continue
			}
		}
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		default:
		}
		s.tick()
	}
}

// tick runs one scheduling round: apply cancellations, form a runtime batch
// of the longest-waiting sequences, step it, commit results.
func (s *Scheduler) tick() {
	ticksTotal.Inc()

	s.mu.Lock()
	var cands []*sequence
	for _, seq := range s.seqs {
		if seq.cancelled.Load() {
			s.finalizeLocked(seq, StatusCancelled, types.FinishNull, nil)
			continue
		}
		if seq.status == StatusQueued || seq.status == StatusWaiting {
			cands = append(cands, seq)
		}
	}
	// Longest time since last step first; never-stepped sequences count from
	// admission. Starvation-free: a passed-over sequence only ages.
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].stepStamp().Before(cands[j].stepStamp())
	})
	if len(cands) > s.cfg.MaxRuntimeBatch {
		cands = cands[:s.cfg.MaxRuntimeBatch]
	}
	for _, seq := range cands {
		seq.status = StatusActive
	}
	s.mu.Unlock()

	if len(cands) == 0 {
		return
	}
	runtimeBatchSize.Observe(float64(len(cands)))

	exec := s.rt.Executor()
	if exec == nil {
		// Reload after device loss has not succeeded yet; park the batch.
		s.mu.Lock()
		for _, seq := range cands {
			seq.status = StatusWaiting
		}
		s.mu.Unlock()
		time.Sleep(reloadBackoff)
		return
	}

	plans := make([]plannedStep, len(cands))
	inputs := make([]runtime.StepInput, len(cands))
	for i, seq := range cands {
		plans[i] = planStep(seq, s.cfg.TokenChunkSize)
		inputs[i] = plans[i].input
	}

	outs, err := exec.Step(inputs)
	now := time.Now()
	if err != nil {
		// Batch-fatal: fail every sequence in this runtime batch, then bring
		// the runtime back before further ticks proceed.
		s.log.Error().Err(err).Int("batch", len(cands)).Msg("batch-fatal execution error")
		s.mu.Lock()
		for _, seq := range cands {
			s.finalizeLocked(seq, StatusFailed, types.FinishNull, runtime.ErrDeviceFatal(err))
		}
		s.mu.Unlock()
		if rerr := s.rt.Reload(); rerr != nil {
			s.log.Error().Err(rerr).Msg("reload after device loss failed")
			time.Sleep(reloadBackoff)
		}
		return
	}

	for i := range plans {
		s.apply(&plans[i], outs[i], now)
	}
	residentStates.Set(float64(s.cache.Resident()))
}

// apply commits one sequence's step result. Failures are isolated: they
// terminate this sequence only.
func (s *Scheduler) apply(p *plannedStep, out runtime.StepOutput, now time.Time) {
	seq := p.seq
	seq.lastStep = now

	if out.Err != nil {
		s.log.Warn().Err(out.Err).Str("seq", seq.id.String()).Msg("sequence execution failed")
		s.finalize(seq, StatusFailed, types.FinishNull, out.Err)
		return
	}

	// The whole chunk's state delta lands in one commit; a failed step never
	// gets here, so partial state is impossible.
	seq.slot.Commit(out.State)
	if p.consumed > 0 {
		seq.promptDone += p.consumed
	}
	if !p.sample {
		s.park(seq)
		return
	}

	tok := seq.sampler.Sample(out.Logits, seq.occurrences, s.rng)
	if tok == s.tok.EOS() {
		s.emit(seq, string(seq.stop.Flush()))
		s.finalize(seq, StatusCompleted, types.FinishStop, nil)
		return
	}
	seq.occurrences[tok]++
	seq.generated++
	seq.lastToken = tok
	tokensGenerated.Inc()

	emit, stopped := seq.stop.Observe(s.tok.Decode(tok))
	s.emit(seq, string(emit))
	if stopped {
		s.finalize(seq, StatusCompleted, types.FinishStop, nil)
		return
	}
	if seq.generated >= seq.maxTokens {
		s.emit(seq, string(seq.stop.Flush()))
		s.finalize(seq, StatusCompleted, types.FinishLength, nil)
		return
	}
	s.park(seq)
}

// emit forwards decoded text to the caller. The channel send never blocks the
// tick loop; undelivered text is carried and retried on the next emit.
func (s *Scheduler) emit(seq *sequence, text string) {
	if text == "" && seq.pending == "" {
		return
	}
	seq.text.WriteString(text)
	seq.pending += text
	select {
	case seq.handle.deltas <- seq.pending:
		seq.pending = ""
	default:
	}
}

func (s *Scheduler) park(seq *sequence) {
	s.mu.Lock()
	seq.status = StatusWaiting
	s.mu.Unlock()
}

func (s *Scheduler) finalize(seq *sequence, st Status, reason types.FinishReason, err error) {
	s.mu.Lock()
	s.finalizeLocked(seq, st, reason, err)
	s.mu.Unlock()
}

// finalizeLocked applies a terminal transition: frees the state slot, records
// the outcome on the handle, and closes the delta stream. Callers hold s.mu.
func (s *Scheduler) finalizeLocked(seq *sequence, st Status, reason types.FinishReason, err error) {
	if seq.status.terminal() {
		return
	}
	seq.status = st
	delete(s.seqs, seq.id)
	s.cache.Release(seq.slot)

	if seq.pending != "" {
		select {
		case seq.handle.deltas <- seq.pending:
			seq.pending = ""
		default:
		}
	}
	seq.handle.setResult(Result{
		Text:   seq.text.String(),
		Tail:   seq.pending,
		Reason: reason,
		Err:    err,
		Usage: types.TokenCounter{
			PromptTokens:     len(seq.prompt),
			CompletionTokens: seq.generated,
			TotalTokens:      len(seq.prompt) + seq.generated,
		},
	})
	close(seq.handle.deltas)
	sequencesTotal.WithLabelValues(st.String()).Inc()
	residentStates.Set(float64(s.cache.Resident()))

	ev := s.log.Debug()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Str("seq", seq.id.String()).
		Str("outcome", st.String()).
		Int("generated", seq.generated).
		Msg("sequence finished")
}

// drain cancels every in-flight sequence on shutdown.
func (s *Scheduler) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seq := range s.seqs {
		s.finalizeLocked(seq, StatusCancelled, types.FinishNull, nil)
	}
}

// Stats is a point-in-time view for /status.
type Stats struct {
	Resident int
	Queued   int
	Uptime   time.Duration
}

// Stats reports scheduler occupancy.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	queued := 0
	for _, seq := range s.seqs {
		if seq.status == StatusQueued {
			queued++
		}
	}
	s.mu.Unlock()
	return Stats{
		Resident: s.cache.Resident(),
		Queued:   queued,
		Uptime:   time.Since(s.startTime),
	}
}
