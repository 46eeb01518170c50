package sched

import (
	"time"

	"github.com/google/uuid"
)

// AdmitParams is one generation request at the admission gate.
type AdmitParams struct {
	// AppID identifies the tenant for accounting; Authorized is the verdict
	// computed by the auth collaborator. The gate only consumes the boolean.
	AppID      string
	Authorized bool

	Prompt    string
	MaxTokens int
	Sampler   Sampler
	Stop      []string
}

// Admit accepts a request when the caller is authorized and a state slot is
// free, otherwise rejects with no side effects. The returned handle is used
// for all subsequent interaction with the sequence.
func (s *Scheduler) Admit(p AdmitParams) (*Handle, error) {
	if !p.Authorized {
		admissionRejects.WithLabelValues("unauthorized").Inc()
		return nil, ErrUnauthorized(p.AppID)
	}
	if s.rt.Executor() == nil {
		admissionRejects.WithLabelValues("not_ready").Inc()
		return nil, ErrNotReady()
	}
	slot, err := s.cache.Acquire()
	if err != nil {
		admissionRejects.WithLabelValues("over_capacity").Inc()
		return nil, ErrOverCapacity()
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if maxTokens > maxTokensCap {
		maxTokens = maxTokensCap
	}
	stops := make([]string, 0, len(s.cfg.Stop)+len(p.Stop))
	stops = append(stops, s.cfg.Stop...)
	stops = append(stops, p.Stop...)

	id := uuid.New()
	seq := &sequence{
		id:          id,
		appID:       p.AppID,
		prompt:      s.tok.Encode(p.Prompt),
		maxTokens:   maxTokens,
		sampler:     p.Sampler,
		occurrences: make(map[int]int),
		stop:        NewStopMatcher(stops),
		slot:        slot,
		status:      StatusQueued,
		enqueued:    time.Now(),
	}
	seq.handle = &Handle{id: id, sch: s, deltas: make(chan string, deltaBufferSize)}

	s.mu.Lock()
	s.seqs[id] = seq
	s.mu.Unlock()
	residentStates.Set(float64(s.cache.Resident()))

	s.log.Debug().
		Str("seq", id.String()).
		Str("app", p.AppID).
		Int("prompt_tokens", len(seq.prompt)).
		Int("max_tokens", maxTokens).
		Msg("admitted")
	s.signal()
	return seq.handle, nil
}

// cancel marks a sequence for cancellation; honored at the next tick boundary.
func (s *Scheduler) cancel(id uuid.UUID) {
	s.mu.Lock()
	seq, ok := s.seqs[id]
	s.mu.Unlock()
	if ok {
		seq.cancelled.Store(true)
		s.signal()
	}
}
