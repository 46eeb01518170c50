package sched

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"rwkvd/internal/state"
	"rwkvd/pkg/types"
)

// Status is the lifecycle state of a sequence.
type Status int

const (
	// StatusQueued: admitted, never selected into a runtime batch yet.
	StatusQueued Status = iota
	// StatusActive: included in the current step.
	StatusActive
	// StatusWaiting: stepped before, not selected this tick.
	StatusWaiting
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusActive:
		return "active"
	case StatusWaiting:
		return "waiting"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// sequence is the scheduler's per-request record. All fields except the
// cancel flag are owned by the tick goroutine once the sequence is admitted.
type sequence struct {
	id    uuid.UUID
	appID string

	prompt     []int
	promptDone int
	lastToken  int
	generated  int
	maxTokens  int

	sampler     Sampler
	occurrences map[int]int
	stop        *StopMatcher

	slot   *state.Slot
	status Status

	enqueued time.Time
	lastStep time.Time

	cancelled atomic.Bool

	handle  *Handle
	text    strings.Builder
	pending string
}

// prefilling reports whether prompt tokens remain to be consumed.
func (q *sequence) prefilling() bool { return q.promptDone < len(q.prompt) }

// stepStamp orders sequences for batch selection: the time of the last step,
// or admission time for sequences never stepped.
func (q *sequence) stepStamp() time.Time {
	if q.lastStep.IsZero() {
		return q.enqueued
	}
	return q.lastStep
}

// Result is the final outcome of a finished sequence.
type Result struct {
	Text string
	// Tail is text that was generated but never delivered on Output because
	// the consumer fell behind the delta buffer. Streaming relays append it
	// to their final event; Text always contains it.
	Tail   string
	Reason types.FinishReason
	Err    error
	Usage  types.TokenCounter
}

// Handle is the caller's view of an admitted sequence. All interaction with
// the sequence goes through it; callers never touch the state tensors.
type Handle struct {
	id  uuid.UUID
	sch *Scheduler

	deltas chan string

	mu     sync.Mutex
	result *Result
}

// ID returns the sequence id.
func (h *Handle) ID() uuid.UUID { return h.id }

// Output returns the stream of text deltas. The channel closes when the
// sequence reaches a terminal state; the final outcome is then available from
// Result. The stream is finite and not restartable.
func (h *Handle) Output() <-chan string { return h.deltas }

// Result returns the final outcome once Output has closed, nil before that.
func (h *Handle) Result() *Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Cancel requests cancellation. It takes effect at the next tick boundary,
// never mid-step, and is safe to call from any goroutine and more than once.
func (h *Handle) Cancel() { h.sch.cancel(h.id) }

func (h *Handle) setResult(r Result) {
	h.mu.Lock()
	h.result = &r
	h.mu.Unlock()
}
