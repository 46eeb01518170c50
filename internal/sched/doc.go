// Package sched admits generation requests and multiplexes them onto the
// model executor. It is structured into small files by concern:
//
//   - admission.go: admission gate and cancellation entry points.
//   - scheduler.go: Scheduler type, tick loop, terminal transitions.
//   - sequence.go: per-request record, lifecycle states, caller-facing Handle.
//   - chunker.go: chunked executor input planning (prefill vs decode).
//   - stop.go: stop-sequence detection over decoded text.
//   - sampler.go: logits-to-token sampling with penalties.
//   - errors.go: admission error types and predicates (IsOverCapacity, ...).
//   - metrics.go: prometheus instrumentation.
//
// Concurrency: one tick goroutine (Run) owns all sequence tensors. Admission,
// cancellation and output streaming happen on caller goroutines and reach the
// tick loop through the sequences map and the wake channel, never by touching
// tensor data. External packages should use Admit, Handle and Stats only.
package sched
