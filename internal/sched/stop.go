package sched

import "bytes"

// StopMatcher detects literal stop sequences in decoded output text. It holds
// back any trailing bytes that are a prefix of a configured stop so a match
// split across token or chunk boundaries is never missed and no text past a
// stop is ever emitted. When several stops match at the same position the
// longest wins.
type StopMatcher struct {
	stops  [][]byte
	maxLen int
	buf    []byte
	done   bool
}

// NewStopMatcher builds a matcher for the given stop strings. Empty strings
// are ignored.
func NewStopMatcher(stops []string) *StopMatcher {
	m := &StopMatcher{}
	for _, s := range stops {
		if s == "" {
			continue
		}
		m.stops = append(m.stops, []byte(s))
		if len(s) > m.maxLen {
			m.maxLen = len(s)
		}
	}
	return m
}

// Observe appends newly decoded text and returns the bytes safe to emit.
// stopped is true once a stop sequence matched; the emitted text ends right
// before the match and the matcher ignores all further input.
func (m *StopMatcher) Observe(delta []byte) (emit []byte, stopped bool) {
	if m.done {
		return nil, true
	}
	m.buf = append(m.buf, delta...)
	if len(m.stops) == 0 {
		emit, m.buf = m.buf, nil
		return emit, false
	}

	// Earliest match wins across stops; at the same position the longest wins.
	at, matched := -1, 0
	for _, s := range m.stops {
		i := bytes.Index(m.buf, s)
		if i < 0 {
			continue
		}
		if at < 0 || i < at || (i == at && len(s) > matched) {
			at, matched = i, len(s)
		}
	}
	if at >= 0 {
		emit = m.buf[:at]
		m.buf = nil
		m.done = true
		return emit, true
	}

	// Hold back the longest buffer suffix that is still a proper prefix of
	// some stop; everything before it cannot be part of a future match.
	hold := 0
	for _, s := range m.stops {
		limit := len(s) - 1
		if limit > len(m.buf) {
			limit = len(m.buf)
		}
		for l := limit; l > hold; l-- {
			if bytes.HasSuffix(m.buf, s[:l]) {
				hold = l
				break
			}
		}
	}
	emit = m.buf[:len(m.buf)-hold]
	m.buf = m.buf[len(m.buf)-hold:]
	return emit, false
}

// Flush returns any held-back text. Called when a sequence terminates for a
// reason other than a stop match (length bound, end-of-text token).
func (m *StopMatcher) Flush() []byte {
	out := m.buf
	m.buf = nil
	return out
}
