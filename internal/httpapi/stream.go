package httpapi

import (
	"encoding/json"
	"net/http"

	"rwkvd/pkg/types"
)

// sseWriter emits server-sent events with a flush per event.
type sseWriter struct {
	w     http.ResponseWriter
	flush func()
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	s := &sseWriter{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	return s
}

// event writes one JSON payload as an SSE data line.
func (s *sseWriter) event(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.flush()
	return nil
}

// done terminates the stream the way OpenAI-style clients expect.
func (s *sseWriter) done() {
	_, _ = s.w.Write([]byte("data: [DONE]\n\n"))
	s.flush()
}

// delta builds one streaming event payload.
func delta(object, model, text string, reason types.FinishReason) types.StreamDelta {
	return types.StreamDelta{Object: object, Model: model, Delta: text, FinishReason: reason}
}
