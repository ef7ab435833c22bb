// File path: internal/api/stream.go
package api

import (
	"net/http"
	"sync"

	"github.com/nicodishanthj/pentestgpt/internal/stream"
)

// streamSink defers the 200 status until the provider produces its first
// part, so upstream failures can still be answered with a JSON error and the
// upstream status. Side-channel data queued with Data goes out first.
type streamSink struct {
	w  http.ResponseWriter
	r  *http.Request
	mu sync.Mutex

	writer  *stream.Writer
	pending [][]interface{}
}

func newStreamSink(w http.ResponseWriter, r *http.Request) *streamSink {
	return &streamSink{w: w, r: r}
}

// Data queues a data part ahead of the provider output.
func (s *streamSink) Data(values ...interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return s.writer.Data(values...)
	}
	s.pending = append(s.pending, values)
	return nil
}

func (s *streamSink) start() (*stream.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return s.writer, nil
	}
	s.writer = stream.NewWriter(s.w)
	for _, values := range s.pending {
		if err := s.writer.Data(values...); err != nil {
			return s.writer, err
		}
	}
	s.pending = nil
	return s.writer, nil
}

func (s *streamSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

func (s *streamSink) Text(delta string) error {
	if delta == "" {
		return nil
	}
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.Text(delta)
}

func (s *streamSink) ToolCallStart(id, name string) error {
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.ToolCallStart(id, name)
}

func (s *streamSink) ToolCallDelta(id, delta string) error {
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.ToolCallDelta(id, delta)
}

func (s *streamSink) ToolCall(id, name, args string) error {
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.ToolCall(id, name, args)
}

func (s *streamSink) ToolResult(id string, result interface{}) error {
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.ToolResult(id, result)
}

func (s *streamSink) FinishStep(reason string, usage stream.Usage, continued bool) error {
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.FinishStep(reason, usage, continued)
}

func (s *streamSink) FinishMessage(reason string, usage stream.Usage) error {
	w, err := s.start()
	if err != nil {
		return err
	}
	return w.FinishMessage(reason, usage)
}

// Fail reports err as a JSON error when nothing was streamed yet and as an
// error part otherwise.
func (s *streamSink) Fail(err error) {
	if !s.Started() {
		writeError(s.w, s.r, statusOf(err), err)
		return
	}
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()
	_ = w.Error(err.Error())
}

// Finish flushes queued data for streams that produced no parts.
func (s *streamSink) Finish() {
	_, _ = s.start()
}
