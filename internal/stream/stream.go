// File path: internal/stream/stream.go
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Part type codes of the data stream protocol.
const (
	CodeText          = "0"
	CodeData          = "2"
	CodeError         = "3"
	CodeToolCall      = "9"
	CodeToolResult    = "a"
	CodeToolCallStart = "b"
	CodeToolCallDelta = "c"
	CodeFinishMessage = "d"
	CodeFinishStep    = "e"
)

// HeaderDataStream marks a response as a data stream.
const HeaderDataStream = "X-Vercel-AI-Data-Stream"

// Usage is the token usage reported with finish parts.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
}

type toolCall struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type toolCallStart struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
}

type toolCallDelta struct {
	ToolCallID    string `json:"toolCallId"`
	ArgsTextDelta string `json:"argsTextDelta"`
}

type toolResult struct {
	ToolCallID string      `json:"toolCallId"`
	Result     interface{} `json:"result"`
}

type finishStep struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
	IsContinued  bool   `json:"isContinued"`
}

type finishMessage struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// Writer emits data stream parts. It is safe for concurrent use; the first
// write error sticks and is returned by every later call.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	flusher http.Flusher
	err     error
	parts   int
}

// NewWriter prepares w for streaming and writes the status line.
func NewWriter(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set(HeaderDataStream, "v1")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	return &Writer{out: w, flusher: flusher}
}

// NewRawWriter writes parts to out without HTTP headers.
func NewRawWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) write(code string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode stream part %s: %w", code, err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	line := make([]byte, 0, len(code)+len(payload)+2)
	line = append(line, code...)
	line = append(line, ':')
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := w.out.Write(line); err != nil {
		w.err = err
		return err
	}
	w.parts++
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Text streams a text delta. Empty deltas are skipped.
func (w *Writer) Text(delta string) error {
	if delta == "" {
		return nil
	}
	return w.write(CodeText, delta)
}

// Data streams side-channel values as one array part.
func (w *Writer) Data(values ...interface{}) error {
	if values == nil {
		values = []interface{}{}
	}
	return w.write(CodeData, values)
}

// Error streams an error message.
func (w *Writer) Error(message string) error {
	return w.write(CodeError, message)
}

func (w *Writer) ToolCallStart(id, name string) error {
	return w.write(CodeToolCallStart, toolCallStart{ToolCallID: id, ToolName: name})
}

func (w *Writer) ToolCallDelta(id, delta string) error {
	return w.write(CodeToolCallDelta, toolCallDelta{ToolCallID: id, ArgsTextDelta: delta})
}

// ToolCall streams a complete tool call. Invalid JSON args are sent as {}.
func (w *Writer) ToolCall(id, name, args string) error {
	raw := json.RawMessage(args)
	if !json.Valid(raw) {
		raw = json.RawMessage("{}")
	}
	return w.write(CodeToolCall, toolCall{ToolCallID: id, ToolName: name, Args: raw})
}

func (w *Writer) ToolResult(id string, result interface{}) error {
	return w.write(CodeToolResult, toolResult{ToolCallID: id, Result: result})
}

func (w *Writer) FinishStep(reason string, usage Usage, continued bool) error {
	return w.write(CodeFinishStep, finishStep{FinishReason: reason, Usage: usage, IsContinued: continued})
}

func (w *Writer) FinishMessage(reason string, usage Usage) error {
	return w.write(CodeFinishMessage, finishMessage{FinishReason: reason, Usage: usage})
}

// Parts returns how many parts were written.
func (w *Writer) Parts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.parts
}

// Part is one decoded stream line.
type Part struct {
	Code  string
	Value json.RawMessage
}

// Text decodes a text or error part.
func (p Part) Text() (string, error) {
	var s string
	err := json.Unmarshal(p.Value, &s)
	return s, err
}

// ReadParts decodes a data stream body.
func ReadParts(r io.Reader) ([]Part, error) {
	var parts []Part
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		code, value, ok := strings.Cut(line, ":")
		if !ok || code == "" {
			return parts, fmt.Errorf("malformed stream line %q", line)
		}
		if !json.Valid([]byte(value)) {
			return parts, errors.New("stream part " + code + " carries invalid JSON")
		}
		parts = append(parts, Part{Code: code, Value: json.RawMessage(value)})
	}
	return parts, scanner.Err()
}

// CollectText concatenates every text part.
func CollectText(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Code != CodeText {
			continue
		}
		if text, err := part.Text(); err == nil {
			b.WriteString(text)
		}
	}
	return b.String()
}
