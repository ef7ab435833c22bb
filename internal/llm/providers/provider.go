// File path: internal/llm/providers/provider.go
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/stream"
)

// DefaultMaxTokens caps completions when a request leaves MaxTokens unset.
const DefaultMaxTokens = 1024

// ToolFunc runs a server side tool with the raw JSON arguments.
type ToolFunc func(ctx context.Context, args json.RawMessage) (interface{}, error)

// Tool is a function the model may call. Tools without Execute are resolved
// by the client; only the call is streamed.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Execute     ToolFunc
}

type Request struct {
	Model       string
	Messages    []chat.BuiltMessage
	Temperature float64
	MaxTokens   int
	Tools       []Tool
	// Headers are sent with this request only.
	Headers map[string]string
	// IncludeImages keeps image parts; otherwise messages are sent as text.
	IncludeImages bool
}

// Sink receives stream parts. *stream.Writer implements it.
type Sink interface {
	Text(delta string) error
	ToolCallStart(id, name string) error
	ToolCallDelta(id, delta string) error
	ToolCall(id, name, args string) error
	ToolResult(id string, result interface{}) error
	FinishStep(reason string, usage stream.Usage, continued bool) error
	FinishMessage(reason string, usage stream.Usage) error
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Result summarizes a finished stream.
type Result struct {
	Text         string
	FinishReason string
	Usage        stream.Usage
	ToolCalls    []ToolCall
}

type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request, sink Sink) (Result, error)
	Complete(ctx context.Context, req Request) (string, error)
}

// APIError carries the upstream HTTP status of a failed model call.
type APIError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s request failed with status %d", e.Provider, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus returns the status to relay to the caller.
func (e *APIError) HTTPStatus() int {
	if e.Status >= 400 && e.Status < 600 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// ErrNoMessages is returned for requests without messages.
var ErrNoMessages = errors.New("no messages provided")

// finishReason maps upstream finish reasons onto the stream vocabulary.
func finishReason(reason string) string {
	switch reason {
	case "stop":
		return "stop"
	case "length":
		return "length"
	case "tool_calls", "function_call":
		return "tool-calls"
	case "content_filter":
		return "content-filter"
	case "":
		return "unknown"
	default:
		return "other"
	}
}

func findTool(tools []Tool, name string) (Tool, bool) {
	for _, tool := range tools {
		if tool.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}

// runTool streams a finished tool call and, for server side tools, its
// result.
func runTool(ctx context.Context, tools []Tool, call ToolCall, sink Sink) error {
	if err := sink.ToolCall(call.ID, call.Name, call.Arguments); err != nil {
		return err
	}
	tool, ok := findTool(tools, call.Name)
	if !ok || tool.Execute == nil {
		return nil
	}
	result, err := tool.Execute(ctx, json.RawMessage(call.Arguments))
	if err != nil {
		result = map[string]interface{}{"error": err.Error()}
	}
	return sink.ToolResult(call.ID, result)
}
