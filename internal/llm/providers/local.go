// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"strings"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/stream"
)

// LocalProvider echoes the last user message. It keeps the service usable
// without upstream credentials.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Name() string {
	return "local"
}

func (l *LocalProvider) reply(req Request) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == chat.RoleUser {
			last = req.Messages[i].Text()
			break
		}
	}
	return "[local-stub] " + strings.TrimSpace(last), nil
}

func (l *LocalProvider) Stream(ctx context.Context, req Request, sink Sink) (Result, error) {
	text, err := l.reply(req)
	if err != nil {
		return Result{}, err
	}
	for _, word := range strings.SplitAfter(text, " ") {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := sink.Text(word); err != nil {
			return Result{}, err
		}
	}
	usage := stream.Usage{CompletionTokens: int64(len(strings.Fields(text)))}
	if err := sink.FinishStep("stop", usage, false); err != nil {
		return Result{}, err
	}
	if err := sink.FinishMessage("stop", usage); err != nil {
		return Result{}, err
	}
	return Result{Text: text, FinishReason: "stop", Usage: usage}, nil
}

func (l *LocalProvider) Complete(ctx context.Context, req Request) (string, error) {
	return l.reply(req)
}
