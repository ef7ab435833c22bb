// File path: internal/rag/question.go
package rag

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
	"github.com/nicodishanthj/pentestgpt/internal/prompt"
)

// historyWindow bounds how many earlier messages feed the generator.
const historyWindow = 10

// Question is a rewritten query plus its atomic sub questions.
type Question struct {
	Standalone string
	Atomic     []string
}

// QuestionRequest describes one standalone question generation.
type QuestionRequest struct {
	Messages     []chat.BuiltMessage
	Target       string
	Model        string
	SystemPrompt string
	Headers      map[string]string
	TopK         int
	// MaxLength caps the target text in runes; zero disables the cap.
	MaxLength int
}

type questionJSON struct {
	StandaloneQuestion string   `json:"standaloneQuestion"`
	Queries            []string `json:"queries"`
	AtomicQuestions    []string `json:"atomicQuestions"`
}

// StandaloneQuestion asks p to fold the chat history into one question. A
// failed or unparsable answer falls back to the raw target.
func StandaloneQuestion(ctx context.Context, p providers.Provider, req QuestionRequest) Question {
	logger := common.LoggerFrom(ctx)
	target := clip(req.Target, req.MaxLength)
	fallback := Question{Standalone: target}

	content := prompt.StandaloneQuestionPrompt(history(req.Messages), target, req.TopK)
	answer, err := p.Complete(ctx, providers.Request{
		Model:       req.Model,
		Temperature: 0,
		MaxTokens:   512,
		Headers:     req.Headers,
		Messages: []chat.BuiltMessage{
			{Role: chat.RoleSystem, Content: req.SystemPrompt},
			{Role: chat.RoleUser, Content: content},
		},
	})
	if err != nil {
		logger.Warn("rag: standalone question failed", "model", req.Model, "error", err)
		return fallback
	}
	q, ok := parseQuestion(answer, req.TopK)
	if !ok {
		logger.Debug("rag: standalone answer not JSON", "model", req.Model)
		return fallback
	}
	return q
}

func parseQuestion(answer string, topK int) (Question, bool) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return Question{}, false
	}
	var raw questionJSON
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raw); err != nil {
		return Question{}, false
	}
	standalone := strings.TrimSpace(raw.StandaloneQuestion)
	if standalone == "" {
		return Question{}, false
	}
	atomic := raw.Queries
	if len(atomic) == 0 {
		atomic = raw.AtomicQuestions
	}
	cleaned := make([]string, 0, len(atomic))
	for _, q := range atomic {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if topK > 0 && len(cleaned) > topK {
		cleaned = cleaned[:topK]
	}
	return Question{Standalone: standalone, Atomic: cleaned}, true
}

// history renders the conversation before the last exchange.
func history(msgs []chat.BuiltMessage) string {
	end := len(msgs) - 2
	if end <= 0 {
		return ""
	}
	var lines []string
	for _, msg := range msgs[:end] {
		if msg.Role == chat.RoleSystem {
			continue
		}
		text := strings.TrimSpace(msg.Text())
		if text == "" {
			continue
		}
		lines = append(lines, string(msg.Role)+": "+text)
	}
	if len(lines) > historyWindow {
		lines = lines[len(lines)-historyWindow:]
	}
	return strings.Join(lines, "\n")
}

func clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
