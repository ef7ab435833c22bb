// File path: internal/context/builder.go
package context

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/telemetry"
	"github.com/nicodishanthj/pentestgpt/internal/prompt"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
)

// Builder turns a chat payload into model input that fits the token budget.
type Builder struct {
	config  Config
	counter tokens.Counter
}

// NewBuilder returns a builder counting with counter, or the shared
// tokenizer when counter is nil.
func NewBuilder(cfg Config, counter tokens.Counter) *Builder {
	defaults := DefaultConfig()
	if cfg.MessageSizeLimit <= 0 {
		cfg.MessageSizeLimit = defaults.MessageSizeLimit
	}
	if cfg.MessageSizeKeep <= 0 {
		cfg.MessageSizeKeep = defaults.MessageSizeKeep
	}
	if counter == nil {
		counter = tokens.Default()
	}
	return &Builder{config: cfg, counter: counter}
}

// ChunkSize returns the token budget for a request. Scanner plugins shrink
// it and RAG overrides everything.
func ChunkSize(settings chat.ChatSettings, plugin chat.PluginID, useRAG bool) int {
	size := settings.ContextLength
	switch settings.Model {
	case chat.ModelGPT4o:
		size = ChunkGPT4o
	case chat.ModelPGPT4, chat.ModelPGPT35:
		size = ChunkMistral
	}
	if plugin.IsScanner() {
		size = ChunkScanner
	}
	if useRAG {
		size = ChunkRAG
	}
	return size
}

// BuildFinalMessages keeps the newest history that fits the budget, prepends
// the system message and expands images and file retrievals.
func (b *Builder) BuildFinalMessages(req Request) ([]chat.BuiltMessage, Budget, error) {
	payload := req.Payload
	settings := payload.ChatSettings
	history := payload.ChatMessages
	if len(history) < 2 {
		return nil, Budget{}, ErrIncompletePayload
	}

	basePrompt := ""
	if settings.IncludeProfileContext {
		basePrompt = prompt.ProfilePrompt(req.Profile.ProfileContext)
	}

	budget := Budget{ChunkSize: ChunkSize(settings, req.Plugin, req.UseRAG)}
	budget.PromptTokens = b.counter.Count(basePrompt)
	budget.UsedTokens = budget.PromptTokens
	remaining := budget.ChunkSize - budget.PromptTokens

	lastUser := history[len(history)-2].Message.Content
	if b.counter.Count(lastUser) > budget.ChunkSize {
		return nil, budget, ErrMessageTooLong
	}

	processed := make([]chat.Message, len(history))
	for i, cm := range history {
		processed[i] = cm.Message
		if i < len(history)-1 && len(cm.FileItems) > 0 {
			processed[i].Content = prompt.FileContextMessage(cm.Message.Content, cm.FileItems)
		}
	}

	kept := make([]chat.Message, 0, len(processed))
	first := len(processed)
	for i := len(processed) - 1; i >= 0; i-- {
		msg := processed[i]
		if msg.Role == chat.RoleAssistant && utf8.RuneCountInString(msg.Content) > b.config.MessageSizeLimit {
			msg.Content = truncateRunes(msg.Content, b.config.MessageSizeKeep) + truncationSuffix
			budget.Truncated++
		}
		n := b.counter.Count(msg.Content)
		if n > remaining {
			break
		}
		remaining -= n
		budget.UsedTokens += n
		kept = append(kept, msg)
		first = i
	}
	reverse(kept)
	budget.Kept = len(kept)
	budget.Evicted = first
	budget.Remaining = remaining

	system := chat.Message{
		ID:             strconv.Itoa(len(processed)),
		Role:           chat.RoleSystem,
		Content:        basePrompt,
		Model:          settings.Model,
		Plugin:         chat.PluginNone,
		SequenceNumber: lastSequence(processed) + 1,
	}

	images := make(map[string]string, len(req.Images))
	for _, img := range req.Images {
		if _, ok := images[img.Path]; !ok {
			images[img.Path] = img.Base64
		}
	}

	final := make([]chat.BuiltMessage, 0, len(kept)+1)
	final = append(final, toBuilt(system, images))
	for _, msg := range kept {
		final = append(final, toBuilt(msg, images))
	}

	if len(payload.MessageFileItems) > 0 && len(final) >= 2 {
		target := &final[len(final)-2]
		query := target.Content
		*target = chat.BuiltMessage{
			Role:    target.Role,
			Content: prompt.FileQueryPrompt(query, prompt.RetrievalText(payload.MessageFileItems)),
		}
	}

	telemetry.RecordPromptBuild(budget.UsedTokens, budget.Evicted, budget.Truncated)
	if budget.Evicted > 0 {
		common.Logger().Debug("context: evicted history", "evicted", budget.Evicted, "kept", budget.Kept, "chunk", budget.ChunkSize)
	}
	return final, budget, nil
}

func toBuilt(msg chat.Message, images map[string]string) chat.BuiltMessage {
	if len(msg.ImagePaths) == 0 {
		return chat.BuiltMessage{Role: msg.Role, Content: msg.Content}
	}
	parts := make([]chat.ContentPart, 0, len(msg.ImagePaths)+1)
	parts = append(parts, chat.ContentPart{Type: chat.PartText, Text: msg.Content})
	for _, path := range msg.ImagePaths {
		url := ""
		if strings.HasPrefix(path, "data") {
			url = path
		} else if encoded, ok := images[path]; ok {
			url = encoded
		}
		parts = append(parts, chat.ContentPart{Type: chat.PartImageURL, ImageURL: &chat.ImageURL{URL: url}})
	}
	return chat.BuiltMessage{Role: msg.Role, Content: msg.Content, Parts: parts}
}

func lastSequence(msgs []chat.Message) int {
	max := 0
	for _, msg := range msgs {
		if msg.SequenceNumber > max {
			max = msg.SequenceNumber
		}
	}
	return max
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func reverse(msgs []chat.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
