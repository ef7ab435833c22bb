// File path: internal/context/builder_test.go
package context

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
)

// wordCounter counts whitespace separated words.
var wordCounter = tokens.CounterFunc(func(s string) int { return len(strings.Fields(s)) })

func msg(role chat.Role, seq int, content string) chat.ChatMessage {
	return chat.ChatMessage{Message: chat.Message{Role: role, SequenceNumber: seq, Content: content}}
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func TestChunkSize(t *testing.T) {
	base := chat.ChatSettings{Model: "custom", ContextLength: 3000}
	assert.Equal(t, 3000, ChunkSize(base, chat.PluginNone, false))
	assert.Equal(t, ChunkGPT4o, ChunkSize(chat.ChatSettings{Model: chat.ModelGPT4o}, chat.PluginNone, false))
	assert.Equal(t, ChunkMistral, ChunkSize(chat.ChatSettings{Model: chat.ModelPGPT35}, chat.PluginNone, false))
	assert.Equal(t, ChunkScanner, ChunkSize(chat.ChatSettings{Model: chat.ModelGPT4o}, chat.PluginNuclei, false))
	assert.Equal(t, ChunkRAG, ChunkSize(base, chat.PluginNuclei, true))
}

func TestBuildFinalMessagesKeepsSuffixThatFits(t *testing.T) {
	b := NewBuilder(DefaultConfig(), wordCounter)
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{Model: "custom", ContextLength: 10},
		ChatMessages: []chat.ChatMessage{
			msg(chat.RoleUser, 1, words(4)),
			msg(chat.RoleAssistant, 2, words(3)),
			msg(chat.RoleUser, 3, words(5)),
			msg(chat.RoleAssistant, 4, ""),
		},
	}

	out, budget, err := b.BuildFinalMessages(Request{Payload: payload})
	require.NoError(t, err)

	require.Len(t, out, 4)
	assert.Equal(t, chat.RoleSystem, out[0].Role)
	assert.Equal(t, "", out[0].Content)
	assert.Equal(t, words(3), out[1].Content)
	assert.Equal(t, words(5), out[2].Content)
	assert.Equal(t, "", out[3].Content)

	assert.Equal(t, 10, budget.ChunkSize)
	assert.Equal(t, 8, budget.UsedTokens)
	assert.Equal(t, 2, budget.Remaining)
	assert.Equal(t, 3, budget.Kept)
	assert.Equal(t, 1, budget.Evicted)
}

func TestBuildFinalMessagesWithGPTTokenizer(t *testing.T) {
	counter, err := tokens.NewTiktoken(tokens.DefaultEncoding)
	require.NoError(t, err)
	b := NewBuilder(DefaultConfig(), counter)
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{Model: "custom", ContextLength: 9},
		ChatMessages: []chat.ChatMessage{
			msg(chat.RoleUser, 1, "hello, world!"),
			msg(chat.RoleAssistant, 2, "hello, world!"),
			msg(chat.RoleUser, 3, "hello world"),
			msg(chat.RoleAssistant, 4, ""),
		},
	}

	out, budget, err := b.BuildFinalMessages(Request{Payload: payload})
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "hello, world!", out[1].Content)
	assert.Equal(t, "hello world", out[2].Content)
	assert.Equal(t, 6, budget.UsedTokens)
	assert.Equal(t, 3, budget.Kept)
	assert.Equal(t, 1, budget.Evicted)
}

func TestBuildFinalMessagesStopsAtFirstMiss(t *testing.T) {
	b := NewBuilder(DefaultConfig(), wordCounter)
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{ContextLength: 10},
		ChatMessages: []chat.ChatMessage{
			msg(chat.RoleUser, 1, "tiny"),
			msg(chat.RoleAssistant, 2, words(8)),
			msg(chat.RoleUser, 3, words(5)),
			msg(chat.RoleAssistant, 4, ""),
		},
	}
	out, budget, err := b.BuildFinalMessages(Request{Payload: payload})
	require.NoError(t, err)
	require.Len(t, out, 3, "older messages behind a miss are evicted even if they fit")
	assert.Equal(t, 2, budget.Evicted)
}

func TestBuildFinalMessagesRejectsLongUserMessage(t *testing.T) {
	b := NewBuilder(DefaultConfig(), wordCounter)
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{ContextLength: 5},
		ChatMessages: []chat.ChatMessage{
			msg(chat.RoleUser, 1, words(6)),
			msg(chat.RoleAssistant, 2, ""),
		},
	}
	_, _, err := b.BuildFinalMessages(Request{Payload: payload})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMessageTooLong))
	assert.Equal(t, "The message you submitted was too long, please submit something shorter.", err.Error())

	_, _, err = b.BuildFinalMessages(Request{Payload: chat.ChatPayload{ChatMessages: payload.ChatMessages[:1]}})
	assert.ErrorIs(t, err, ErrIncompletePayload)
}

func TestBuildFinalMessagesProfilePromptUsesBudget(t *testing.T) {
	b := NewBuilder(DefaultConfig(), wordCounter)
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{ContextLength: 1000, IncludeProfileContext: true},
		ChatMessages: []chat.ChatMessage{
			msg(chat.RoleUser, 7, "hello"),
			msg(chat.RoleAssistant, 8, ""),
		},
	}
	out, budget, err := b.BuildFinalMessages(Request{Payload: payload, Profile: chat.Profile{ProfileContext: "I run a SOC"}})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out[0].Content, "User profile:\nI run a SOC"))
	assert.Greater(t, budget.PromptTokens, 0)
	assert.Equal(t, budget.PromptTokens+1, budget.UsedTokens)

	payload.ChatSettings.IncludeProfileContext = false
	out, _, err = b.BuildFinalMessages(Request{Payload: payload, Profile: chat.Profile{ProfileContext: "I run a SOC"}})
	require.NoError(t, err)
	assert.Equal(t, "", out[0].Content)
}

func TestBuildFinalMessagesTruncatesLongAssistantOutput(t *testing.T) {
	b := NewBuilder(Config{MessageSizeLimit: 20, MessageSizeKeep: 5}, wordCounter)
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{ContextLength: 100},
		ChatMessages: []chat.ChatMessage{
			msg(chat.RoleUser, 1, "scan"),
			msg(chat.RoleAssistant, 2, strings.Repeat("x", 30)),
			msg(chat.RoleUser, 3, strings.Repeat("y", 30)),
			msg(chat.RoleAssistant, 4, ""),
		},
	}
	out, budget, err := b.BuildFinalMessages(Request{Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "xxxxx\n... [output truncated]", out[2].Content)
	assert.Equal(t, strings.Repeat("y", 30), out[3].Content, "user messages are never truncated")
	assert.Equal(t, 1, budget.Truncated)
}

func TestBuildFinalMessagesImagesAndFiles(t *testing.T) {
	b := NewBuilder(DefaultConfig(), wordCounter)
	first := msg(chat.RoleUser, 1, "old question")
	first.FileItems = []chat.FileItem{{Content: "old chunk"}}
	last := msg(chat.RoleUser, 3, "what is shown")
	last.Message.ImagePaths = chat.StringList{"data:image/png;base64,AAA", "user/1.png", "missing.png"}

	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{ContextLength: 1000},
		ChatMessages: []chat.ChatMessage{
			first,
			msg(chat.RoleAssistant, 2, "answer"),
			last,
			msg(chat.RoleAssistant, 9, ""),
		},
		MessageFileItems: []chat.FileItem{{Content: "fresh chunk"}},
	}
	images := []chat.MessageImage{{Path: "user/1.png", Base64: "data:image/png;base64,BBB"}}

	out, _, err := b.BuildFinalMessages(Request{Payload: payload, Images: images})
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, "User Query: \"old question\"\n\nFile Content:\n<BEGIN SOURCE>\nold chunk\n</END SOURCE>", out[1].Content)

	// The wrapped second-to-last message loses its image parts.
	assert.True(t, strings.HasPrefix(out[3].Content, "Assist with the user's query: 'what is shown"))
	assert.Contains(t, out[3].Content, "<BEGIN SOURCE>\nfresh chunk\n</END SOURCE>")
	assert.Empty(t, out[3].Parts)
}

func TestBuildFinalMessagesImageParts(t *testing.T) {
	b := NewBuilder(DefaultConfig(), wordCounter)
	last := msg(chat.RoleUser, 3, "look")
	last.Message.ImagePaths = chat.StringList{"data:image/png;base64,AAA", "user/1.png", "missing.png"}
	payload := chat.ChatPayload{
		ChatSettings: chat.ChatSettings{ContextLength: 1000},
		ChatMessages: []chat.ChatMessage{last, msg(chat.RoleAssistant, 4, "")},
	}
	out, _, err := b.BuildFinalMessages(Request{
		Payload: payload,
		Images:  []chat.MessageImage{{Path: "user/1.png", Base64: "data:image/png;base64,BBB"}},
	})
	require.NoError(t, err)
	parts := out[1].Parts
	require.Len(t, parts, 4)
	assert.Equal(t, chat.ContentPart{Type: chat.PartText, Text: "look"}, parts[0])
	assert.Equal(t, "data:image/png;base64,AAA", parts[1].ImageURL.URL)
	assert.Equal(t, "data:image/png;base64,BBB", parts[2].ImageURL.URL)
	assert.Equal(t, "", parts[3].ImageURL.URL)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "hi", truncateRunes("hi", 5))
	assert.Equal(t, "", truncateRunes("hi", 0))
}
