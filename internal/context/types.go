// File path: internal/context/types.go
package context

import (
	"errors"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
)

// Chunk sizes that override the client supplied context length.
const (
	ChunkGPT4o   = 14000
	ChunkMistral = 10000
	ChunkScanner = 4096
	ChunkRAG     = 7500
)

const truncationSuffix = "\n... [output truncated]"

// ErrMessageTooLong is returned when the last user message alone exceeds the
// chunk size. The text is shown to the user verbatim.
var ErrMessageTooLong = errors.New("The message you submitted was too long, please submit something shorter.")

// ErrIncompletePayload is returned when the payload lacks the user message and
// the assistant placeholder that follows it.
var ErrIncompletePayload = errors.New("chat payload needs the last user message and an assistant placeholder")

// Config controls assistant message truncation.
type Config struct {
	MessageSizeLimit int
	MessageSizeKeep  int
}

// DefaultConfig returns the truncation thresholds used when none are set.
func DefaultConfig() Config {
	return Config{
		MessageSizeLimit: 12000,
		MessageSizeKeep:  2000,
	}
}

// Request carries everything a build needs.
type Request struct {
	Payload chat.ChatPayload
	Profile chat.Profile
	Images  []chat.MessageImage
	Plugin  chat.PluginID
	UseRAG  bool
}

// Budget reports how the token budget was spent.
type Budget struct {
	ChunkSize    int `json:"chunkSize"`
	PromptTokens int `json:"promptTokens"`
	UsedTokens   int `json:"usedTokens"`
	Remaining    int `json:"remainingTokens"`
	Kept         int `json:"keptMessages"`
	Evicted      int `json:"evictedMessages"`
	Truncated    int `json:"truncatedMessages"`
}
