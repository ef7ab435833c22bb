// File path: internal/tokens/tokens.go
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/nicodishanthj/pentestgpt/internal/common"
)

// DefaultEncoding matches the GPT tokenizer the budget limits were tuned for.
const DefaultEncoding = "cl100k_base"

// The BPE ranks are embedded so counting never reaches the network.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Counter returns the number of tokens in a text.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// Tiktoken counts BPE tokens.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Characters estimates four characters per token.
type Characters struct{}

func (Characters) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

var (
	defaultOnce    sync.Once
	defaultCounter Counter
)

// Default returns the shared tiktoken counter, falling back to the
// character estimate when the encoding cannot be loaded.
func Default() Counter {
	defaultOnce.Do(func() {
		tk, err := NewTiktoken(DefaultEncoding)
		if err != nil {
			common.Logger().Warn("tokens: tiktoken unavailable, estimating by characters", "error", err)
			defaultCounter = Characters{}
			return
		}
		defaultCounter = tk
	})
	return defaultCounter
}
