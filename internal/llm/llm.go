// File path: internal/llm/llm.go
package llm

import (
	"strings"
	"sync"

	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/config"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
)

type Provider = providers.Provider

type Request = providers.Request

type Tool = providers.Tool

type Sink = providers.Sink

type Result = providers.Result

type APIError = providers.APIError

// Provider names.
const (
	OpenRouter = "openrouter"
	OpenAI     = "openai"
	Local      = "local"
)

// Registry resolves providers by name and falls back to the local echo
// provider for anything unconfigured.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider), fallback: providers.NewLocalProvider()}
}

// NewFromConfig registers OpenRouter and OpenAI when their keys are set.
func NewFromConfig(cfg config.Config) *Registry {
	logger := common.Logger()
	reg := NewRegistry()
	if key := strings.TrimSpace(cfg.OpenRouter.APIKey); key != "" {
		var order []string
		if first := strings.TrimSpace(cfg.OpenRouter.FirstProvider); first != "" {
			order = []string{first}
		}
		reg.Register(OpenRouter, providers.NewOpenAIProvider(providers.OpenAIConfig{
			Name:          OpenRouter,
			BaseURL:       cfg.OpenRouter.BaseURL,
			APIKey:        key,
			ProviderOrder: order,
			MaxRetries:    1,
		}))
	} else {
		logger.Warn("llm: OPENROUTER_API_KEY not set; openrouter routes use the local provider")
	}
	if key := strings.TrimSpace(cfg.OpenAI.APIKey); key != "" {
		reg.Register(OpenAI, providers.NewOpenAIProvider(providers.OpenAIConfig{
			Name:       OpenAI,
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKey:     key,
			MaxRetries: 1,
		}))
	} else {
		logger.Warn("llm: OPENAI_API_KEY not set; openai routes use the local provider")
	}
	return reg
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(name)] = p
}

// Get returns the named provider or the local fallback.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[strings.ToLower(name)]; ok {
		return p
	}
	return r.fallback
}

// Configured reports whether name has a real provider.
func (r *Registry) Configured(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[strings.ToLower(name)]
	return ok
}
