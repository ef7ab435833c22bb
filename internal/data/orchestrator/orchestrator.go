// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/config"
	ctxbuilder "github.com/nicodishanthj/pentestgpt/internal/context"
	"github.com/nicodishanthj/pentestgpt/internal/files"
	"github.com/nicodishanthj/pentestgpt/internal/llm"
	"github.com/nicodishanthj/pentestgpt/internal/prompt"
	"github.com/nicodishanthj/pentestgpt/internal/rag"
	"github.com/nicodishanthj/pentestgpt/internal/ratelimit"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
	"github.com/nicodishanthj/pentestgpt/internal/tools"
)

type closer interface {
	Close() error
}

// Orchestrator wires together the store, providers and tools that back the
// chat server and exposes accessors for the API layer.
type Orchestrator struct {
	app config.Config
	cfg Config

	store    *sqlite.Store
	limiter  *ratelimit.Limiter
	registry *llm.Registry
	rag      *rag.Client
	browser  *tools.Browser
	executor tools.Executor
	builder  *ctxbuilder.Builder
	files    *files.Processor
	counter  tokens.Counter
	now      func() time.Time

	closers []closer
}

// New constructs an orchestrator from the application configuration and
// optional overrides.
func New(ctx context.Context, app config.Config, cfg Config, opts ...Option) (*Orchestrator, error) {
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	logger := common.LoggerFrom(ctx)

	cfg = applyDefaults(cfg)
	orch := &Orchestrator{app: app, cfg: cfg, now: settings.now}
	if orch.now == nil {
		orch.now = time.Now
	}
	orch.closers = append(orch.closers, settings.closers...)
	if err := cfg.validate(); err != nil {
		orch.Close()
		return nil, err
	}

	store := settings.store
	if store == nil {
		opened, err := sqlite.Open(app.SQLitePath)
		if err != nil {
			orch.Close()
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		store = opened
		orch.closers = append(orch.closers, opened)
	}
	orch.store = store

	counter := settings.counter
	if counter == nil {
		if cfg.TokenEncoding == tokens.DefaultEncoding {
			counter = tokens.Default()
		} else if tk, err := tokens.NewTiktoken(cfg.TokenEncoding); err == nil {
			counter = tk
		} else {
			logger.Warn("orchestrator: token encoding unavailable, using default", "encoding", cfg.TokenEncoding, "error", err)
			counter = tokens.Default()
		}
	}
	orch.counter = counter

	httpClient := settings.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	orch.registry = llm.NewFromConfig(app)
	for name, p := range settings.providers {
		orch.registry.Register(name, p)
	}
	orch.limiter = ratelimit.New(store.DB(), app.RateLimit)
	orch.rag = rag.NewClient(app.HackerRAG, httpClient)
	orch.browser = tools.NewBrowser(app.Browser, settings.httpClient)
	orch.executor = settings.executor
	if orch.executor == nil {
		orch.executor = tools.NewExecutor(app.CodeInterpreter)
	}
	orch.builder = ctxbuilder.NewBuilder(ctxbuilder.Config{
		MessageSizeLimit: app.MessageSizeLimit,
		MessageSizeKeep:  app.MessageSizeKeep,
	}, counter)
	orch.files = files.NewProcessor(store, counter, cfg.ChunkSize, cfg.ChunkOverlap)

	logger.Info("orchestrator: ready",
		"openrouter", orch.registry.Configured(llm.OpenRouter),
		"openai", orch.registry.Configured(llm.OpenAI),
		"rag", orch.rag.Ready(),
		"code_interpreter", app.CodeInterpreter.Mode)
	return orch, nil
}

// Config returns the application configuration.
func (o *Orchestrator) Config() config.Config {
	if o == nil {
		return config.Default()
	}
	return o.app
}

func (o *Orchestrator) Store() *sqlite.Store {
	if o == nil {
		return nil
	}
	return o.store
}

func (o *Orchestrator) Limiter() *ratelimit.Limiter {
	if o == nil {
		return nil
	}
	return o.limiter
}

func (o *Orchestrator) Providers() *llm.Registry {
	if o == nil {
		return nil
	}
	return o.registry
}

func (o *Orchestrator) RAG() *rag.Client {
	if o == nil {
		return nil
	}
	return o.rag
}

func (o *Orchestrator) Browser() *tools.Browser {
	if o == nil {
		return nil
	}
	return o.browser
}

func (o *Orchestrator) Executor() tools.Executor {
	if o == nil {
		return nil
	}
	return o.executor
}

func (o *Orchestrator) Builder() *ctxbuilder.Builder {
	if o == nil {
		return nil
	}
	return o.builder
}

func (o *Orchestrator) Files() *files.Processor {
	if o == nil {
		return nil
	}
	return o.files
}

func (o *Orchestrator) Counter() tokens.Counter {
	if o == nil {
		return nil
	}
	return o.counter
}

// Prompts renders the system prompts for the current date.
func (o *Orchestrator) Prompts() prompt.SystemPrompts {
	if o == nil {
		return prompt.BuildSystemPrompts(config.Default().Prompts, time.Now())
	}
	return prompt.BuildSystemPrompts(o.app.Prompts, o.now())
}

// Close releases any resources associated with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var err error
	for i := len(o.closers) - 1; i >= 0; i-- {
		closer := o.closers[i]
		if closer == nil {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	o.closers = nil
	return err
}
