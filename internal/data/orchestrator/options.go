// File path: internal/data/orchestrator/options.go
package orchestrator

import (
	"net/http"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/llm"
	"github.com/nicodishanthj/pentestgpt/internal/sqlite"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
	"github.com/nicodishanthj/pentestgpt/internal/tools"
)

type Option func(*options)

type options struct {
	store      *sqlite.Store
	counter    tokens.Counter
	executor   tools.Executor
	httpClient *http.Client
	providers  map[string]llm.Provider
	closers    []closer
	now        func() time.Time
}

// WithStore injects an already opened store. The orchestrator does not close
// injected stores.
func WithStore(store *sqlite.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithCounter replaces the tokenizer. Primarily used in tests.
func WithCounter(counter tokens.Counter) Option {
	return func(o *options) {
		o.counter = counter
	}
}

// WithExecutor replaces the code interpreter selected by configuration.
func WithExecutor(exec tools.Executor) Option {
	return func(o *options) {
		o.executor = exec
	}
}

// WithHTTPClient injects the client used for outbound tool and RAG calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithProvider registers p under name, overriding configuration.
func WithProvider(name string, p llm.Provider) Option {
	return func(o *options) {
		if o.providers == nil {
			o.providers = make(map[string]llm.Provider)
		}
		o.providers[name] = p
	}
}

// WithCloser registers a resource released by Close, such as a sidecar.
func WithCloser(c interface{ Close() error }) Option {
	return func(o *options) {
		o.closers = append(o.closers, c)
	}
}

// WithClock replaces the time source used to render system prompts.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
