// File path: internal/data/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/config"
	"github.com/nicodishanthj/pentestgpt/internal/llm"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
	"github.com/nicodishanthj/pentestgpt/internal/tokens"
	"github.com/nicodishanthj/pentestgpt/internal/tools"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PENTESTGPT_HTTP_TIMEOUT", "")
	t.Setenv("PENTESTGPT_CHUNK_SIZE", "")
	t.Setenv("PENTESTGPT_CHUNK_OVERLAP", "")
	t.Setenv("PENTESTGPT_TOKEN_ENCODING", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	defaults := DefaultConfig()
	if cfg != defaults {
		t.Fatalf("LoadConfig defaults mismatch: %#v", cfg)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PENTESTGPT_HTTP_TIMEOUT", "45s")
	t.Setenv("PENTESTGPT_CHUNK_SIZE", "1000")
	t.Setenv("PENTESTGPT_CHUNK_OVERLAP", "50")
	t.Setenv("PENTESTGPT_TOKEN_ENCODING", "o200k_base")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPTimeout != 45*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 50 {
		t.Errorf("ChunkOverlap = %d", cfg.ChunkOverlap)
	}
	if cfg.TokenEncoding != "o200k_base" {
		t.Errorf("TokenEncoding = %q", cfg.TokenEncoding)
	}

	t.Setenv("PENTESTGPT_CHUNK_SIZE", "big")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected parse error")
	}
}

func testApp(t *testing.T) config.Config {
	t.Helper()
	app := config.Default()
	app.SQLitePath = filepath.Join(t.TempDir(), "chat.db")
	return app
}

func TestNewInitializesComponents(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	orch, err := New(context.Background(), testApp(t), Config{}, WithCounter(tokens.Characters{}), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	if orch.Store() == nil || orch.Store().DB() == nil {
		t.Fatal("Store not initialised")
	}
	if orch.Limiter() == nil {
		t.Fatal("Limiter not initialised")
	}
	if orch.Builder() == nil || orch.Files() == nil || orch.Browser() == nil || orch.RAG() == nil {
		t.Fatal("pipeline components not initialised")
	}
	if orch.RAG().Ready() {
		t.Fatal("RAG should not be ready without configuration")
	}
	if _, ok := orch.Executor().(tools.DisabledExecutor); !ok {
		t.Fatalf("Executor = %T, want DisabledExecutor", orch.Executor())
	}
	if orch.Providers().Configured(llm.OpenRouter) {
		t.Fatal("OpenRouter should fall back to the local provider")
	}
	if got := orch.Providers().Get(llm.OpenRouter).Name(); got != "local" {
		t.Fatalf("fallback provider = %q", got)
	}
	if !strings.Contains(orch.Prompts().PentestGPTCurrentDateOnly, "2024") {
		t.Fatalf("prompts not rendered with the injected clock: %q", orch.Prompts().PentestGPTCurrentDateOnly)
	}
}

func TestNewWithOptionalComponents(t *testing.T) {
	local := providers.NewLocalProvider()
	exec := tools.NewOnceExecutor(tools.DisabledExecutor{})
	sidecar := &stubCloser{}
	orch, err := New(context.Background(), testApp(t), Config{}, WithCounter(tokens.Characters{}),
		WithProvider(llm.OpenAI, local), WithExecutor(exec), WithCloser(sidecar))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !orch.Providers().Configured(llm.OpenAI) {
		t.Fatal("injected provider not registered")
	}
	if orch.Executor() != exec {
		t.Fatal("executor not applied")
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if sidecar.closed != 1 {
		t.Fatalf("expected sidecar close count 1, got %d", sidecar.closed)
	}
	if err := orch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if sidecar.closed != 1 {
		t.Fatalf("sidecar closed twice")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), testApp(t), Config{ChunkSize: 100, ChunkOverlap: 100})
	if err == nil {
		t.Fatal("expected overlap validation error")
	}

	failing := &stubCloser{err: errors.New("boom")}
	app := testApp(t)
	app.SQLitePath = ""
	_, err = New(context.Background(), app, Config{}, WithCounter(tokens.Characters{}), WithCloser(failing))
	if err == nil {
		t.Fatal("expected sqlite error")
	}
	if failing.closed != 1 {
		t.Fatalf("closers not released on failure")
	}
}

type stubCloser struct {
	closed int
	err    error
}

func (s *stubCloser) Close() error {
	s.closed++
	return s.err
}
