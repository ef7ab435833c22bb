// File path: cmd/pentestgpt/services.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/common/process"
	"github.com/nicodishanthj/pentestgpt/internal/config"
)

// sidecar adapts a managed service to the orchestrator's Close chain.
type sidecar struct {
	svc     *process.ManagedService
	timeout time.Duration
}

func (s *sidecar) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.svc.Stop(ctx)
}

// startSidecar launches the code interpreter server when the remote mode is
// configured with a sidecar command. It returns nil when nothing is started.
func startSidecar(ctx context.Context, cfg config.CodeInterpreter, logger *slog.Logger) (*sidecar, error) {
	command := strings.Fields(cfg.SidecarCommand)
	if len(command) == 0 || !strings.EqualFold(cfg.Mode, "remote") {
		return nil, nil
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, fmt.Errorf("code interpreter sidecar needs CODE_INTERPRETER_ENDPOINT")
	}
	bin, err := process.BinaryPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("resolve sidecar binary: %w", err)
	}
	env := []string{"PYTHONUNBUFFERED=1", "CODE_INTERPRETER_ENDPOINT=" + endpoint}
	if cfg.APIKey != "" {
		env = append(env, "CODE_INTERPRETER_API_KEY="+cfg.APIKey)
	}
	if workDir, err := os.Getwd(); err == nil {
		env = append(env, "CODE_INTERPRETER_WORKDIR="+workDir)
	}
	svc, err := process.Start(ctx, process.ServiceConfig{
		Name:         "code-interpreter",
		Command:      bin,
		Args:         command[1:],
		Env:          env,
		ReadyURL:     endpoint + "/health",
		ReadyTimeout: 2 * time.Minute,
		StopTimeout:  5 * time.Second,
		Logger:       logger.With("component", "launcher", "service", "code-interpreter"),
	})
	if err != nil {
		return nil, fmt.Errorf("start code interpreter sidecar: %w", err)
	}
	return &sidecar{svc: svc, timeout: 10 * time.Second}, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
