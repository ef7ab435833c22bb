// File path: cmd/pentestgpt/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/pentestgpt/internal/api"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/config"
	"github.com/nicodishanthj/pentestgpt/internal/data/orchestrator"
)

type serveOptions struct {
	addr            string
	sqlitePath      string
	adminToken      string
	imageRoot       string
	startSidecar    bool
	shutdownTimeout time.Duration
}

func newServeCommand() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "", "listen address (overrides PENTESTGPT_ADDR)")
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "path to the SQLite database (overrides PENTESTGPT_SQLITE_PATH)")
	flags.StringVar(&opts.adminToken, "admin-token", envOr("PENTESTGPT_ADMIN_TOKEN", ""), "bearer token for the admin endpoints")
	flags.StringVar(&opts.imageRoot, "image-root", envOr("PENTESTGPT_IMAGE_ROOT", ""), "directory holding stored chat images")
	flags.BoolVar(&opts.startSidecar, "sidecar", true, "launch the code interpreter sidecar when one is configured")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	logger := common.Logger()

	app, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if trimmed := strings.TrimSpace(opts.addr); trimmed != "" {
		app.Addr = trimmed
	}
	if trimmed := strings.TrimSpace(opts.sqlitePath); trimmed != "" {
		app.SQLitePath = trimmed
	}

	orchCfg, err := orchestrator.LoadConfig()
	if err != nil {
		return fmt.Errorf("orchestrator config: %w", err)
	}
	var orchOpts []orchestrator.Option
	if opts.startSidecar {
		sc, err := startSidecar(ctx, app.CodeInterpreter, logger)
		if err != nil {
			return err
		}
		if sc != nil {
			orchOpts = append(orchOpts, orchestrator.WithCloser(sc))
		}
	}

	orch, err := orchestrator.New(ctx, app, orchCfg, orchOpts...)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	defer func() {
		if err := orch.Close(); err != nil {
			logger.Warn("pentestgpt: shutdown returned error", "error", err)
		}
	}()

	server, err := api.NewServer(ctx, orch, &api.Config{AdminToken: opts.adminToken, ImageRoot: opts.imageRoot})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              app.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	reachable := app.Addr
	if strings.HasPrefix(reachable, ":") {
		reachable = "localhost" + reachable
	}
	logger.Info("pentestgpt: server listening", "addr", app.Addr, "health", "/healthz", "rag", app.RAGReady())
	logger.Info("pentestgpt: verify reachability", "suggestion", fmt.Sprintf("curl http://%s/healthz", reachable))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("pentestgpt: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
