// File path: internal/common/process/process.go
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/common"
)

// ServiceConfig describes a long running helper process, such as the code
// sandbox sidecar, that the server supervises.
type ServiceConfig struct {
	Name          string
	Command       string
	Args          []string
	Env           []string
	WorkDir       string
	ReadyURL      string
	ReadyTimeout  time.Duration
	ReadyInterval time.Duration
	StopTimeout   time.Duration
	Logger        *slog.Logger
}

// ManagedService tracks a launched helper process.
type ManagedService struct {
	cfg    ServiceConfig
	cmd    *exec.Cmd
	logger *slog.Logger

	done    chan struct{}
	waitErr error
	mu      sync.RWMutex
}

// Start launches the helper and blocks until its readiness probe answers.
func Start(ctx context.Context, cfg ServiceConfig) (*ManagedService, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("process: command required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = common.Logger()
	}
	name := serviceName(cfg)
	logger.Info("process: launching service", "service", name, "command", cfg.Command, "args", strings.Join(cfg.Args, " "))

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe %s: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stderr pipe %s: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", name, err)
	}

	attrs := []slog.Attr{
		slog.String("component", "service/"+strings.ReplaceAll(strings.ToLower(name), " ", "_")),
		slog.String("service", name),
	}
	var streams sync.WaitGroup
	forward := func(pipe io.Reader, stream string, level slog.Level) {
		streams.Add(1)
		go func() {
			defer streams.Done()
			lineAttrs := append(append([]slog.Attr(nil), attrs...), slog.String("stream", stream))
			scanner := bufio.NewScanner(pipe)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				logger.LogAttrs(context.Background(), level, scanner.Text(), lineAttrs...)
			}
			if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
				logger.Warn("process: log stream error", "service", name, "stream", stream, "error", err)
			}
		}()
	}
	forward(stdout, "stdout", slog.LevelInfo)
	forward(stderr, "stderr", slog.LevelWarn)

	svc := &ManagedService{cfg: cfg, cmd: cmd, logger: logger, done: make(chan struct{})}
	go func() {
		streams.Wait()
		err := cmd.Wait()
		svc.mu.Lock()
		svc.waitErr = err
		svc.mu.Unlock()
		close(svc.done)
	}()

	if err := waitForReady(ctx, svc); err != nil {
		svc.Stop(context.Background())
		return nil, err
	}
	logger.Info("process: service ready", "service", name, "url", cfg.ReadyURL)
	return svc, nil
}

func serviceName(cfg ServiceConfig) string {
	if name := strings.TrimSpace(cfg.Name); name != "" {
		return name
	}
	if base := filepath.Base(strings.TrimSpace(cfg.Command)); base != "" && base != "." {
		return base
	}
	return "process"
}

// Stop interrupts the helper and kills it once StopTimeout elapses.
func (s *ManagedService) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.logger.Info("process: stopping service", "service", serviceName(s.cfg))
	if s.cmd.Process != nil {
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("process: interrupt failed", "service", serviceName(s.cfg), "error", err)
		}
	}
	stopTimeout := s.cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	timer := time.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return s.normalizeWaitErr()
	case <-timer.C:
		s.logger.Warn("process: forcing service kill", "service", serviceName(s.cfg))
		if s.cmd.Process != nil {
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				return err
			}
		}
		<-s.done
		return s.normalizeWaitErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitForReady(ctx context.Context, svc *ManagedService) error {
	cfg := svc.cfg
	if strings.TrimSpace(cfg.ReadyURL) == "" {
		return nil
	}
	readyTimeout := cfg.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 30 * time.Second
	}
	interval := cfg.ReadyInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	client := &http.Client{Timeout: 2 * time.Second}
	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-readyCtx.Done():
			if lastErr != nil {
				return fmt.Errorf("process: %s not ready after %s: %w", serviceName(cfg), readyTimeout, lastErr)
			}
			return fmt.Errorf("process: %s not ready after %s: %w", serviceName(cfg), readyTimeout, readyCtx.Err())
		case <-svc.done:
			return fmt.Errorf("process: %s exited before reporting ready: %w", serviceName(cfg), svc.waitError())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(readyCtx, http.MethodGet, cfg.ReadyURL, nil)
			if err != nil {
				return fmt.Errorf("process: readiness request for %s: %w", serviceName(cfg), err)
			}
			resp, err := client.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}
}

func (s *ManagedService) waitError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waitErr
}

func (s *ManagedService) normalizeWaitErr() error {
	err := s.waitError()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.Exited() {
		return nil
	}
	return err
}

// RunConfig describes a one-shot command whose output is collected.
type RunConfig struct {
	Command string
	Args    []string
	// Env is the complete environment of the command. Nil inherits the
	// parent's environment.
	Env     []string
	WorkDir string
	Stdin   io.Reader
	Timeout time.Duration
	// MaxOutput caps the captured bytes per stream; zero means 1 MiB.
	MaxOutput int
}

// RunResult holds the captured output of a one-shot command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Run executes a command to completion. A non-zero exit is reported through
// RunResult.ExitCode rather than as an error.
func Run(ctx context.Context, cfg RunConfig) (RunResult, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return RunResult{}, errors.New("process: command required")
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	limit := cfg.MaxOutput
	if limit <= 0 {
		limit = 1 << 20
	}
	stdout := &cappedBuffer{max: limit}
	stderr := &cappedBuffer{max: limit}
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.Stdin = cfg.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 2 * time.Second
	if cfg.Env != nil {
		cmd.Env = cfg.Env
	}

	start := time.Now()
	err := cmd.Run()
	result := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("process: run %s: %w", filepath.Base(cfg.Command), err)
	}
	return result, nil
}

type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

// BinaryPath resolves an executable using PATH.
func BinaryPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("process: binary name required")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("process: locate %s: %w", name, err)
	}
	return filepath.Clean(path), nil
}
