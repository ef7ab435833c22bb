// File path: internal/tools/executor.go
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/process"
	"github.com/nicodishanthj/pentestgpt/internal/config"
)

// SkippedExecution is returned for every python call after the first in a
// request.
const SkippedExecution = "Code execution skipped. Only one code cell can be executed per request."

// ExecResult is the python tool result sent back to the model.
type ExecResult struct {
	Results      string  `json:"results"`
	RuntimeError *string `json:"runtimeError"`
}

func runtimeError(msg string) *string {
	return &msg
}

// Executor runs one python cell for a user.
type Executor interface {
	Execute(ctx context.Context, userID, code string, packages []string) (ExecResult, error)
}

// NewExecutor builds the executor selected by cfg.Mode.
func NewExecutor(cfg config.CodeInterpreter) Executor {
	switch cfg.Mode {
	case "remote":
		return NewRemoteExecutor(cfg, nil)
	case "local":
		return NewLocalExecutor(cfg)
	default:
		return DisabledExecutor{}
	}
}

// DisabledExecutor refuses every cell.
type DisabledExecutor struct{}

func (DisabledExecutor) Execute(ctx context.Context, userID, code string, packages []string) (ExecResult, error) {
	return ExecResult{RuntimeError: runtimeError("Code interpreter is not configured on this server.")}, nil
}

// RemoteExecutor posts cells to a sandbox service.
type RemoteExecutor struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteExecutor(cfg config.CodeInterpreter, httpClient *http.Client) *RemoteExecutor {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout + 5*time.Second}
	}
	return &RemoteExecutor{
		endpoint:   strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
	}
}

type remoteRequest struct {
	UserID   string   `json:"userId"`
	Code     string   `json:"code"`
	Packages []string `json:"packages"`
}

type remoteResponse struct {
	Results string  `json:"results"`
	Error   *string `json:"error"`
}

func (r *RemoteExecutor) Execute(ctx context.Context, userID, code string, packages []string) (ExecResult, error) {
	if r.endpoint == "" {
		return ExecResult{}, errors.New("code interpreter endpoint not configured")
	}
	if packages == nil {
		packages = []string{}
	}
	var out remoteResponse
	if err := r.doRequest(ctx, r.endpoint+"/execute", remoteRequest{UserID: userID, Code: code, Packages: packages}, &out); err != nil {
		common.LoggerFrom(ctx).Error("tools: remote execution failed", "endpoint", r.endpoint, "error", err)
		return ExecResult{RuntimeError: runtimeError(err.Error())}, nil
	}
	return ExecResult{Results: out.Results, RuntimeError: out.Error}, nil
}

func (r *RemoteExecutor) doRequest(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("code interpreter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LocalExecutor runs cells with a local python interpreter in a scratch
// directory.
type LocalExecutor struct {
	pythonBin string
	timeout   time.Duration
}

func NewLocalExecutor(cfg config.CodeInterpreter) *LocalExecutor {
	bin := strings.TrimSpace(cfg.PythonBin)
	if bin == "" {
		bin = "python3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalExecutor{pythonBin: bin, timeout: timeout}
}

func (l *LocalExecutor) Execute(ctx context.Context, userID, code string, packages []string) (ExecResult, error) {
	logger := common.LoggerFrom(ctx)
	dir, err := os.MkdirTemp("", "pgpt-cell-")
	if err != nil {
		return ExecResult{}, fmt.Errorf("create cell dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if len(packages) > 0 {
		args := append([]string{"-m", "pip", "install", "--quiet", "--target", filepath.Join(dir, "site")}, packages...)
		res, err := process.Run(ctx, process.RunConfig{Command: l.pythonBin, Args: args, Env: cellEnv(dir), WorkDir: dir, Timeout: l.timeout})
		if err != nil {
			return ExecResult{}, err
		}
		if res.ExitCode != 0 {
			logger.Warn("tools: pip install failed", "user", userID, "packages", packages, "exit_code", res.ExitCode)
			return ExecResult{RuntimeError: runtimeError(firstNonEmpty(strings.TrimSpace(res.Stderr), "pip install failed"))}, nil
		}
	}

	script := filepath.Join(dir, "cell.py")
	if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
		return ExecResult{}, fmt.Errorf("write cell: %w", err)
	}
	res, err := process.Run(ctx, process.RunConfig{
		Command: l.pythonBin,
		Args:    []string{script},
		WorkDir: dir,
		Env:     cellEnv(dir),
		Timeout: l.timeout,
	})
	if err != nil {
		return ExecResult{}, err
	}
	logger.Debug("tools: cell finished", "user", userID, "exit_code", res.ExitCode, "duration", res.Duration)
	out := ExecResult{Results: res.Stdout}
	switch {
	case res.TimedOut:
		out.RuntimeError = runtimeError(fmt.Sprintf("Execution timed out after %s", l.timeout))
	case res.ExitCode != 0:
		out.RuntimeError = runtimeError(firstNonEmpty(strings.TrimSpace(res.Stderr), fmt.Sprintf("exit status %d", res.ExitCode)))
	}
	return out, nil
}

// cellEnv is the whole environment of a cell. Server secrets are never
// passed through.
func cellEnv(dir string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{
		"PATH=" + path,
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"PYTHONPATH=" + filepath.Join(dir, "site"),
		"PYTHONUNBUFFERED=1",
		"PIP_DISABLE_PIP_VERSION_CHECK=1",
	}
}

// OnceExecutor lets only the first cell of a request run.
type OnceExecutor struct {
	next Executor
	mu   sync.Mutex
	used bool
}

func NewOnceExecutor(next Executor) *OnceExecutor {
	return &OnceExecutor{next: next}
}

func (o *OnceExecutor) Execute(ctx context.Context, userID, code string, packages []string) (ExecResult, error) {
	o.mu.Lock()
	if o.used {
		o.mu.Unlock()
		return ExecResult{Results: SkippedExecution}, nil
	}
	o.used = true
	o.mu.Unlock()
	return o.next.Execute(ctx, userID, code, packages)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
