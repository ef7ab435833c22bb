// File path: internal/tools/tools_test.go
package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common/process"
	"github.com/nicodishanthj/pentestgpt/internal/config"
)

func TestBrowseThroughReader(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/https://example.com/page", r.URL.Path)
		assert.Equal(t, "Bearer jina", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.Header.Get("X-With-Generated-Alt"))
		assert.Equal(t, "true", r.Header.Get("X-No-Cache"))
		_, _ = io.WriteString(w, "Title: Example\n\nBody text")
	}))
	defer srv.Close()

	b := NewBrowser(config.Browser{ReaderURL: srv.URL, JinaToken: "jina", CacheSize: 4, CacheTTL: time.Minute}, srv.Client())
	content, err := b.Browse(context.Background(), "https://example.com/page", BrowseV1)
	require.NoError(t, err)
	assert.Equal(t, "Title: Example\n\nBody text", content)

	again, err := b.Browse(context.Background(), "https://example.com/page", BrowseV1)
	require.NoError(t, err)
	assert.Equal(t, content, again)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestBrowseFailureMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/empty") {
			return
		}
		if r.Header.Get("X-Timeout") != "" {
			assert.Equal(t, "15", r.Header.Get("X-Timeout"))
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	b := NewBrowser(config.Browser{ReaderURL: srv.URL + "/", JinaToken: "jina"}, srv.Client())
	ctx := context.Background()

	v1, err := b.Browse(ctx, "https://down.test", BrowseV1)
	require.NoError(t, err)
	assert.Equal(t, "No content could be retrieved from the URL: https://down.test. The webpage might be empty, unavailable, or there could be an issue with the content retrieval process. HTTP status: 502", v1)

	v3, err := b.Browse(ctx, "https://down.test", BrowseV3)
	require.NoError(t, err)
	assert.Equal(t, "Failed to browse the URL: https://down.test. Error: HTTP error! status: 502", v3)

	empty, err := b.Browse(ctx, "https://up.test/empty", BrowseV3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(empty, "No content could be retrieved from the URL: https://up.test/empty."))
}

func TestBrowseRequiresToken(t *testing.T) {
	b := NewBrowser(config.Browser{}, nil)
	_, err := b.Browse(context.Background(), "https://example.com", BrowseV1)
	assert.ErrorIs(t, err, ErrReaderTokenMissing)
}

func TestBrowseDirectExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, `<html><head><title>Docs</title><script>var x = 1;</script></head>
<body><h1>Heading</h1><p>First   paragraph.</p><ul><li>one</li><li>two</li></ul></body></html>`)
	}))
	defer srv.Close()

	b := NewBrowser(config.Browser{AllowDirect: true, MaxPageLength: 1000}, srv.Client())
	content, err := b.Browse(context.Background(), srv.URL, BrowseV3)
	require.NoError(t, err)
	assert.Equal(t, "Title: Docs\n\nHeading\nFirst paragraph.\none\ntwo", content)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "héllo", truncate("héllo", 0))
}

type countingExecutor struct {
	calls    int32
	packages []string
}

func (c *countingExecutor) Execute(ctx context.Context, userID, code string, packages []string) (ExecResult, error) {
	atomic.AddInt32(&c.calls, 1)
	c.packages = packages
	return ExecResult{Results: "ran " + code + " for " + userID}, nil
}

func TestOnceExecutorSkipsSecondCell(t *testing.T) {
	inner := &countingExecutor{}
	once := NewOnceExecutor(inner)
	first, err := once.Execute(context.Background(), "u1", "a", nil)
	require.NoError(t, err)
	assert.Equal(t, "ran a for u1", first.Results)

	second, err := once.Execute(context.Background(), "u1", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, SkippedExecution, second.Results)
	assert.Nil(t, second.RuntimeError)
	assert.EqualValues(t, 1, atomic.LoadInt32(&inner.calls))
}

func TestPythonToolDecodesArguments(t *testing.T) {
	inner := &countingExecutor{}
	tool := Python(inner, "u9")
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"code":"print(2)"}`))
	require.NoError(t, err)
	assert.Equal(t, ExecResult{Results: "ran print(2) for u9"}, out)
	assert.Equal(t, []string{}, inner.packages)

	_, err = tool.Execute(context.Background(), json.RawMessage(`not json`))
	assert.Error(t, err)

	encoded, err := json.Marshal(ExecResult{Results: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":"x","runtimeError":null}`, string(encoded))
}

func TestToolSelection(t *testing.T) {
	exec := &countingExecutor{}
	assert.Nil(t, ForMistral("mistralai/mistral-large", exec, "u"))

	mistral := ForMistral(chat.ModelGPT4oMini, exec, "u")
	require.Len(t, mistral, 3)
	assert.Equal(t, []string{NameWebSearch, NameBrowser, NamePython}, []string{mistral[0].Name, mistral[1].Name, mistral[2].Name})
	assert.Contains(t, mistral[1].Parameters["properties"], "open_url")
	assert.Nil(t, mistral[0].Execute)
	assert.NotNil(t, mistral[2].Execute)

	openai := ForOpenAI(exec, "u")
	assert.Contains(t, openai[1].Parameters["properties"], "url")
	assert.Equal(t, []string{"url"}, openai[1].Parameters["required"])
}

func TestBrowserToolSchema(t *testing.T) {
	tool := BrowserTool("open_url", "browse")
	assert.Equal(t, NameBrowser, tool.Name)
	assert.Equal(t, "browse", tool.Description)
	assert.Contains(t, tool.Parameters["properties"], "open_url")
	assert.Equal(t, []string{"open_url"}, tool.Parameters["required"])
	assert.Nil(t, tool.Execute)
}

func TestRemoteExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "Bearer sandbox", r.Header.Get("Authorization"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, []interface{}{"requests"}, body["packages"])
		if body["code"] == "boom" {
			_, _ = io.WriteString(w, `{"results":"","error":"NameError: boom"}`)
			return
		}
		_, _ = io.WriteString(w, `{"results":"42\n","error":null}`)
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(config.CodeInterpreter{Endpoint: srv.URL + "/", APIKey: "sandbox"}, srv.Client())
	ok, err := exec.Execute(context.Background(), "u1", "print(42)", []string{"requests"})
	require.NoError(t, err)
	assert.Equal(t, "42\n", ok.Results)
	assert.Nil(t, ok.RuntimeError)

	failed, err := exec.Execute(context.Background(), "u1", "boom", []string{"requests"})
	require.NoError(t, err)
	require.NotNil(t, failed.RuntimeError)
	assert.Equal(t, "NameError: boom", *failed.RuntimeError)
}

func TestRemoteExecutorReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sandbox unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	exec := NewRemoteExecutor(config.CodeInterpreter{Endpoint: srv.URL}, srv.Client())
	out, err := exec.Execute(context.Background(), "u1", "x", nil)
	require.NoError(t, err)
	require.NotNil(t, out.RuntimeError)
	assert.Contains(t, *out.RuntimeError, "503")
}

func TestLocalExecutorRunsCell(t *testing.T) {
	sh, err := process.BinaryPath("sh")
	if err != nil {
		t.Skipf("sh unavailable: %v", err)
	}
	exec := NewLocalExecutor(config.CodeInterpreter{PythonBin: sh, Timeout: 5 * time.Second})

	ok, err := exec.Execute(context.Background(), "u1", "echo hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", ok.Results)
	assert.Nil(t, ok.RuntimeError)

	failed, err := exec.Execute(context.Background(), "u1", "echo bad 1>&2; exit 2", nil)
	require.NoError(t, err)
	require.NotNil(t, failed.RuntimeError)
	assert.Equal(t, "bad", *failed.RuntimeError)
}

func TestLocalExecutorHidesServerEnvironment(t *testing.T) {
	sh, err := process.BinaryPath("sh")
	if err != nil {
		t.Skipf("sh unavailable: %v", err)
	}
	t.Setenv("OPENROUTER_API_KEY", "sk-or-secret")
	t.Setenv("PENTESTGPT_ADMIN_TOKEN", "admin-secret")
	exec := NewLocalExecutor(config.CodeInterpreter{PythonBin: sh, Timeout: 5 * time.Second})

	res, err := exec.Execute(context.Background(), "u1", `echo "key=$OPENROUTER_API_KEY admin=$PENTESTGPT_ADMIN_TOKEN"; echo "$PYTHONUNBUFFERED"; env | grep -c secret || true`, nil)
	require.NoError(t, err)
	require.Nil(t, res.RuntimeError)
	lines := strings.Split(strings.TrimSpace(res.Results), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "key= admin=", lines[0])
	assert.Equal(t, "1", lines[1])
	assert.Equal(t, "0", lines[2])
}

func TestDisabledExecutor(t *testing.T) {
	out, err := NewExecutor(config.CodeInterpreter{Mode: "disabled"}).Execute(context.Background(), "u", "x", nil)
	require.NoError(t, err)
	require.NotNil(t, out.RuntimeError)
}
