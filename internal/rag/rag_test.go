// File path: internal/rag/rag_test.go
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/config"
	"github.com/nicodishanthj/pentestgpt/internal/llm/providers"
)

func readyConfig(endpoint string) config.HackerRAG {
	return config.HackerRAG{Enabled: true, Endpoint: endpoint, APIKey: "rag-key", MinMessageLen: 10, TopK: 3}
}

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer rag-key", r.Header.Get("Authorization"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "how to enumerate smb", body["query"])
		assert.Equal(t, []interface{}{}, body["questions"])
		assert.EqualValues(t, 3, body["chunks"])
		_, _ = io.WriteString(w, `{"content":"use enum4linux","resultId":"r-1"}`)
	}))
	defer srv.Close()

	c := NewClient(readyConfig(srv.URL), srv.Client())
	res, err := c.Query(context.Background(), "how to enumerate smb", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "use enum4linux", res.Content)
	require.NotNil(t, res.ResultID)
	assert.Equal(t, "r-1", *res.ResultID)
}

func TestQueryErrors(t *testing.T) {
	_, err := NewClient(config.HackerRAG{}, nil).Query(context.Background(), "q", nil, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err = NewClient(readyConfig(srv.URL), srv.Client()).Query(context.Background(), "q", nil, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestEligible(t *testing.T) {
	c := NewClient(readyConfig("http://rag.test"), nil)
	long := "explain kerberoasting in detail"
	msgs := []chat.BuiltMessage{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: long},
		{Role: chat.RoleAssistant, Content: ""},
	}
	assert.True(t, c.Eligible(msgs, true, false))
	assert.False(t, c.Eligible(msgs, false, false), "not requested")
	assert.False(t, c.Eligible(msgs, true, true), "continuation targets the system message")

	short := []chat.BuiltMessage{{Role: chat.RoleUser, Content: "hi"}, {Role: chat.RoleAssistant}}
	assert.False(t, c.Eligible(short, true, false))

	disabled := NewClient(config.HackerRAG{Endpoint: "http://rag.test", APIKey: "k"}, nil)
	assert.False(t, disabled.Eligible(msgs, true, false))
}

type completer struct {
	answer string
	err    error
	got    providers.Request
}

func (c *completer) Name() string { return "fake" }

func (c *completer) Stream(ctx context.Context, req providers.Request, sink providers.Sink) (providers.Result, error) {
	return providers.Result{}, errors.New("not used")
}

func (c *completer) Complete(ctx context.Context, req providers.Request) (string, error) {
	c.got = req
	return c.answer, c.err
}

func TestStandaloneQuestion(t *testing.T) {
	msgs := []chat.BuiltMessage{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "I found port 445 open"},
		{Role: chat.RoleAssistant, Content: "That is SMB."},
		{Role: chat.RoleUser, Content: "how do I enumerate it?"},
		{Role: chat.RoleAssistant, Content: ""},
	}
	p := &completer{answer: "Sure:\n```json\n{\"standaloneQuestion\":\"How to enumerate SMB on port 445?\",\"queries\":[\"smb enumeration\",\" \",\"enum4linux\",\"smbclient\",\"rpcclient\"]}\n```"}
	q := StandaloneQuestion(context.Background(), p, QuestionRequest{
		Messages:     msgs,
		Target:       "how do I enumerate it?",
		Model:        "mistralai/mistral-nemo",
		SystemPrompt: "date only",
		TopK:         3,
	})
	assert.Equal(t, "How to enumerate SMB on port 445?", q.Standalone)
	assert.Equal(t, []string{"smb enumeration", "enum4linux", "smbclient"}, q.Atomic)

	require.Len(t, p.got.Messages, 2)
	assert.Equal(t, "date only", p.got.Messages[0].Content)
	userPrompt := p.got.Messages[1].Content
	assert.Contains(t, userPrompt, "user: I found port 445 open\nassistant: That is SMB.")
	assert.Contains(t, userPrompt, "how do I enumerate it?")
	assert.NotContains(t, userPrompt, "sys\n")
}

func TestStandaloneQuestionFallsBack(t *testing.T) {
	msgs := []chat.BuiltMessage{{Role: chat.RoleUser, Content: "abcdefghij"}, {Role: chat.RoleAssistant}}

	bad := &completer{answer: "no json here"}
	q := StandaloneQuestion(context.Background(), bad, QuestionRequest{Messages: msgs, Target: "abcdefghij", MaxLength: 4})
	assert.Equal(t, Question{Standalone: "abcd"}, q)

	failing := &completer{err: errors.New("upstream down")}
	q = StandaloneQuestion(context.Background(), failing, QuestionRequest{Messages: msgs, Target: "target"})
	assert.Equal(t, "target", q.Standalone)
	assert.Empty(t, q.Atomic)
}

func TestParseQuestionAcceptsAtomicQuestions(t *testing.T) {
	q, ok := parseQuestion(`{"standaloneQuestion":"q","atomicQuestions":["a","b"]}`, 0)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, q.Atomic)

	_, ok = parseQuestion(`{"standaloneQuestion":"  "}`, 0)
	assert.False(t, ok)
	assert.False(t, strings.Contains(history(nil), "\n"))
}
