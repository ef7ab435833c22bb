// File path: internal/rag/rag.go
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nicodishanthj/pentestgpt/internal/chat"
	"github.com/nicodishanthj/pentestgpt/internal/common"
	"github.com/nicodishanthj/pentestgpt/internal/common/telemetry"
	"github.com/nicodishanthj/pentestgpt/internal/config"
)

// ErrNotConfigured is returned by Query when hacker RAG is disabled.
var ErrNotConfigured = errors.New("hacker rag not configured")

// Client queries the hacker RAG service.
type Client struct {
	enabled    bool
	endpoint   string
	apiKey     string
	minLen     int
	maxLen     int
	topK       int
	httpClient *http.Client
}

func NewClient(cfg config.HackerRAG, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &Client{
		enabled:    cfg.Enabled,
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		minLen:     cfg.MinMessageLen,
		maxLen:     cfg.MaxMessageLen,
		topK:       topK,
		httpClient: httpClient,
	}
}

// Ready reports whether the service can be queried.
func (c *Client) Ready() bool {
	return c != nil && c.enabled && c.endpoint != "" && c.apiKey != ""
}

// TopK is the number of chunks requested per query.
func (c *Client) TopK() int {
	return c.topK
}

// MaxMessageLength caps the text handed to the question generator; zero
// means no cap.
func (c *Client) MaxMessageLength() int {
	return c.maxLen
}

// Eligible reports whether a request should be enriched. The filter target
// is the last user message, or the one before it on continuation.
func (c *Client) Eligible(msgs []chat.BuiltMessage, requested, continuation bool) bool {
	if !requested || !c.Ready() {
		return false
	}
	idx := len(msgs) - 2
	if continuation {
		idx = len(msgs) - 3
	}
	if idx < 0 {
		return false
	}
	target := msgs[idx]
	return target.Role == chat.RoleUser && utf8.RuneCountInString(target.Text()) > c.minLen
}

// Result is the enrichment returned by the service. An empty Content means
// nothing relevant was found.
type Result struct {
	Content  string  `json:"content"`
	ResultID *string `json:"resultId"`
}

type queryRequest struct {
	Query     string   `json:"query"`
	Questions []string `json:"questions"`
	Chunks    int      `json:"chunks"`
}

// Query asks the service for context on query.
func (c *Client) Query(ctx context.Context, query string, questions []string, chunks int) (Result, error) {
	if !c.Ready() {
		return Result{}, ErrNotConfigured
	}
	if questions == nil {
		questions = []string{}
	}
	if chunks <= 0 {
		chunks = c.topK
	}
	logger := common.LoggerFrom(ctx)
	var out Result
	if err := c.doRequest(ctx, queryRequest{Query: query, Questions: questions, Chunks: chunks}, &out); err != nil {
		telemetry.RecordRAGQuery("error")
		logger.Warn("rag: query failed", "endpoint", c.endpoint, "error", err)
		return Result{}, err
	}
	if out.Content == "" {
		telemetry.RecordRAGQuery("empty")
	} else {
		telemetry.RecordRAGQuery("hit")
	}
	logger.Debug("rag: query finished", "questions", len(questions), "chunks", chunks, "content_length", len(out.Content))
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hacker rag returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
