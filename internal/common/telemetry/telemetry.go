// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/nicodishanthj/pentestgpt/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once

	chatRequestsTotal *expvar.Map
	chatStreamMS      *expvar.Map
	chatErrorsTotal   *expvar.Map

	promptTokensUsed  *expvar.Int
	promptEvicted     *expvar.Int
	promptTruncated   *expvar.Int
	promptBuildsTotal *expvar.Int

	toolCallsTotal *expvar.Map
	ragQueries     *expvar.Map

	rateLimitRejections *expvar.Map
	browserCacheHits    *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		chatRequestsTotal = expvar.NewMap("pentestgpt_chat_requests_total")
		chatStreamMS = expvar.NewMap("pentestgpt_chat_stream_ms")
		chatErrorsTotal = expvar.NewMap("pentestgpt_chat_errors_total")

		promptTokensUsed = expvar.NewInt("pentestgpt_prompt_tokens_used")
		promptEvicted = expvar.NewInt("pentestgpt_prompt_messages_evicted")
		promptTruncated = expvar.NewInt("pentestgpt_prompt_messages_truncated")
		promptBuildsTotal = expvar.NewInt("pentestgpt_prompt_builds_total")

		toolCallsTotal = expvar.NewMap("pentestgpt_tool_calls_total")
		ragQueries = expvar.NewMap("pentestgpt_rag_queries_total")

		rateLimitRejections = expvar.NewMap("pentestgpt_rate_limit_rejections_total")
		browserCacheHits = expvar.NewInt("pentestgpt_browser_cache_hits")
	})
}

// StartSpan logs a debug span around an operation and returns a finisher.
func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.LoggerFrom(ctx)
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

// SpanDuration reports how long the span stored on ctx has been open.
func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

// RecordChatRequest counts a chat request per route and accumulates stream time.
func RecordChatRequest(route string, duration time.Duration, err error) {
	ensureInit()
	key := normalizeKey(route, "unknown")
	chatRequestsTotal.Add(key, 1)
	if duration > 0 {
		chatStreamMS.Add(key, duration.Milliseconds())
	}
	if err != nil {
		chatErrorsTotal.Add(key, 1)
	}
}

// RecordPromptBuild tracks the budget outcome of a prompt assembly.
func RecordPromptBuild(usedTokens, evicted, truncated int) {
	ensureInit()
	promptBuildsTotal.Add(1)
	if usedTokens > 0 {
		promptTokensUsed.Add(int64(usedTokens))
	}
	if evicted > 0 {
		promptEvicted.Add(int64(evicted))
	}
	if truncated > 0 {
		promptTruncated.Add(int64(truncated))
	}
}

func RecordToolCall(tool string) {
	ensureInit()
	toolCallsTotal.Add(normalizeKey(tool, "unknown"), 1)
}

// RecordRAGQuery counts hacker RAG lookups by outcome (hit, miss, error).
func RecordRAGQuery(outcome string) {
	ensureInit()
	ragQueries.Add(normalizeKey(outcome, "miss"), 1)
}

func RecordRateLimitRejection(key string) {
	ensureInit()
	rateLimitRejections.Add(normalizeKey(key, "default"), 1)
}

func RecordBrowserCacheHit() {
	ensureInit()
	browserCacheHits.Add(1)
}

func normalizeKey(value, fallback string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return fallback
	}
	return key
}
