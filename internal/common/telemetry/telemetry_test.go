// File path: internal/common/telemetry/telemetry_test.go
package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordChatRequestCountsPerRoute(t *testing.T) {
	RecordChatRequest("Mistral", 15*time.Millisecond, nil)
	RecordChatRequest("mistral", 0, errors.New("boom"))

	if got := chatRequestsTotal.Get("mistral").String(); got != "2" {
		t.Fatalf("requests = %s", got)
	}
	if got := chatErrorsTotal.Get("mistral").String(); got != "1" {
		t.Fatalf("errors = %s", got)
	}
}

func TestRecordPromptBuildSkipsZeroValues(t *testing.T) {
	ensureInit()
	before := promptEvicted.Value()
	RecordPromptBuild(120, 0, 1)
	if promptEvicted.Value() != before {
		t.Fatalf("evicted changed on zero input")
	}
	RecordPromptBuild(10, 3, 0)
	if promptEvicted.Value() != before+3 {
		t.Fatalf("evicted = %d, want %d", promptEvicted.Value(), before+3)
	}
}

func TestSpanDuration(t *testing.T) {
	if SpanDuration(context.Background()) != 0 {
		t.Fatal("expected zero duration without span")
	}
	ctx, end := StartSpan(context.Background(), "prompt.build")
	defer end()
	time.Sleep(time.Millisecond)
	if SpanDuration(ctx) <= 0 {
		t.Fatal("expected positive span duration")
	}
}
