package ai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/marketpartner/leadscout/internal/ai/mock"
	"github.com/marketpartner/leadscout/pkg/models"
)

func testLimiter() *Limiter {
	return NewLimiter(5, 100, time.Minute)
}

func textProvider(text string) *mock.MockProvider {
	return mock.NewTextProvider(text)
}

// --- callStructured / retries ---

func TestCallStructured_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	p := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return models.GenerateResponse{}, models.ErrUpstream
			}
			return models.GenerateResponse{Text: `{"persona":"dev","subreddits":["golang"],"keywords":["q"]}`, InputTokens: 7, OutputTokens: 3}, nil
		},
	}

	g := NewGateway(p, testLimiter())
	g.backoff = 0
	got := g.Analyze(context.Background(), "Acme", "desc", "", "")

	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if got.Persona != "dev" || len(got.Subreddits) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestCallStructured_ExhaustedRetriesDegrade(t *testing.T) {
	var calls int32
	p := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			atomic.AddInt32(&calls, 1)
			return models.GenerateResponse{}, errors.New("schema drift")
		},
	}

	g := NewGateway(p, testLimiter())
	got := g.Analyze(context.Background(), "Acme", "desc", "", "")

	if atomic.LoadInt32(&calls) != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, calls)
	}
	if got.Persona != "" || len(got.Subreddits) != 0 || len(got.Keywords) != 0 {
		t.Fatalf("expected empty degraded result, got %+v", got)
	}
	if got.Subreddits == nil || got.Keywords == nil {
		t.Fatal("degraded result must use empty slices, not nil")
	}
}

func TestDegradedResultIsIdempotent(t *testing.T) {
	g := NewGateway(mock.NewFailingProvider(models.ErrUpstream), NewLimiter(5, 1000, time.Millisecond))
	g.backoff = 0

	first := g.Analyze(context.Background(), "Acme", "d", "", "")
	second := g.Analyze(context.Background(), "Acme", "d", "", "")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("degraded results differ: %+v vs %+v", first, second)
	}

	s1 := g.SummarizeWebsite(context.Background(), "some website text that is clearly long enough to qualify")
	s2 := g.SummarizeWebsite(context.Background(), "some website text that is clearly long enough to qualify")
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("degraded summaries differ: %+v vs %+v", s1, s2)
	}
}

// --- JSON extraction ---

func TestExtractJSON_StripsCodeFences(t *testing.T) {
	raw := "```json\n{\"persona\": \"founder\", \"subreddits\": [], \"keywords\": []}\n```"
	got, err := extractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != '{' {
		t.Fatalf("expected JSON object, got %q", got)
	}
}

func TestExtractJSON_FindsArrayInProse(t *testing.T) {
	raw := "Sure! Here are the replies:\n[\"one\",\"two\"]\nHope that helps."
	got, err := extractJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `["one","two"]` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	if _, err := extractJSON("I could not produce an answer."); !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

// --- operations ---

func TestSummarizeWebsite_SkipsShortText(t *testing.T) {
	var calls int32
	p := &mock.MockProvider{
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			atomic.AddInt32(&calls, 1)
			return models.GenerateResponse{Text: "{}"}, nil
		},
	}

	g := NewGateway(p, testLimiter())
	got := g.SummarizeWebsite(context.Background(), "too short")

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("expected no provider call for short text")
	}
	if got.Description != "" || len(got.Keywords) != 0 {
		t.Fatalf("expected empty summary, got %+v", got)
	}
}

func TestSummarizeWebsite_TruncatesDescription(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'a'
	}
	g := NewGateway(textProvider(`{"description":"`+string(long)+`","keywords":["k"]}`), testLimiter())

	got := g.SummarizeWebsite(context.Background(), "this site text is definitely longer than fifty characters total")
	if len(got.Description) != maxSummaryLen {
		t.Fatalf("expected description truncated to %d, got %d", maxSummaryLen, len(got.Description))
	}
}

func TestGenerateReplies_CapsAtThree(t *testing.T) {
	g := NewGateway(textProvider(`["a","b","c","d","e"]`), testLimiter())

	got := g.GenerateReplies(context.Background(), "Acme", "desc", "", models.Post{ID: "p1", Title: "t"}, nil)
	if len(got) != maxReplies {
		t.Fatalf("expected %d replies, got %d", maxReplies, len(got))
	}
}

func TestGenerateReplies_FailureIsEmptyNotNil(t *testing.T) {
	g := NewGateway(mock.NewFailingProvider(errors.New("boom")), testLimiter())

	got := g.GenerateReplies(context.Background(), "Acme", "desc", "", models.Post{ID: "p1"}, nil)
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no replies, got %v", got)
	}
}

// --- usage accounting ---

func TestUsageAccumulatesAcrossCalls(t *testing.T) {
	p := &mock.MockProvider{
		Model_: "gemini-2.0-flash",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			return models.GenerateResponse{
				Text:         `{"persona":"p","subreddits":[],"keywords":[]}`,
				InputTokens:  100,
				OutputTokens: 50,
			}, nil
		},
	}

	g := NewGateway(p, testLimiter())
	g.Analyze(context.Background(), "Acme", "d", "", "")
	g.Analyze(context.Background(), "Acme", "d", "", "")

	usage := g.Usage()
	if usage.InputTokens != 200 || usage.OutputTokens != 100 || usage.TotalTokens != 300 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected model: %s", usage.Model)
	}
	if usage.CostUSD <= 0 {
		t.Fatalf("expected positive cost, got %f", usage.CostUSD)
	}
}

func TestEstimateCost_PrefersLongestPrefix(t *testing.T) {
	base := estimateCost("gemini-2.0-flash", 1_000_000, 0)
	lite := estimateCost("gemini-2.0-flash-lite", 1_000_000, 0)
	if lite >= base {
		t.Fatalf("expected lite pricing below base: lite=%f base=%f", lite, base)
	}
	if estimateCost("unknown-model", 1_000_000, 1_000_000) != 0 {
		t.Fatal("expected zero cost for unknown model")
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	multi := strings.Repeat("é", 10)
	got := truncate(multi, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(got))
	}
	if truncate("short", 10) != "short" {
		t.Fatal("short strings must pass through unchanged")
	}
}

func TestSummarizeWebsite_TruncatesDescriptionOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", maxSummaryLen)
	p := textProvider(`{"description":"` + long + `","keywords":["a"]}`)
	g := NewGateway(p, testLimiter())

	out := g.SummarizeWebsite(context.Background(), strings.Repeat("site text ", 20))
	if len(out.Description) > maxSummaryLen {
		t.Fatalf("description over limit: %d bytes", len(out.Description))
	}
	if !utf8.ValidString(out.Description) {
		t.Fatal("description truncation split a rune")
	}
}
