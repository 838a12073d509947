// Package ai is the single choke point for calls to the generative-AI
// backend: it owns rate-limit admission, retries, response repair, and
// usage accounting. Pipeline stages never talk to a provider directly.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/marketpartner/leadscout/pkg/models"
)

const (
	// maxAttempts is the initial call plus two retries.
	maxAttempts = 3
	// transientBackoff is the delay before retrying a 429/5xx-class failure.
	transientBackoff = 1500 * time.Millisecond

	defaultTemperature = 0.2
	defaultMaxTokens   = 1024

	// minSiteTextLen gates the summarize operation: shorter scrapes carry
	// too little signal to be worth a call.
	minSiteTextLen = 50

	maxSummaryLen = 400
	maxReplies    = 3
)

// reJSON finds the first JSON object or array in free-form model output.
var reJSON = regexp.MustCompile(`\{[\s\S]*\}|\[[\s\S]*\]`)

// tokenPricing maps model name prefixes to USD cost per million tokens.
var tokenPricing = map[string]struct{ input, output float64 }{
	"gemini-2.0-flash":      {0.10, 0.40},
	"gemini-2.0-flash-lite": {0.075, 0.30},
	"gemini-1.5-flash":      {0.075, 0.30},
}

// SiteSummary is the result of the summarize operation.
type SiteSummary struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// AnalyzeResult is the result of the targeting operation. All fields may
// legitimately be empty after a degraded call; they are never nil.
type AnalyzeResult struct {
	Persona    string   `json:"persona"`
	Subreddits []string `json:"subreddits"`
	Keywords   []string `json:"keywords"`
}

// Gateway routes one run's AI traffic through the shared Limiter and
// accumulates that run's token usage. Create one Gateway per pipeline run.
type Gateway struct {
	provider models.AIProvider
	limiter  *Limiter
	backoff  time.Duration

	mu    sync.Mutex
	usage models.UsageStats
}

// NewGateway creates a per-run gateway over a shared provider and limiter.
func NewGateway(provider models.AIProvider, limiter *Limiter) *Gateway {
	return &Gateway{
		provider: provider,
		limiter:  limiter,
		backoff:  transientBackoff,
		usage:    models.UsageStats{Model: provider.Model()},
	}
}

// Usage returns a snapshot of the tokens and cost accumulated by this run.
func (g *Gateway) Usage() models.UsageStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// SummarizeWebsite condenses scraped site text into a short product
// description plus keywords. Returns zero values when the text is too
// short or the call fails after retries; it never returns an error.
func (g *Gateway) SummarizeWebsite(ctx context.Context, siteText string) SiteSummary {
	if len(siteText) < minSiteTextLen {
		return SiteSummary{Keywords: []string{}}
	}

	var out SiteSummary
	if err := g.callStructured(ctx, summarizePrompt(siteText), summarizeSchema, &out); err != nil {
		slog.Warn("website summarization degraded", "error", err)
		return SiteSummary{Keywords: []string{}}
	}
	out.Description = truncate(out.Description, maxSummaryLen)
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out
}

// Analyze asks the model for candidate communities and discussion search
// queries. Returns an all-empty result on failure; it never returns an
// error — the pipeline falls back to keyword-only discovery.
func (g *Gateway) Analyze(ctx context.Context, companyName, description, websiteURL, siteText string) AnalyzeResult {
	empty := AnalyzeResult{Subreddits: []string{}, Keywords: []string{}}

	var out AnalyzeResult
	prompt := analyzePrompt(companyName, description, websiteURL, siteText)
	if err := g.callStructured(ctx, prompt, analyzeSchema, &out); err != nil {
		slog.Warn("targeting analysis degraded", "company", companyName, "error", err)
		return empty
	}
	if out.Subreddits == nil {
		out.Subreddits = []string{}
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	return out
}

// GenerateReplies drafts up to three reply variants for one post. A
// failure yields an empty list for that post only; it never returns an
// error.
func (g *Gateway) GenerateReplies(ctx context.Context, companyName, description, websiteURL string, post models.Post, topComments []string) []string {
	var out []string
	prompt := repliesPrompt(companyName, description, websiteURL, post, topComments)
	if err := g.callStructured(ctx, prompt, repliesSchema, &out); err != nil {
		slog.Warn("reply generation degraded", "post_id", post.ID, "error", err)
		return []string{}
	}
	if len(out) > maxReplies {
		out = out[:maxReplies]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// callStructured is the single call primitive: limiter admission, the
// provider call, retry policy, JSON extraction, and usage accounting.
func (g *Gateway) callStructured(ctx context.Context, prompt string, schema map[string]any, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 && isTransient(lastErr) {
			timer := time.NewTimer(g.backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = g.callOnce(ctx, prompt, schema, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("ai call failed after %d attempts: %w", maxAttempts, lastErr)
}

func (g *Gateway) callOnce(ctx context.Context, prompt string, schema map[string]any, out any) error {
	if err := g.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer g.limiter.Release()

	resp, err := g.provider.Generate(ctx, models.GenerateRequest{
		Prompt:          prompt,
		Temperature:     defaultTemperature,
		MaxOutputTokens: defaultMaxTokens,
		ResponseSchema:  schema,
	})
	if err != nil {
		return err
	}

	raw, err := extractJSON(resp.Text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	g.record(resp)
	return nil
}

func (g *Gateway) record(resp models.GenerateResponse) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.usage.InputTokens += resp.InputTokens
	g.usage.OutputTokens += resp.OutputTokens
	g.usage.TotalTokens = g.usage.InputTokens + g.usage.OutputTokens
	g.usage.CostUSD = estimateCost(g.usage.Model, g.usage.InputTokens, g.usage.OutputTokens)
}

// extractJSON strips markdown code fences and returns the first JSON
// object or array found in the model output.
func extractJSON(text string) (string, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	match := reJSON.FindString(text)
	if match == "" {
		return "", fmt.Errorf("%w: no JSON found in model output", ErrInvalidResponse)
	}
	return match, nil
}

func estimateCost(model string, inputTokens, outputTokens int) float64 {
	// Longest matching prefix wins so "-lite" variants are not priced as
	// their base model.
	var (
		best    int
		matched bool
		price   struct{ input, output float64 }
	)
	for prefix, p := range tokenPricing {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			best, price, matched = len(prefix), p, true
		}
	}
	if !matched {
		return 0
	}
	return float64(inputTokens)/1e6*price.input + float64(outputTokens)/1e6*price.output
}
