// Package pipeline orchestrates one analysis run: scrape the company
// website, summarize it, discover matching Reddit communities and
// discussions, and draft replies for the strongest posts.
//
// The pipeline is resilient by construction. Every external stage
// degrades to an empty result instead of failing the run, so a company
// with an unreachable website or an exhausted AI budget still gets the
// best answer the remaining stages can produce.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/marketpartner/leadscout/internal/ai"
	"github.com/marketpartner/leadscout/internal/config"
	"github.com/marketpartner/leadscout/internal/keywords"
	"github.com/marketpartner/leadscout/internal/reddit"
	"github.com/marketpartner/leadscout/internal/scrape"
	"github.com/marketpartner/leadscout/pkg/models"
)

// Event is one progress notification during a streaming run.
type Event struct {
	Type string
	Data any
}

// EmitFunc receives pipeline events. Implementations must be safe for
// concurrent use: the reply stage emits from multiple goroutines.
type EmitFunc func(Event)

// Event types, in the order a full run emits them.
const (
	EventStage            = "stage"
	EventSummary          = "summary"
	EventKeywords         = "keywords"
	EventCommunityDetails = "subreddit_details"
	EventCommunities      = "subreddits"
	EventPosts            = "posts"
	EventReply            = "reply"
	EventUsage            = "usage"
	EventDone             = "done"
	EventError            = "error"
)

// Payload shapes for the events above.
type (
	StagePayload struct {
		Stage string `json:"stage"`
	}
	SummaryPayload struct {
		Summary        string `json:"summary"`
		WebsiteScraped bool   `json:"websiteScraped"`
	}
	KeywordsPayload struct {
		Keywords []string `json:"keywords"`
	}
	CommunityDetailsPayload struct {
		CommunityDetails []models.Community `json:"subredditDetails"`
	}
	CommunitiesPayload struct {
		Communities []string `json:"subreddits"`
	}
	PostsPayload struct {
		Posts []models.Post `json:"posts"`
	}
	ReplyPayload struct {
		PostID  string   `json:"postId"`
		Replies []string `json:"replies"`
	}
	ErrorPayload struct {
		Error string `json:"error"`
	}
)

// ScrapeResult is the output of the first phase: site summary plus the
// keyword set the discovery phase searches with. SiteText is the raw
// scraped page text, kept for the same-process discovery phase only; the
// streaming client never sees it and cannot send it back.
type ScrapeResult struct {
	Summary        string            `json:"summary"`
	Keywords       []string          `json:"keywords"`
	WebsiteScraped bool              `json:"websiteScraped"`
	Usage          models.UsageStats `json:"usageStats"`
	SiteText       string            `json:"-"`
}

// Pipeline wires the stages together. The AI limiter is shared across
// runs so concurrent requests stay inside one provider budget.
type Pipeline struct {
	extractor scrape.TextExtractor
	reddit    reddit.Client
	provider  models.AIProvider
	limiter   *ai.Limiter
	cfg       config.PipelineConfig
}

// New creates a Pipeline.
func New(extractor scrape.TextExtractor, redditClient reddit.Client, provider models.AIProvider, limiter *ai.Limiter, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		reddit:    redditClient,
		provider:  provider,
		limiter:   limiter,
		cfg:       cfg,
	}
}

func noopEmit(Event) {}

// Run executes the whole pipeline and returns the assembled result.
// The only error it can return is context cancellation; every stage
// failure degrades instead.
func (p *Pipeline) Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	gw := ai.NewGateway(p.provider, p.limiter)

	scraped := p.scrapePhase(ctx, gw, req, noopEmit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := p.discoverPhase(ctx, gw, req, scraped.Summary, scraped.SiteText, scraped.Keywords, noopEmit)
	if err != nil {
		return nil, err
	}
	result.WebsiteScraped = scraped.WebsiteScraped
	return result, nil
}

// StreamScrape runs the scrape-and-summarize phase, emitting progress
// events as it goes. Used by the first streaming endpoint.
func (p *Pipeline) StreamScrape(ctx context.Context, req models.AnalysisRequest, emit EmitFunc) (*ScrapeResult, error) {
	gw := ai.NewGateway(p.provider, p.limiter)

	scraped := p.scrapePhase(ctx, gw, req, emit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	emit(Event{Type: EventUsage, Data: scraped.Usage})
	emit(Event{Type: EventDone, Data: struct{}{}})
	return &scraped, nil
}

// StreamDiscover runs the discovery-and-reply phase from a prior scrape
// phase's summary and keywords, emitting progress events as it goes.
// A caller that lost the first phase's keywords gets a fresh extraction
// from the request description.
func (p *Pipeline) StreamDiscover(ctx context.Context, req models.AnalysisRequest, summary string, kws []string, emit EmitFunc) (*models.AnalysisResult, error) {
	gw := ai.NewGateway(p.provider, p.limiter)

	if len(kws) == 0 {
		kws = keywords.MergeDedupe(p.cfg.MaxKeywords, keywords.Extract(req.Description))
	}
	if summary == "" {
		summary = fallbackSummary(req)
	}

	result, err := p.discoverPhase(ctx, gw, req, summary, "", kws, emit)
	if err != nil {
		return nil, err
	}

	emit(Event{Type: EventSummary, Data: SummaryPayload{Summary: result.Summary}})
	emit(Event{Type: EventUsage, Data: *result.Usage})
	emit(Event{Type: EventDone, Data: struct{}{}})
	return result, nil
}

// scrapePhase fetches the site, summarizes it, and assembles the keyword
// set. It cannot fail: a dead site yields keywords from the description
// alone.
func (p *Pipeline) scrapePhase(ctx context.Context, gw *ai.Gateway, req models.AnalysisRequest, emit EmitFunc) ScrapeResult {
	emit(Event{Type: EventStage, Data: StagePayload{Stage: "scraping"}})

	var siteText string
	if req.WebsiteURL != "" {
		scrapeCtx, cancel := context.WithTimeout(ctx, p.cfg.ScrapeTimeout)
		siteText = p.extractor.Extract(scrapeCtx, req.WebsiteURL)
		cancel()
	}
	scrapedOK := siteText != ""

	emit(Event{Type: EventStage, Data: StagePayload{Stage: "summarizing"}})
	site := gw.SummarizeWebsite(ctx, siteText)

	summary := site.Description
	if summary == "" {
		summary = fallbackSummary(req)
	}
	emit(Event{Type: EventSummary, Data: SummaryPayload{Summary: summary, WebsiteScraped: scrapedOK}})

	kws := keywords.MergeDedupe(p.cfg.MaxKeywords, site.Keywords, keywords.Extract(req.Description))
	emit(Event{Type: EventKeywords, Data: KeywordsPayload{Keywords: kws}})

	return ScrapeResult{
		Summary:        summary,
		Keywords:       kws,
		WebsiteScraped: scrapedOK,
		Usage:          gw.Usage(),
		SiteText:       siteText,
	}
}

// discoverPhase finds communities and posts and drafts replies. The only
// error it can return is context cancellation.
func (p *Pipeline) discoverPhase(ctx context.Context, gw *ai.Gateway, req models.AnalysisRequest, summary, siteText string, kws []string, emit EmitFunc) (*models.AnalysisResult, error) {
	emit(Event{Type: EventStage, Data: StagePayload{Stage: "analyzing"}})
	analysis := gw.Analyze(ctx, req.CompanyName, summary, req.WebsiteURL, siteText)

	// The model's discussion queries join the scrape-phase keywords for
	// post filtering and the final keyword set, model first.
	kws = keywords.MergeDedupe(p.cfg.MaxKeywords, analysis.Keywords, kws)

	emit(Event{Type: EventStage, Data: StagePayload{Stage: "searching_communities"}})
	queries := searchQueries(req, analysis.Subreddits, analysis.Keywords, kws)
	details := p.reddit.SearchCommunities(ctx, queries)

	names := communityNames(p.cfg.MaxCommunities, analysis.Subreddits, details)
	emit(Event{Type: EventCommunityDetails, Data: CommunityDetailsPayload{CommunityDetails: details}})
	emit(Event{Type: EventCommunities, Data: CommunitiesPayload{Communities: names}})

	emit(Event{Type: EventStage, Data: StagePayload{Stage: "searching_posts"}})
	posts := p.reddit.SearchPosts(ctx, names, kws)
	if len(posts) > p.cfg.MaxPosts {
		posts = posts[:p.cfg.MaxPosts]
	}
	emit(Event{Type: EventPosts, Data: PostsPayload{Posts: posts}})

	emit(Event{Type: EventStage, Data: StagePayload{Stage: "generating_replies"}})
	replied := p.draftReplies(ctx, gw, req, summary, posts, emit)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usage := gw.Usage()
	return &models.AnalysisResult{
		Summary:             runSummary(req.CompanyName, len(posts), len(names), replied),
		Keywords:            kws,
		RelevantCommunities: names,
		CommunityDetails:    details,
		RelevantPosts:       posts,
		Usage:               &usage,
	}, nil
}

// draftReplies generates reply suggestions for the highest-scored posts
// concurrently and returns how many posts were targeted. A failed post
// keeps an empty reply list; the rest of the batch is unaffected.
func (p *Pipeline) draftReplies(ctx context.Context, gw *ai.Gateway, req models.AnalysisRequest, summary string, posts []models.Post, emit EmitFunc) int {
	n := p.cfg.ReplyPosts
	if n > len(posts) {
		n = len(posts)
	}
	if n <= 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			post := posts[i]
			comments := p.reddit.ListTopComments(gctx, post.Community, post.ID, 5)
			replies := gw.GenerateReplies(gctx, req.CompanyName, summary, req.WebsiteURL, post, comments)
			posts[i].SuggestedReplies = replies
			emit(Event{Type: EventReply, Data: ReplyPayload{PostID: post.ID, Replies: replies}})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("reply stage interrupted", "error", err)
	}
	return n
}

// searchQueries builds up to five community search queries: the model's
// suggested community names first, so suggested communities get their
// detail records, then its discussion queries, then extracted keywords.
// A run with nothing usable falls back to the company name.
func searchQueries(req models.AnalysisRequest, suggested, aiKeywords, extracted []string) []string {
	hints := make([]string, 0, len(suggested))
	for _, name := range suggested {
		hints = append(hints, strings.TrimPrefix(strings.TrimSpace(name), "r/"))
	}
	queries := keywords.MergeDedupe(reddit.MaxSearchQueries, hints, aiKeywords, extracted)
	if len(queries) == 0 && strings.TrimSpace(req.CompanyName) != "" {
		queries = []string{strings.TrimSpace(req.CompanyName)}
	}
	return queries
}

// runSummary is the closing stats line of one discovery run.
func runSummary(company string, posts, communities, replied int) string {
	return fmt.Sprintf(
		"Analyzed %s. Found %d discussions across %d subreddits, with reply suggestions for the top %d posts.",
		company, posts, communities, replied)
}

// communityNames merges the model's community suggestions with the
// discovered ones, model first, deduplicated case-insensitively and
// capped at max.
func communityNames(max int, suggested []string, discovered []models.Community) []string {
	seen := make(map[string]bool)
	names := []string{}

	add := func(name string) {
		name = strings.TrimPrefix(strings.TrimSpace(name), "r/")
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		names = append(names, name)
	}

	for _, name := range suggested {
		add(name)
	}
	for _, c := range discovered {
		add(c.Name)
	}

	if len(names) > max {
		names = names[:max]
	}
	return names
}

// fallbackSummary builds a one-line summary from the request when the
// model could not produce one.
func fallbackSummary(req models.AnalysisRequest) string {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return req.CompanyName
	}
	return fmt.Sprintf("%s: %s", req.CompanyName, desc)
}
