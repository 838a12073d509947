package ai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/marketpartner/leadscout/pkg/models"
)

const (
	// maxSiteContext bounds how much scraped page text is embedded in prompts.
	maxSiteContext = 4000
	// maxPostContext bounds how much post body the reply prompt carries.
	maxPostContext = 500
)

const summarizePromptTemplate = `You are a concise product analyst.

Below is raw text scraped from a company website. Produce:
1. A clear product description of at most 400 characters, written in plain language.
2. 10-15 keywords capturing the product category, audience and use cases.

WEBSITE TEXT:
%s

OUTPUT STRICT JSON:
{
  "description": "product summary, max 400 characters",
  "keywords": ["keyword 1", "keyword 2"]
}

Return JSON only.`

const analyzePromptTemplate = `You are a B2B Reddit research analyst.

Your task is NOT to promote the product.
Your task is to locate discussions where potential buyers experience the problem BEFORE vendor search.

PRODUCT
Company: %s
Description: %s
Website: %s
%s
INTERNAL REASONING (DO NOT OUTPUT):
1) Identify the main persona
2) Identify real frustrations they encounter
3) Determine how they phrase questions online
4) Map to specific Reddit communities

RULES:
- Avoid generic subs unless unavoidable
- Prefer niche & problem-focused communities
- Include competitor/tool communities when relevant
- Keywords must be natural sentences, not SEO phrases

OUTPUT STRICT JSON:
{
  "persona": "short persona description",
  "subreddits": ["12 real subreddit names"],
  "keywords": ["10 natural discussion search queries"]
}

Return JSON only.`

const repliesPromptTemplate = `You are writing as a normal Reddit user, not a company.

Goal: participate naturally in discussion.
You are NOT selling anything.

COMPANY CONTEXT
Name: %s
Product: %s
Website: %s

THREAD
Subreddit: r/%s
Title: %s
%s%s
REPLY STRATEGY
Write 3 different replies:

Reply 1 - empathy / shared experience
Reply 2 - practical advice
Reply 3 - optional soft recommendation (only if relevant)

STYLE RULES
- sound human
- no marketing tone
- no CTA
- no links
- 2-5 sentences
- casual natural language
- only one reply may mention the product
- never say "our product"

OUTPUT:
["reply 1","reply 2","reply 3"]

Return JSON array only.`

func summarizePrompt(siteText string) string {
	return fmt.Sprintf(summarizePromptTemplate, truncate(siteText, maxSiteContext))
}

func analyzePrompt(companyName, description, websiteURL, siteText string) string {
	context := ""
	if siteText != "" {
		context = fmt.Sprintf("Website Content:\n%s\n", truncate(siteText, maxSiteContext))
	}
	return fmt.Sprintf(analyzePromptTemplate, companyName, description, websiteURL, context)
}

func repliesPrompt(companyName, description, websiteURL string, post models.Post, topComments []string) string {
	body := ""
	if post.SelfText != "" {
		body = "Post: " + truncate(post.SelfText, maxPostContext) + "\n"
	}

	commentsCtx := ""
	if len(topComments) > 0 {
		var b strings.Builder
		b.WriteString("Top comments:\n")
		for i, c := range topComments {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
		commentsCtx = b.String()
	}

	return fmt.Sprintf(repliesPromptTemplate,
		companyName, description, websiteURL,
		post.Community, post.Title, body, commentsCtx)
}

// truncate shortens s to maxBytes without splitting UTF-8 runes.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

// Response schemas passed to providers that support constrained output.
// Parsing never relies on them; extractJSON repairs free-form answers too.

var summarizeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"description": map[string]any{"type": "string"},
		"keywords":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"description", "keywords"},
}

var analyzeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"persona":    map[string]any{"type": "string"},
		"subreddits": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"keywords":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required": []string{"persona", "subreddits", "keywords"},
}

var repliesSchema = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}
