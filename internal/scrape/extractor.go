// Package scrape turns a caller-supplied URL into best-effort plain text.
package scrape

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// maxTextLen bounds extracted text so downstream prompts stay small.
	maxTextLen = 8000
	// paragraph nodes outside these bounds are usually boilerplate.
	minParaLen = 30
	maxParaLen = 600

	defaultTimeout   = 8 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; LeadScoutBot/1.0)"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// Extractor fetches a page and extracts its visible text content.
// Extract never returns an error: any failure degrades to an empty string.
type Extractor struct {
	client    *http.Client
	userAgent string
}

// NewExtractor creates an Extractor with the given fetch timeout.
// A non-positive timeout falls back to the default.
func NewExtractor(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

// Extract fetches url and returns its main text content, or "" on any
// failure (bad URL, timeout, non-2xx, malformed markup, empty page).
func (e *Extractor) Extract(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("scrape: building request failed", "url", url, "error", err)
		return ""
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		slog.Warn("scrape: fetch failed", "url", url, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("scrape: non-2xx response", "url", url, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		slog.Warn("scrape: parse failed", "url", url, "error", err)
		return ""
	}

	return extractText(doc)
}

// extractText collects title, meta descriptions, headings and body text
// from an already-parsed document.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, aside").Remove()

	var parts []string

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}

	metaDesc, _ := doc.Find(`meta[name="description"]`).Attr("content")
	metaDesc = strings.TrimSpace(metaDesc)
	if metaDesc != "" {
		parts = append(parts, metaDesc)
	}

	ogDesc, _ := doc.Find(`meta[property="og:description"]`).Attr("content")
	ogDesc = strings.TrimSpace(ogDesc)
	if ogDesc != "" && ogDesc != metaDesc {
		parts = append(parts, ogDesc)
	}

	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})

	doc.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if len(t) > minParaLen && len(t) < maxParaLen {
			parts = append(parts, t)
		}
	})

	text := reWhitespace.ReplaceAllString(strings.Join(parts, "\n"), " ")
	return truncate(strings.TrimSpace(text), maxTextLen)
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
