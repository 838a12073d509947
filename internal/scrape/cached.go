package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketpartner/leadscout/internal/cache"
)

// TextExtractor is the page-to-text contract the pipeline depends on.
type TextExtractor interface {
	Extract(ctx context.Context, url string) string
}

const defaultCacheTTL = time.Hour

// Cached wraps a TextExtractor with a read-through cache so repeated
// analyses of the same site skip the refetch. Cache failures are
// non-fatal: they log and fall through to the inner extractor.
type Cached struct {
	inner TextExtractor
	cache cache.Cache
	ttl   time.Duration
}

// NewCached creates a caching wrapper around inner.
func NewCached(inner TextExtractor, c cache.Cache) *Cached {
	return &Cached{inner: inner, cache: c, ttl: defaultCacheTTL}
}

func (c *Cached) Extract(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}

	key := cache.ScrapeKey(url)
	if val, ok, err := c.cache.Get(ctx, key); err != nil {
		slog.Warn("scrape cache read failed", "url", url, "error", err)
	} else if ok {
		return string(val)
	}

	text := c.inner.Extract(ctx, url)
	if text != "" {
		if err := c.cache.Set(ctx, key, []byte(text), c.ttl); err != nil {
			slog.Warn("scrape cache write failed", "url", url, "error", err)
		}
	}
	return text
}

var _ TextExtractor = (*Cached)(nil)
var _ TextExtractor = (*Extractor)(nil)
