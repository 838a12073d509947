package cache

import (
	"crypto/sha256"
	"fmt"
)

// ScrapeKey keys cached page text by a hash of the page URL.
func ScrapeKey(url string) string {
	return fmt.Sprintf("scrape:%x", sha256.Sum256([]byte(url)))
}

// RateLimitKey keys the per-client request counter for the HTTP surface.
func RateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:%s", clientID)
}
