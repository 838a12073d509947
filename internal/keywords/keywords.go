// Package keywords extracts frequency-ranked keywords from free text.
// It is pure and deterministic: no I/O, identical input yields identical output.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// MaxKeywords bounds the ranked list returned by Extract.
	MaxKeywords = 15
	// minTokenLen drops short glue words that survive the stop-word set.
	minTokenLen = 4
)

var rePunct = regexp.MustCompile(`[^\w\s]`)

// stopWords are never returned as keywords.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "a": {}, "an": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "by": {}, "this": {}, "that": {}, "it": {}, "from": {},
	"as": {}, "but": {}, "or": {}, "not": {}, "your": {}, "we": {}, "our": {},
	"us": {}, "can": {}, "will": {}, "if": {}, "you": {}, "have": {}, "has": {},
	"they": {}, "their": {}, "more": {}, "all": {}, "been": {}, "also": {},
	"than": {}, "into": {}, "about": {}, "out": {}, "up": {}, "so": {},
	"get": {}, "just": {}, "do": {}, "did": {}, "how": {}, "what": {},
	"when": {}, "where": {}, "its": {}, "any": {}, "new": {},
}

// Extract returns the top keywords of text ranked by descending frequency.
// Ties are broken by first occurrence so repeated calls are stable.
// Returns an empty slice for empty or all-stop-word input (never nil).
func Extract(text string) []string {
	clean := rePunct.ReplaceAllString(strings.ToLower(text), "")

	type tokenCount struct {
		token string
		count int
		first int
	}

	counts := make(map[string]*tokenCount)
	order := 0
	for _, tok := range strings.Fields(clean) {
		if len(tok) < minTokenLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		tc, seen := counts[tok]
		if !seen {
			tc = &tokenCount{token: tok, first: order}
			counts[tok] = tc
			order++
		}
		tc.count++
	}

	ranked := make([]tokenCount, 0, len(counts))
	for _, tc := range counts {
		ranked = append(ranked, *tc)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	if len(ranked) > MaxKeywords {
		ranked = ranked[:MaxKeywords]
	}

	out := make([]string, 0, len(ranked))
	for _, tc := range ranked {
		out = append(out, tc.token)
	}
	return out
}

// MergeDedupe merges keyword lists preserving order of first appearance,
// comparing case-insensitively, and caps the result at max entries.
func MergeDedupe(max int, lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, kw := range list {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			key := strings.ToLower(kw)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, kw)
			if len(out) == max {
				return out
			}
		}
	}
	return out
}
