// Package reddit wraps Reddit's public read-only JSON endpoints.
//
// Every operation degrades to an empty result on failure instead of
// propagating an error to the pipeline; transport errors are logged and
// classified into sentinel errors internally.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/marketpartner/leadscout/pkg/models"
)

// Sentinel errors for Reddit client failures.
var (
	ErrUnreachable = errors.New("reddit unreachable")
	ErrQueryError  = errors.New("reddit query error")
	ErrTimeout     = errors.New("reddit query timeout")
)

const (
	// minSubscribers filters out dead and spam communities.
	minSubscribers = 500
	// popularScore keeps a post with no keyword match when it is hot anyway.
	popularScore = 100

	// MaxSearchQueries caps how many search queries one discovery pass
	// sends; callers building query sets size them against this.
	MaxSearchQueries = 5

	resultsPerQuery     = 8
	maxCommunities      = 15
	hotPostsPerListing  = 8
	searchedCommunities = 8
	maxPosts            = 25
	maxComments         = 5
	maxCommentLen       = 300
	maxDescriptionLen   = 200
)

// Client is the interface for read-only Reddit discovery.
type Client interface {
	SearchCommunities(ctx context.Context, queries []string) []models.Community
	ListHotPosts(ctx context.Context, community string, limit int) []models.Post
	SearchPosts(ctx context.Context, communities, keywords []string) []models.Post
	ListTopComments(ctx context.Context, community, postID string, limit int) []string
}

// HTTPClient implements Client against Reddit's public JSON API.
type HTTPClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPClient creates a new Reddit HTTP client. The userAgent identifies
// the bot to Reddit and must stay fixed per their API guidelines.
func NewHTTPClient(baseURL, userAgent string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// SearchCommunities runs up to five subreddit searches, deduplicates by
// name keeping the first-seen record, filters out communities at or below
// the subscriber floor, and returns at most 15 sorted by subscribers.
func (c *HTTPClient) SearchCommunities(ctx context.Context, queries []string) []models.Community {
	if len(queries) > MaxSearchQueries {
		queries = queries[:MaxSearchQueries]
	}

	found := make(map[string]models.Community)
	var order []string

	for _, query := range queries {
		params := url.Values{
			"q":               {query},
			"sort":            {"relevance"},
			"limit":           {strconv.Itoa(resultsPerQuery)},
			"include_over_18": {"false"},
		}
		u := fmt.Sprintf("%s/subreddits/search.json?%s", c.baseURL, params.Encode())

		var resp subredditListing
		if err := c.getJSON(ctx, u, &resp); err != nil {
			slog.Warn("community search failed", "query", query, "error", err)
			continue
		}

		for _, child := range resp.Data.Children {
			sub := child.Data
			if sub.Subscribers <= minSubscribers {
				continue
			}
			if _, seen := found[sub.DisplayName]; seen {
				continue
			}
			found[sub.DisplayName] = models.Community{
				Name:        sub.DisplayName,
				DisplayName: "r/" + sub.DisplayName,
				Subscribers: sub.Subscribers,
				Description: truncate(sub.PublicDescription, maxDescriptionLen),
				URL:         "https://reddit.com" + sub.URL,
			}
			order = append(order, sub.DisplayName)
		}
	}

	communities := make([]models.Community, 0, len(order))
	for _, name := range order {
		communities = append(communities, found[name])
	}
	sort.SliceStable(communities, func(i, j int) bool {
		return communities[i].Subscribers > communities[j].Subscribers
	})
	if len(communities) > maxCommunities {
		communities = communities[:maxCommunities]
	}
	return communities
}

// ListHotPosts fetches the hot listing for one community.
// Returns an empty slice on any failure.
func (c *HTTPClient) ListHotPosts(ctx context.Context, community string, limit int) []models.Post {
	if limit <= 0 {
		limit = hotPostsPerListing
	}

	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&t=month", c.baseURL, url.PathEscape(community), limit)

	var resp postListing
	if err := c.getJSON(ctx, u, &resp); err != nil {
		slog.Warn("hot post listing failed", "community", community, "error", err)
		return []models.Post{}
	}

	posts := make([]models.Post, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		p := child.Data
		posts = append(posts, models.Post{
			ID:               p.ID,
			Title:            p.Title,
			URL:              p.URL,
			Permalink:        "https://reddit.com" + p.Permalink,
			Community:        p.Subreddit,
			Score:            p.Score,
			NumComments:      p.NumComments,
			Created:          int64(p.CreatedUTC),
			SelfText:         p.SelfText,
			SuggestedReplies: []string{},
		})
	}
	return posts
}

// SearchPosts scans the hot listings of the first eight candidate
// communities and keeps posts whose title or body mentions a keyword, or
// that are naturally popular. The merged result is sorted by descending
// score and capped at 25.
func (c *HTTPClient) SearchPosts(ctx context.Context, communities, keywords []string) []models.Post {
	if len(communities) > searchedCommunities {
		communities = communities[:searchedCommunities]
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		lowered = append(lowered, strings.ToLower(kw))
	}

	all := []models.Post{}
	for _, community := range communities {
		for _, post := range c.ListHotPosts(ctx, community, hotPostsPerListing) {
			text := strings.ToLower(post.Title + " " + post.SelfText)
			relevant := len(lowered) == 0
			for _, kw := range lowered {
				if strings.Contains(text, kw) {
					relevant = true
					break
				}
			}
			if relevant || post.Score > popularScore {
				all = append(all, post)
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > maxPosts {
		all = all[:maxPosts]
	}
	return all
}

// ListTopComments fetches the top-sorted comments of one post, drops
// deleted and non-positive-score entries, and truncates each body so the
// downstream prompt stays bounded. Returns an empty slice on any failure.
func (c *HTTPClient) ListTopComments(ctx context.Context, community, postID string, limit int) []string {
	if limit <= 0 {
		limit = maxComments
	}

	u := fmt.Sprintf("%s/r/%s/comments/%s.json?limit=%d&sort=top&depth=1",
		c.baseURL, url.PathEscape(community), url.PathEscape(postID), limit)

	// Reddit returns a two-element array: the post listing, then comments.
	var listings []commentListing
	if err := c.getJSON(ctx, u, &listings); err != nil {
		slog.Warn("comment listing failed", "community", community, "post_id", postID, "error", err)
		return []string{}
	}
	if len(listings) < 2 {
		return []string{}
	}

	comments := []string{}
	for _, child := range listings[1].Data.Children {
		body := child.Data.Body
		if body == "" || body == "[deleted]" || child.Data.Score <= 0 {
			continue
		}
		comments = append(comments, truncate(body, maxCommentLen))
		if len(comments) == limit {
			break
		}
	}
	return comments
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrQueryError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding reddit response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
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

// --- Reddit response types ---

type subredditListing struct {
	Data struct {
		Children []struct {
			Data subredditData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type subredditData struct {
	DisplayName       string `json:"display_name"`
	Subscribers       int    `json:"subscribers"`
	PublicDescription string `json:"public_description"`
	URL               string `json:"url"`
}

type postListing struct {
	Data struct {
		Children []struct {
			Data postData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	SelfText    string  `json:"selftext"`
}

type commentListing struct {
	Data struct {
		Children []struct {
			Data commentData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type commentData struct {
	Body  string `json:"body"`
	Score int    `json:"score"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
