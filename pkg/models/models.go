// Package models contains shared data models used across the leadscout codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRequest is the immutable input to one pipeline run.
type AnalysisRequest struct {
	CompanyName string `json:"companyName"`
	Description string `json:"description"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
}

// Community is a discussion group on Reddit, deduplicated by Name.
type Community struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Subscribers int    `json:"subscribers"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Post is a single discussion thread discovered during a run.
// SuggestedReplies stays empty until the reply stage completes for the post.
type Post struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Permalink        string   `json:"permalink"`
	Community        string   `json:"subreddit"`
	Score            int      `json:"score"`
	NumComments      int      `json:"numComments"`
	Created          int64    `json:"created"`
	SelfText         string   `json:"selftext,omitempty"`
	SuggestedReplies []string `json:"suggestedReplies"`
}

// UsageStats accumulates token and cost usage for one pipeline run.
type UsageStats struct {
	InputTokens  int     `json:"totalInputTokens"`
	OutputTokens int     `json:"totalOutputTokens"`
	TotalTokens  int     `json:"totalTokens"`
	CostUSD      float64 `json:"costUsd"`
	Model        string  `json:"modelUsed"`
}

// AnalysisResult is the final payload of a pipeline run.
type AnalysisResult struct {
	Summary             string      `json:"summary"`
	Keywords            []string    `json:"keywords"`
	RelevantCommunities []string    `json:"relevantSubreddits"`
	CommunityDetails    []Community `json:"subredditDetails"`
	RelevantPosts       []Post      `json:"relevantPosts"`
	WebsiteScraped      bool        `json:"websiteScraped"`
	Usage               *UsageStats `json:"usageStats,omitempty"`
}

// Run is a persisted record of one completed single-shot analysis.
type Run struct {
	ID          uuid.UUID      `json:"id"`
	CompanyName string         `json:"company_name"`
	Description string         `json:"description"`
	WebsiteURL  string         `json:"website_url"`
	Result      AnalysisResult `json:"result"`
	CreatedAt   time.Time      `json:"created_at"`
}
