// Package gemini implements models.AIProvider against the Gemini REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marketpartner/leadscout/internal/config"
	"github.com/marketpartner/leadscout/pkg/models"
)

const (
	defaultTimeout = 30 * time.Second
	topP           = 0.9
	topK           = 40
)

// Provider calls the Gemini generateContent endpoint.
type Provider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

// NewProvider creates a Gemini provider from config.
func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (p *Provider) Name() string  { return "gemini" }
func (p *Provider) Model() string { return p.cfg.Model }

// Generate sends one prompt and returns the model text plus token counts.
// 429 maps to models.ErrRateLimited and 5xx to models.ErrUpstream so the gateway
// can back off before retrying; an empty candidate is models.ErrInvalidResponse.
func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
	genCfg := generationConfig{
		Temperature:     req.Temperature,
		TopP:            topP,
		TopK:            topK,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.ResponseSchema != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = req.ResponseSchema
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: req.Prompt}},
		}},
		GenerationConfig: genCfg,
	})
	if err != nil {
		return models.GenerateResponse{}, fmt.Errorf("encoding gemini request: %w", err)
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model, p.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return models.GenerateResponse{}, fmt.Errorf("building gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.GenerateResponse{}, fmt.Errorf("%w: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.GenerateResponse{}, fmt.Errorf("%w: status 429", models.ErrRateLimited)
	case resp.StatusCode >= 500:
		return models.GenerateResponse{}, fmt.Errorf("%w: status %d", models.ErrUpstream, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.GenerateResponse{}, fmt.Errorf("gemini request rejected: status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.GenerateResponse{}, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	text := decoded.text()
	if text == "" {
		return models.GenerateResponse{}, fmt.Errorf("%w: empty candidate text", models.ErrInvalidResponse)
	}

	return models.GenerateResponse{
		Text:         text,
		InputTokens:  decoded.UsageMetadata.PromptTokenCount,
		OutputTokens: decoded.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// --- Gemini wire types ---

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float32        `json:"temperature"`
	TopP             float32        `json:"topP"`
	TopK             int            `json:"topK"`
	MaxOutputTokens  int            `json:"maxOutputTokens"`
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// Compile-time check that Provider implements AIProvider.
var _ models.AIProvider = (*Provider)(nil)
