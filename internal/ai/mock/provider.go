// Package mock provides a configurable AIProvider for tests.
package mock

import (
	"context"

	"github.com/marketpartner/leadscout/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	Model_       string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error)
}

func (m *MockProvider) Name() string {
	if m.Name_ == "" {
		return "mock"
	}
	return m.Name_
}

func (m *MockProvider) Model() string {
	if m.Model_ == "" {
		return "mock-v1"
	}
	return m.Model_
}

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return models.GenerateResponse{Text: "{}"}, nil
}

// NewTextProvider returns a provider that always answers with the given
// text and fixed token counts.
func NewTextProvider(text string) *MockProvider {
	return &MockProvider{
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			return models.GenerateResponse{Text: text, InputTokens: 10, OutputTokens: 5}, nil
		},
	}
}

// NewFailingProvider returns a provider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResponse, error) {
			return models.GenerateResponse{}, err
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
