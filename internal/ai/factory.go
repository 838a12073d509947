package ai

import (
	"fmt"

	"github.com/marketpartner/leadscout/internal/ai/gemini"
	"github.com/marketpartner/leadscout/internal/config"
	"github.com/marketpartner/leadscout/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(name string, cfg config.GeminiConfig) (models.AIProvider, error) {
	switch name {
	case "gemini":
		return gemini.NewProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be gemini", name)
	}
}
