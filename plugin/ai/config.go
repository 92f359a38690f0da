package ai

import (
	"errors"

	"github.com/hrygo/synapse/internal/profile"
)

// DefaultMaxInputChars bounds the text sent to the model in a single input.
// Longer texts are embedded through the token fallback.
const DefaultMaxInputChars = 8192

// EmbeddingConfig represents the embedding model configuration.
type EmbeddingConfig struct {
	BaseURL       string // OpenAI-compatible endpoint, e.g. http://localhost:11434/v1
	APIKey        string
	Model         string // nomic-embed-text
	Dimensions    int    // 768
	MaxInputChars int
}

// NewConfigFromProfile creates the embedding config from profile.
func NewConfigFromProfile(p *profile.Profile) *EmbeddingConfig {
	return &EmbeddingConfig{
		BaseURL:       p.EmbeddingBaseURL,
		APIKey:        p.EmbeddingAPIKey,
		Model:         p.EmbeddingModel,
		Dimensions:    p.EmbeddingDimensions,
		MaxInputChars: DefaultMaxInputChars,
	}
}

// Validate validates the configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("embedding base URL is required")
	}
	if c.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	return nil
}
